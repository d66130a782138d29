package domain

import "time"

// Room is a named, persistent group with a grow-only member set.
type Room struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedBy string    `json:"created_by"`
	Members   []string  `json:"members"`
	CreatedAt time.Time `json:"created_at"`
}

// HasMember reports whether identity is in the room's member set.
func (r *Room) HasMember(identity string) bool {
	for _, m := range r.Members {
		if m == identity {
			return true
		}
	}
	return false
}

// CreateRoomRequest represents a create room request.
type CreateRoomRequest struct {
	Name string `json:"name" binding:"required,min=1,max=100"`
}

// RoomResponse represents a room in API responses.
type RoomResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	CreatedBy   string    `json:"created_by"`
	Members     []string  `json:"members"`
	MemberCount int       `json:"member_count"`
	CreatedAt   time.Time `json:"created_at"`
}

// ListRoomsResponse wraps a room listing.
type ListRoomsResponse struct {
	Rooms []RoomResponse `json:"rooms"`
	Total int            `json:"total"`
}

// MembersResponse lists the identities of a room.
type MembersResponse struct {
	RoomID  string   `json:"room_id"`
	Members []string `json:"members"`
}

// ToResponse converts Room to RoomResponse.
func (r *Room) ToResponse() RoomResponse {
	members := r.Members
	if members == nil {
		members = []string{}
	}
	return RoomResponse{
		ID:          r.ID,
		Name:        r.Name,
		CreatedBy:   r.CreatedBy,
		Members:     members,
		MemberCount: len(members),
		CreatedAt:   r.CreatedAt,
	}
}

// RoomsToResponse converts a room slice.
func RoomsToResponse(rooms []Room) ListRoomsResponse {
	out := make([]RoomResponse, len(rooms))
	for i := range rooms {
		out[i] = rooms[i].ToResponse()
	}
	return ListRoomsResponse{Rooms: out, Total: len(out)}
}
