package repository

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/weiawesome/wes-io-chat/internal/domain"
	"github.com/weiawesome/wes-io-chat/pkg/database"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	return newTestDBWithPool(t, 1)
}

func newTestDBWithPool(t *testing.T, maxOpen int) *gorm.DB {
	t.Helper()
	db, err := database.New(&database.Config{
		Driver:       "sqlite",
		FilePath:     filepath.Join(t.TempDir(), "chat.db"),
		MaxOpenConns: maxOpen,
		LogLevel:     "silent",
	})
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db, Models()...))
	t.Cleanup(func() { database.Close(db) })
	return db
}

func createRoom(t *testing.T, repo *GormRoomRepository, name, creator string) *domain.Room {
	t.Helper()
	room := &domain.Room{Name: name, CreatedBy: creator, CreatedAt: time.Now().UTC()}
	require.NoError(t, repo.Create(context.Background(), room))
	return room
}

func TestGormRoomRepositoryCreate(t *testing.T) {
	repo := NewGormRoomRepository(newTestDB(t))
	ctx := context.Background()

	room := createRoom(t, repo, "general", "alice")
	require.NotEmpty(t, room.ID)
	require.Equal(t, []string{"alice"}, room.Members)

	err := repo.Create(ctx, &domain.Room{Name: "general", CreatedBy: "bob", CreatedAt: time.Now()})
	require.ErrorIs(t, err, domain.ErrRoomNameTaken)

	rooms, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, rooms, 1)

	got, err := repo.GetByID(ctx, room.ID)
	require.NoError(t, err)
	require.Equal(t, "general", got.Name)
	require.Equal(t, "alice", got.CreatedBy)
	require.Equal(t, []string{"alice"}, got.Members)

	_, err = repo.GetByID(ctx, "missing")
	require.ErrorIs(t, err, domain.ErrRoomNotFound)
}

func TestGormRoomRepositoryListOrder(t *testing.T) {
	repo := NewGormRoomRepository(newTestDB(t))
	ctx := context.Background()

	// Identical timestamps must still list in creation order.
	now := time.Now().UTC()
	for _, name := range []string{"zeta", "alpha", "mid"} {
		require.NoError(t, repo.Create(ctx, &domain.Room{Name: name, CreatedBy: "alice", CreatedAt: now}))
	}

	rooms, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, rooms, 3)
	require.Equal(t, "zeta", rooms[0].Name)
	require.Equal(t, "alpha", rooms[1].Name)
	require.Equal(t, "mid", rooms[2].Name)
}

func TestGormRoomRepositoryMembership(t *testing.T) {
	repo := NewGormRoomRepository(newTestDB(t))
	ctx := context.Background()
	room := createRoom(t, repo, "general", "alice")

	updated, err := repo.AddMember(ctx, room.ID, "bob", time.Now())
	require.NoError(t, err)
	require.Equal(t, []string{"alice", "bob"}, updated.Members)

	_, err = repo.AddMember(ctx, room.ID, "bob", time.Now())
	require.ErrorIs(t, err, domain.ErrAlreadyMember)

	_, err = repo.AddMember(ctx, "missing", "bob", time.Now())
	require.ErrorIs(t, err, domain.ErrRoomNotFound)

	members, err := repo.Members(ctx, room.ID)
	require.NoError(t, err)
	require.Equal(t, []string{"alice", "bob"}, members)

	_, err = repo.Members(ctx, "missing")
	require.ErrorIs(t, err, domain.ErrRoomNotFound)

	ok, err := repo.IsMember(ctx, room.ID, "bob")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = repo.IsMember(ctx, room.ID, "carol")
	require.NoError(t, err)
	require.False(t, ok)

	_, err = repo.IsMember(ctx, "missing", "bob")
	require.ErrorIs(t, err, domain.ErrRoomNotFound)
}

func TestGormRoomRepositoryListByMember(t *testing.T) {
	repo := NewGormRoomRepository(newTestDB(t))
	ctx := context.Background()

	general := createRoom(t, repo, "general", "alice")
	createRoom(t, repo, "random", "bob")
	games := createRoom(t, repo, "games", "carol")
	_, err := repo.AddMember(ctx, games.ID, "alice", time.Now())
	require.NoError(t, err)

	rooms, err := repo.ListByMember(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, rooms, 2)
	require.Equal(t, general.ID, rooms[0].ID)
	require.Equal(t, games.ID, rooms[1].ID)
	require.Equal(t, []string{"carol", "alice"}, rooms[1].Members)

	rooms, err = repo.ListByMember(ctx, "nobody")
	require.NoError(t, err)
	require.Empty(t, rooms)
}

func TestGormMessageRepository(t *testing.T) {
	repo := NewGormMessageRepository(newTestDB(t))
	ctx := context.Background()

	last, err := repo.LastSeq(ctx, "room-1")
	require.NoError(t, err)
	require.Zero(t, last)

	now := time.Now().UTC()
	for i := int64(1); i <= 5; i++ {
		require.NoError(t, repo.Append(ctx, &domain.Message{
			ID: fmt.Sprintf("m%d", i), RoomID: "room-1", Seq: i, SenderID: "alice", Content: "hello", CreatedAt: now,
		}))
	}

	err = repo.Append(ctx, &domain.Message{ID: "dup", RoomID: "room-1", Seq: 3, SenderID: "bob", Content: "x", CreatedAt: now})
	require.ErrorIs(t, err, domain.ErrDuplicateSeq)

	// The same seq in another room is independent.
	require.NoError(t, repo.Append(ctx, &domain.Message{ID: "other", RoomID: "room-2", Seq: 3, SenderID: "bob", Content: "x", CreatedAt: now}))

	last, err = repo.LastSeq(ctx, "room-1")
	require.NoError(t, err)
	require.EqualValues(t, 5, last)

	all, err := repo.List(ctx, "room-1", 0, 0)
	require.NoError(t, err)
	require.Len(t, all, 5)
	for i, m := range all {
		require.EqualValues(t, i+1, m.Seq)
	}

	page, err := repo.List(ctx, "room-1", 2, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	require.EqualValues(t, 3, page[0].Seq)
	require.EqualValues(t, 4, page[1].Seq)
}

func TestGormMessageRepositoryConcurrentDistinctRooms(t *testing.T) {
	db := newTestDB(t)
	repo := NewGormMessageRepository(db)
	ctx := context.Background()

	var wg sync.WaitGroup
	for _, room := range []string{"a", "b", "c"} {
		wg.Add(1)
		go func(room string) {
			defer wg.Done()
			for i := int64(1); i <= 10; i++ {
				err := repo.Append(ctx, &domain.Message{
					ID: fmt.Sprintf("%s-%d", room, i), RoomID: room, Seq: i,
					SenderID: "u", Content: "c", CreatedAt: time.Now(),
				})
				if err != nil {
					t.Error(err)
					return
				}
			}
		}(room)
	}
	wg.Wait()

	for _, room := range []string{"a", "b", "c"} {
		last, err := repo.LastSeq(ctx, room)
		require.NoError(t, err)
		require.EqualValues(t, 10, last)
	}
}

func TestGormMessageRepositoryAppendWithLostAck(t *testing.T) {
	db := newTestDB(t)
	// Without the implicit transaction the row commits before the error.
	repo := NewGormMessageRepository(db.Session(&gorm.Session{SkipDefaultTransaction: true}))
	ctx := context.Background()

	require.NoError(t, db.Callback().Create().After("gorm:create").Register("test:lost_ack", func(tx *gorm.DB) {
		if tx.Statement.Table == "messages" {
			tx.AddError(errors.New("connection reset by peer"))
		}
	}))

	now := time.Now().UTC()
	msg := &domain.Message{ID: "m1", RoomID: "room-1", Seq: 1, SenderID: "alice", Content: "hello", CreatedAt: now}
	require.NoError(t, repo.Append(ctx, msg))

	err := repo.Append(ctx, &domain.Message{ID: "m2", RoomID: "room-1", Seq: 1, SenderID: "bob", Content: "x", CreatedAt: now})
	require.ErrorIs(t, err, domain.ErrDuplicateSeq)

	all, err := repo.List(ctx, "room-1", 0, 0)
	require.NoError(t, err)
	require.Len(t, all, 1)
	require.Equal(t, "m1", all[0].ID)
}

func TestGormRepositoriesUnderDefaultPool(t *testing.T) {
	// The shipped pool size lets writers on different rooms overlap.
	db := newTestDBWithPool(t, 100)
	rooms := NewGormRoomRepository(db)
	messages := NewGormMessageRepository(db)
	ctx := context.Background()

	const roomCount, perRoom = 10, 8
	ids := make([]string, roomCount)
	for i := range ids {
		ids[i] = createRoom(t, rooms, fmt.Sprintf("room-%d", i), "owner").ID
	}

	var wg sync.WaitGroup
	for _, roomID := range ids {
		wg.Add(2)
		go func(roomID string) {
			defer wg.Done()
			for j := 0; j < perRoom; j++ {
				if _, err := rooms.AddMember(ctx, roomID, fmt.Sprintf("user-%d", j), time.Now()); err != nil {
					t.Errorf("join %s: %v", roomID, err)
					return
				}
			}
		}(roomID)
		go func(roomID string) {
			defer wg.Done()
			for j := int64(1); j <= perRoom; j++ {
				err := messages.Append(ctx, &domain.Message{
					ID: fmt.Sprintf("%s-%d", roomID, j), RoomID: roomID, Seq: j,
					SenderID: "owner", Content: "c", CreatedAt: time.Now(),
				})
				if err != nil {
					t.Errorf("append %s: %v", roomID, err)
					return
				}
			}
		}(roomID)
	}
	wg.Wait()

	for _, roomID := range ids {
		members, err := rooms.Members(ctx, roomID)
		require.NoError(t, err)
		require.Len(t, members, perRoom+1)
		last, err := messages.LastSeq(ctx, roomID)
		require.NoError(t, err)
		require.EqualValues(t, perRoom, last)
	}
}
