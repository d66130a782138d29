package domain

import (
	"context"
	"errors"
	"fmt"
)

// Kind classifies an error for callers that map it onto a transport.
type Kind int

const (
	KindUnknown Kind = iota
	KindNotFound
	KindConflict
	KindForbidden
	KindValidation
	KindStorage
	KindTimeout
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindForbidden:
		return "forbidden"
	case KindValidation:
		return "validation"
	case KindStorage:
		return "storage_failure"
	case KindTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

var (
	ErrRoomNotFound    = errors.New("room not found")
	ErrRoomNameTaken   = errors.New("room name already taken")
	ErrAlreadyMember   = errors.New("already a member of this room")
	ErrNotMember       = errors.New("sender is not a member of this room")
	ErrForbidden       = errors.New("not a member of this room")
	ErrInvalidRoomName = errors.New("invalid room name")
	ErrInvalidIdentity = errors.New("invalid identity")
	ErrEmptyContent    = errors.New("message content is empty")
	ErrContentTooLong  = errors.New("message content too long")
	ErrStorageFailure  = errors.New("storage failure")

	// ErrDuplicateSeq is returned by message stores when (room, seq)
	// already exists. The message log retries on it.
	ErrDuplicateSeq = errors.New("sequence number already assigned")
)

// StorageError wraps a store error so that it matches ErrStorageFailure
// while keeping the cause in the chain. Context errors pass through
// unwrapped so deadlines stay distinguishable.
func StorageError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, ErrStorageFailure, err)
}

// KindOf reports the category of err.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindUnknown
	case errors.Is(err, ErrRoomNotFound):
		return KindNotFound
	case errors.Is(err, ErrRoomNameTaken), errors.Is(err, ErrAlreadyMember):
		return KindConflict
	case errors.Is(err, ErrNotMember), errors.Is(err, ErrForbidden):
		return KindForbidden
	case errors.Is(err, ErrInvalidRoomName), errors.Is(err, ErrInvalidIdentity),
		errors.Is(err, ErrEmptyContent), errors.Is(err, ErrContentTooLong):
		return KindValidation
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return KindTimeout
	case errors.Is(err, ErrStorageFailure):
		return KindStorage
	default:
		return KindUnknown
	}
}
