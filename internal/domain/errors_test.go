package domain

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKindOf(t *testing.T) {
	cases := []struct {
		err  error
		kind Kind
	}{
		{ErrRoomNotFound, KindNotFound},
		{fmt.Errorf("join: %w", ErrAlreadyMember), KindConflict},
		{ErrRoomNameTaken, KindConflict},
		{ErrNotMember, KindForbidden},
		{ErrForbidden, KindForbidden},
		{ErrEmptyContent, KindValidation},
		{ErrContentTooLong, KindValidation},
		{StorageError("append", errors.New("disk full")), KindStorage},
		{StorageError("append", context.DeadlineExceeded), KindTimeout},
		{errors.New("boom"), KindUnknown},
		{nil, KindUnknown},
	}
	for _, tc := range cases {
		require.Equal(t, tc.kind, KindOf(tc.err), "%v", tc.err)
	}
}

func TestStorageErrorKeepsCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := StorageError("history", cause)
	require.ErrorIs(t, err, ErrStorageFailure)
	require.ErrorIs(t, err, cause)
	require.Contains(t, err.Error(), "history")
	require.NoError(t, StorageError("noop", nil))
}
