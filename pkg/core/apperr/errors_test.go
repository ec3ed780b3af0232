package apperr

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc/codes"

	"github.com/jakechorley/charity-hub/pkg/db"
)

func TestIs_MatchesByCode(t *testing.T) {
	err := Newf(CodeCapacityExceeded, "team %s is full", "t1")

	assert.True(t, errors.Is(err, ErrCapacityExceeded))
	assert.False(t, errors.Is(err, ErrInvalidLeader))

	wrapped := fmt.Errorf("join: %w", err)
	assert.True(t, errors.Is(wrapped, ErrCapacityExceeded))
	assert.Equal(t, CodeCapacityExceeded, CodeOf(wrapped))
	assert.Equal(t, KindValidation, KindOf(wrapped))
}

func TestFromStorage(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode Code
		wantKind Kind
	}{
		{"not found", fmt.Errorf("failed to get team: %w", db.ErrNotFound), CodeNotFound, KindValidation},
		{"unique", fmt.Errorf("failed to insert user: %w", db.ErrAlreadyExists), CodeAlreadyExists, KindValidation},
		{"foreign key", fmt.Errorf("failed to delete user: %w", db.ErrReferenced), CodeReferenced, KindValidation},
		{"conflict", fmt.Errorf("failed to commit: %w", db.ErrConflict), CodeConflict, KindConflict},
		{"cancelled", context.Canceled, CodeStorage, KindStorage},
		{"other", errors.New("connection reset"), CodeStorage, KindStorage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FromStorage(tt.err)
			assert.Equal(t, tt.wantCode, got.Code)
			assert.Equal(t, tt.wantKind, got.Kind)
			assert.ErrorIs(t, got, tt.err)
		})
	}
}

func TestFromStorage_PassesThroughAppErrors(t *testing.T) {
	original := New(CodeInvalidLeader, "not a member")
	assert.Same(t, original, FromStorage(fmt.Errorf("assign: %w", original)))
	assert.Nil(t, FromStorage(nil))
}

func TestKind_Retryable(t *testing.T) {
	assert.False(t, KindValidation.Retryable())
	assert.True(t, KindConflict.Retryable())
	assert.True(t, KindStorage.Retryable())
	assert.Equal(t, KindStorage, KindOf(errors.New("plain")))
}

func TestCode_GRPCCode(t *testing.T) {
	assert.Equal(t, codes.ResourceExhausted, CodeCapacityExceeded.GRPCCode())
	assert.Equal(t, codes.PermissionDenied, CodeUnauthorized.GRPCCode())
	assert.Equal(t, codes.InvalidArgument, CodeDanglingReference.GRPCCode())
	assert.Equal(t, codes.Aborted, CodeConflict.GRPCCode())
	assert.Equal(t, codes.Unavailable, CodeStorage.GRPCCode())
	assert.Equal(t, codes.Unknown, Code("SOMETHING_ELSE").GRPCCode())
}

func TestError_Message(t *testing.T) {
	assert.Equal(t, "INVALID_VALUE: rating must be between 1 and 5", New(CodeInvalidValue, "rating must be between 1 and 5").Error())
	assert.Equal(t, "STORAGE: storage operation failed: boom", FromStorage(errors.New("boom")).Error())
}
