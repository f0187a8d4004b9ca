package hawk

import (
	"errors"
	"fmt"
	"testing"
)

func TestError(t *testing.T) {
	tests := []struct {
		err  Error
		want string
	}{
		{ErrNotOpen, "storage is not open"},
		{ErrUserNotExists, "user does not exist"},
		{ErrGroupUserRelationNotExists, "group-user relation does not exist"},
		{ErrMessageAlreadyExists, "message already exists"},
		{ErrObjectNotFile, "object is not a file"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestError_Wrapped(t *testing.T) {
	err := fmt.Errorf("adding user %s: %w", "u-1", ErrUserUUIDAlreadyRegistered)
	if !errors.Is(err, ErrUserUUIDAlreadyRegistered) {
		t.Errorf("errors.Is(%v, ErrUserUUIDAlreadyRegistered) = false", err)
	}
	if errors.Is(err, ErrUserLoginAlreadyRegistered) {
		t.Errorf("errors.Is(%v, ErrUserLoginAlreadyRegistered) = true", err)
	}

	var code Error
	if !errors.As(err, &code) || code.Code() != int(ErrUserUUIDAlreadyRegistered) {
		t.Errorf("errors.As() code = %v", code)
	}
}

func TestError_Unknown(t *testing.T) {
	if got := Error(12345).Error(); got == "" {
		t.Error("Error() of unknown code is empty")
	}
}
