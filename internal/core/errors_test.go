package core

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"validation", Validation("bad"), KindValidation},
		{"conflict", Conflict("dup"), KindConflict},
		{"unauthenticated", Unauthenticated("no token"), KindUnauthenticated},
		{"unauthorized", Unauthorized("bad creds"), KindUnauthorized},
		{"forbidden", Forbidden("admins only"), KindForbidden},
		{"not found", NotFound("gone"), KindNotFound},
		{"timeout", Timeout("slow", errors.New("deadline")), KindTimeout},
		{"busy", Busy("full", ErrBusy), KindBusy},
		{"infrastructure", Infrastructure("oops", errors.New("db down")), KindInfrastructure},
		{"wrapped", fmt.Errorf("signup: %w", Conflict("dup")), KindConflict},
		{"plain error", errors.New("plain"), KindInfrastructure},
		{"nil", nil, KindInfrastructure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestError_UnwrapKeepsCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Infrastructure("Server error during login.", cause)

	require.ErrorIs(t, err, cause)
	assert.Equal(t, "Server error during login.", MessageOf(err, "fallback"))
	assert.Contains(t, err.Error(), "connection refused")
}

func TestMessageOf_Fallback(t *testing.T) {
	assert.Equal(t, "fallback", MessageOf(errors.New("raw"), "fallback"))
	assert.Equal(t, "Admin access only.", MessageOf(Forbidden("Admin access only."), "fallback"))
}

func TestIs(t *testing.T) {
	err := fmt.Errorf("ctx: %w", NotFound("User not found."))
	assert.True(t, Is(err, KindNotFound))
	assert.False(t, Is(err, KindConflict))
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "validation", KindValidation.String())
	assert.Equal(t, "kind(99)", Kind(99).String())
}
