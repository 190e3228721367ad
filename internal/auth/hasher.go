package auth

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/JonMunkholm/sheetgate/internal/core"
)

// DefaultBcryptCost is the work factor used when none is configured.
const DefaultBcryptCost = 12

// PasswordHasher hashes and verifies account secrets.
//
// Verify reports a mismatch as (false, nil); a non-nil error always means
// the hashing machinery itself failed or no worker slot was available.
type PasswordHasher interface {
	Hash(ctx context.Context, plaintext string) (string, error)
	Verify(ctx context.Context, plaintext, digest string) (bool, error)
}

// BcryptHasher is a PasswordHasher backed by bcrypt. Every call runs inside
// a slot of the supplied Limiter so a burst of logins cannot monopolise the
// CPU.
type BcryptHasher struct {
	cost    int
	limiter *core.Limiter
}

var _ PasswordHasher = (*BcryptHasher)(nil)

// NewBcryptHasher creates a hasher with the given cost. A nil limiter means
// unbounded concurrency.
func NewBcryptHasher(cost int, limiter *core.Limiter) *BcryptHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultBcryptCost
	}
	return &BcryptHasher{cost: cost, limiter: limiter}
}

// Cost returns the configured work factor.
func (h *BcryptHasher) Cost() int {
	return h.cost
}

func (h *BcryptHasher) Hash(ctx context.Context, plaintext string) (string, error) {
	if err := h.acquire(ctx); err != nil {
		return "", err
	}
	defer h.release()

	digest, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(digest), nil
}

func (h *BcryptHasher) Verify(ctx context.Context, plaintext, digest string) (bool, error) {
	if err := h.acquire(ctx); err != nil {
		return false, err
	}
	defer h.release()

	err := bcrypt.CompareHashAndPassword([]byte(digest), []byte(plaintext))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	case errors.Is(err, bcrypt.ErrHashTooShort):
		// A corrupt stored digest cannot match anything.
		return false, nil
	default:
		return false, fmt.Errorf("bcrypt compare: %w", err)
	}
}

func (h *BcryptHasher) acquire(ctx context.Context) error {
	if h.limiter == nil {
		return nil
	}
	return h.limiter.Acquire(ctx)
}

func (h *BcryptHasher) release() {
	if h.limiter != nil {
		h.limiter.Release()
	}
}
