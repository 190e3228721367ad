// Package store provides AccountStore implementations: an in-memory map for
// development and tests, and PostgreSQL for anything durable.
package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/sheetgate/internal/auth"
)

// Memory keeps accounts in process memory. Email uniqueness is enforced
// under a single mutex, so concurrent creates for one email race to exactly
// one winner.
type Memory struct {
	mu      sync.RWMutex
	byID    map[string]auth.Account
	byEmail map[string]string
}

var _ auth.AccountStore = (*Memory)(nil)

// NewMemory creates an empty store.
func NewMemory() *Memory {
	return &Memory{
		byID:    make(map[string]auth.Account),
		byEmail: make(map[string]string),
	}
}

func (m *Memory) Create(_ context.Context, a auth.NewAccount) (auth.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.byEmail[a.Email]; exists {
		return auth.Account{}, auth.ErrDuplicateEmail
	}

	acct := auth.Account{
		ID:           uuid.NewString(),
		Name:         a.Name,
		Email:        a.Email,
		PasswordHash: a.PasswordHash,
		Role:         a.Role,
		CreatedAt:    time.Now().UTC(),
	}
	m.byID[acct.ID] = acct
	m.byEmail[acct.Email] = acct.ID
	return acct, nil
}

func (m *Memory) ByEmail(_ context.Context, email string) (auth.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.byEmail[email]
	if !ok {
		return auth.Account{}, auth.ErrNotFound
	}
	return m.byID[id], nil
}

func (m *Memory) ByID(_ context.Context, id string) (auth.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	acct, ok := m.byID[id]
	if !ok {
		return auth.Account{}, auth.ErrNotFound
	}
	return acct, nil
}
