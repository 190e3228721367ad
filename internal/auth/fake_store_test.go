package auth

import (
	"context"
	"strconv"
	"sync"
	"time"
)

// memStore is a minimal AccountStore for service tests.
type memStore struct {
	mu      sync.Mutex
	byEmail map[string]Account
	seq     int
	err     error
}

func newMemStore() *memStore {
	return &memStore{byEmail: make(map[string]Account)}
}

func (m *memStore) Create(_ context.Context, a NewAccount) (Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return Account{}, m.err
	}
	if _, ok := m.byEmail[a.Email]; ok {
		return Account{}, ErrDuplicateEmail
	}
	m.seq++
	acct := Account{
		ID:           "acct-" + strconv.Itoa(m.seq),
		Name:         a.Name,
		Email:        a.Email,
		PasswordHash: a.PasswordHash,
		Role:         a.Role,
		CreatedAt:    time.Now(),
	}
	m.byEmail[a.Email] = acct
	return acct, nil
}

func (m *memStore) ByEmail(_ context.Context, email string) (Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return Account{}, m.err
	}
	acct, ok := m.byEmail[email]
	if !ok {
		return Account{}, ErrNotFound
	}
	return acct, nil
}

func (m *memStore) ByID(_ context.Context, id string) (Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return Account{}, m.err
	}
	for _, acct := range m.byEmail {
		if acct.ID == id {
			return acct, nil
		}
	}
	return Account{}, ErrNotFound
}

func (m *memStore) delete(email string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.byEmail, email)
}
