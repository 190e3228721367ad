// Package auth registers accounts, authenticates them and issues the bearer
// tokens that protect the rest of the API.
//
// The pieces compose leaf first: a PasswordHasher and a TokenIssuer are
// owned by the Service, which talks to an AccountStore. The Guard verifies
// tokens on incoming requests and decides whether a role may proceed.
package auth

import (
	"errors"
	"strings"
	"time"
)

// Role is the closed set of account roles.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// ErrInvalidRole is returned by ParseRole for anything outside the enum.
var ErrInvalidRole = errors.New("invalid role")

// ParseRole lower-cases s and maps it onto a Role. The empty string maps to
// RoleUser.
func ParseRole(s string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case "", RoleUser:
		return RoleUser, nil
	case RoleAdmin:
		return RoleAdmin, nil
	default:
		return "", ErrInvalidRole
	}
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

func (r Role) String() string {
	return string(r)
}

// Store sentinels. AccountStore implementations return these; the Service
// translates them and never lets them reach a client.
var (
	ErrNotFound       = errors.New("account not found")
	ErrDuplicateEmail = errors.New("email already registered")
)

// Account is a stored account record.
type Account struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"-"`
}

// PublicAccount is the outward view of an Account.
type PublicAccount struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  Role   `json:"role"`
}

// Public strips the hash and storage fields.
func (a Account) Public() PublicAccount {
	return PublicAccount{
		ID:    a.ID,
		Name:  a.Name,
		Email: a.Email,
		Role:  a.Role,
	}
}

// NewAccount is the input to AccountStore.Create.
type NewAccount struct {
	Name         string
	Email        string
	PasswordHash string
	Role         Role
}

// Identity is what a verified token proves about its bearer.
type Identity struct {
	SubjectID string
	Role      Role
	TokenID   string
	ExpiresAt time.Time
}
