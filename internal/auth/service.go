package auth

import (
	"context"
	"errors"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"

	"github.com/JonMunkholm/sheetgate/internal/audit"
	"github.com/JonMunkholm/sheetgate/internal/core"
	"github.com/JonMunkholm/sheetgate/internal/logging"
)

// MinPasswordLength is counted in characters, not bytes.
const MinPasswordLength = 6

// Client-facing messages.
const (
	MsgFieldsRequired      = "All fields are required."
	MsgInvalidEmail        = "Please enter a valid email address."
	MsgPasswordTooShort    = "Password must be at least 6 characters long."
	MsgInvalidRole         = "Invalid role specified. Allowed roles are: user, admin."
	MsgEmailTaken          = "Email already registered. Please log in."
	MsgLoginFieldsRequired = "Email and password are required."
	MsgInvalidCredentials  = "Invalid credentials."
	MsgNotAuthenticated    = "Not authenticated. Token missing or invalid."
	MsgUserNotFound        = "User not found."
	MsgAdminOnly           = "Admin access only."
	MsgBusy                = "Server is busy. Please try again."
	MsgSignupFailed        = "Server error during signup."
	MsgLoginFailed         = "Server error during login."
	MsgFetchUserFailed     = "Server error fetching user data."
	MsgLogoutFailed        = "Server error during logout."
	MsgAuthCheckFailed     = "Server error verifying credentials."
)

// AccountStore is durable keyed storage of accounts. Create must enforce
// email uniqueness atomically and return ErrDuplicateEmail on collision;
// lookups return ErrNotFound when nothing matches.
type AccountStore interface {
	Create(ctx context.Context, a NewAccount) (Account, error)
	ByEmail(ctx context.Context, email string) (Account, error)
	ByID(ctx context.Context, id string) (Account, error)
}

// SignupInput is the signup request body.
type SignupInput struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role,omitempty"`
}

// LoginInput is the login request body.
type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Session is returned by a successful signup or login.
type Session struct {
	User  PublicAccount `json:"user"`
	Token string        `json:"token"`
}

// Service orchestrates signup, login, current-user lookup and logout.
type Service struct {
	store    AccountStore
	hasher   PasswordHasher
	tokens   *TokenIssuer
	audit    audit.Recorder
	validate *validator.Validate

	dummyMu   sync.Mutex
	dummyHash string
}

// NewService wires a Service. A nil recorder disables auditing.
func NewService(store AccountStore, hasher PasswordHasher, tokens *TokenIssuer, rec audit.Recorder) *Service {
	if rec == nil {
		rec = audit.Nop{}
	}
	return &Service{
		store:    store,
		hasher:   hasher,
		tokens:   tokens,
		audit:    rec,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Tokens exposes the issuer for the Guard.
func (s *Service) Tokens() *TokenIssuer {
	return s.tokens
}

// Signup validates in, creates the account and issues its first token.
func (s *Service) Signup(ctx context.Context, in SignupInput) (Session, error) {
	name := strings.TrimSpace(in.Name)
	email := strings.TrimSpace(in.Email)

	if name == "" || email == "" || in.Password == "" {
		return Session{}, core.Validation(MsgFieldsRequired)
	}
	if !s.validEmail(email) {
		return Session{}, core.Validation(MsgInvalidEmail)
	}
	if utf8.RuneCountInString(in.Password) < MinPasswordLength {
		return Session{}, core.Validation(MsgPasswordTooShort)
	}
	role, err := ParseRole(in.Role)
	if err != nil {
		return Session{}, core.Validation(MsgInvalidRole)
	}

	_, err = s.store.ByEmail(ctx, email)
	switch {
	case err == nil:
		s.record(ctx, audit.ActionSignup, audit.OutcomeFailure, "", email, "email taken")
		return Session{}, core.Conflict(MsgEmailTaken)
	case !errors.Is(err, ErrNotFound):
		return Session{}, core.Infrastructure(MsgSignupFailed, err)
	}

	digest, err := s.hasher.Hash(ctx, in.Password)
	if err != nil {
		return Session{}, hashFailure(MsgSignupFailed, err)
	}

	acct, err := s.store.Create(ctx, NewAccount{
		Name:         name,
		Email:        email,
		PasswordHash: digest,
		Role:         role,
	})
	if err != nil {
		if errors.Is(err, ErrDuplicateEmail) {
			s.record(ctx, audit.ActionSignup, audit.OutcomeFailure, "", email, "email taken")
			return Session{}, core.Conflict(MsgEmailTaken)
		}
		return Session{}, core.Infrastructure(MsgSignupFailed, err)
	}

	token, err := s.tokens.Issue(acct.ID, acct.Role)
	if err != nil {
		return Session{}, core.Infrastructure(MsgSignupFailed, err)
	}

	s.record(ctx, audit.ActionSignup, audit.OutcomeSuccess, acct.ID, acct.Email, "")
	return Session{User: acct.Public(), Token: token}, nil
}

// Login checks credentials. A missing account and a wrong password produce
// the same error, and both pay for one bcrypt comparison.
func (s *Service) Login(ctx context.Context, in LoginInput) (Session, error) {
	email := strings.TrimSpace(in.Email)

	if email == "" || in.Password == "" {
		return Session{}, core.Validation(MsgLoginFieldsRequired)
	}
	if !s.validEmail(email) {
		return Session{}, core.Validation(MsgInvalidEmail)
	}

	acct, err := s.store.ByEmail(ctx, email)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return Session{}, core.Infrastructure(MsgLoginFailed, err)
	}
	found := err == nil

	digest := acct.PasswordHash
	if !found {
		if digest, err = s.dummyDigest(ctx); err != nil {
			return Session{}, hashFailure(MsgLoginFailed, err)
		}
	}

	ok, err := s.hasher.Verify(ctx, in.Password, digest)
	if err != nil {
		return Session{}, hashFailure(MsgLoginFailed, err)
	}
	if !found || !ok {
		s.record(ctx, audit.ActionLogin, audit.OutcomeFailure, "", email, "invalid credentials")
		return Session{}, core.Unauthorized(MsgInvalidCredentials)
	}

	token, err := s.tokens.Issue(acct.ID, acct.Role)
	if err != nil {
		return Session{}, core.Infrastructure(MsgLoginFailed, err)
	}

	s.record(ctx, audit.ActionLogin, audit.OutcomeSuccess, acct.ID, acct.Email, "")
	return Session{User: acct.Public(), Token: token}, nil
}

// CurrentUser returns the public view of the account a verified token
// names. The account may have disappeared since the token was issued.
func (s *Service) CurrentUser(ctx context.Context, subjectID string) (PublicAccount, error) {
	if subjectID == "" {
		return PublicAccount{}, core.Unauthenticated(MsgNotAuthenticated)
	}

	acct, err := s.store.ByID(ctx, subjectID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return PublicAccount{}, core.NotFound(MsgUserNotFound)
		}
		return PublicAccount{}, core.Infrastructure(MsgFetchUserFailed, err)
	}
	return acct.Public(), nil
}

// Logout revokes the presented token until its expiry.
func (s *Service) Logout(ctx context.Context, id Identity) error {
	if id.SubjectID == "" {
		return core.Unauthenticated(MsgNotAuthenticated)
	}
	if err := s.tokens.Revoke(ctx, id); err != nil {
		return core.Infrastructure(MsgLogoutFailed, err)
	}
	s.record(ctx, audit.ActionLogout, audit.OutcomeSuccess, id.SubjectID, "", "")
	return nil
}

func (s *Service) validEmail(email string) bool {
	return s.validate.Var(email, "required,email") == nil
}

// dummyDigest is compared against when no account matches, so a missing
// email costs the same as a wrong password. A failed attempt is not cached;
// the next missing-email login tries again.
func (s *Service) dummyDigest(ctx context.Context) (string, error) {
	s.dummyMu.Lock()
	defer s.dummyMu.Unlock()

	if s.dummyHash != "" {
		return s.dummyHash, nil
	}
	d, err := s.hasher.Hash(ctx, "sheetgate-no-such-account")
	if err != nil {
		logging.FromContext(ctx).Warn("auth: could not prepare dummy digest", "error", err)
		return "", err
	}
	s.dummyHash = d
	return d, nil
}

func (s *Service) record(ctx context.Context, action audit.Action, outcome audit.Outcome, subject, email, reason string) {
	s.audit.Record(ctx, audit.Params{
		Action:    action,
		Outcome:   outcome,
		SubjectID: subject,
		Email:     email,
		Reason:    reason,
	})
}

func hashFailure(msg string, err error) error {
	if errors.Is(err, core.ErrBusy) {
		return core.Busy(MsgBusy, err)
	}
	return core.Infrastructure(msg, err)
}
