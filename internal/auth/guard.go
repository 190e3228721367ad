package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/JonMunkholm/sheetgate/internal/core"
	"github.com/JonMunkholm/sheetgate/internal/logging"
)

// Guard verifies bearer tokens and checks roles. It never writes a
// response; callers decide how to render the returned error.
type Guard struct {
	tokens *TokenIssuer
}

// NewGuard creates a guard backed by tokens.
func NewGuard(tokens *TokenIssuer) *Guard {
	return &Guard{tokens: tokens}
}

// Authenticate extracts and verifies the bearer token on r. Every failure
// is an Unauthenticated error with the same message; a deny-list outage is
// an infrastructure error.
func (g *Guard) Authenticate(r *http.Request) (Identity, error) {
	ctx := r.Context()

	raw, ok := bearerToken(r.Header.Get("Authorization"))
	if !ok {
		return Identity{}, unauthenticated(errors.New("missing bearer token"))
	}

	id, err := g.tokens.Verify(ctx, raw)
	switch {
	case err == nil:
		return id, nil
	case errors.Is(err, ErrTokenExpired):
		logging.FromContext(ctx).Debug("auth: token expired")
		return Identity{}, unauthenticated(err)
	case errors.Is(err, ErrTokenRevoked):
		logging.FromContext(ctx).Debug("auth: token revoked")
		return Identity{}, unauthenticated(err)
	case errors.Is(err, ErrInvalidToken):
		return Identity{}, unauthenticated(err)
	default:
		return Identity{}, core.Infrastructure(MsgAuthCheckFailed, err)
	}
}

// Authorize permits id when its role exactly equals one of allowed. There
// is no hierarchy: admin does not satisfy a user-only gate.
func (g *Guard) Authorize(id Identity, allowed ...Role) error {
	for _, role := range allowed {
		if id.Role == role {
			return nil
		}
	}
	return core.Forbidden(forbiddenMessage(allowed))
}

func forbiddenMessage(allowed []Role) string {
	if len(allowed) != 1 {
		return "Access denied."
	}
	if allowed[0] == RoleAdmin {
		return MsgAdminOnly
	}
	s := allowed[0].String()
	if s == "" {
		return "Access denied."
	}
	return strings.ToUpper(s[:1]) + s[1:] + " access only."
}

func unauthenticated(cause error) error {
	return &core.Error{Kind: core.KindUnauthenticated, Message: MsgNotAuthenticated, Err: cause}
}

// bearerToken parses "Bearer <token>", case-insensitive on the scheme.
func bearerToken(header string) (string, bool) {
	const prefix = "bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	tok := strings.TrimSpace(header[len(prefix):])
	return tok, tok != ""
}

type identityKey struct{}

// WithIdentity stores a verified identity on ctx and tags its loggers.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	ctx = context.WithValue(ctx, identityKey{}, id)
	return logging.WithSubject(ctx, id.SubjectID)
}

// IdentityFrom returns the identity stored by WithIdentity.
func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}
