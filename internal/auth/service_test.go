package auth

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/JonMunkholm/sheetgate/internal/core"
)

func newTestService(t *testing.T) (*Service, *memStore) {
	t.Helper()
	store := newMemStore()
	issuer := NewTokenIssuer(testSecret, WithDenyList(NewMemoryDenyList()))
	return NewService(store, NewBcryptHasher(bcrypt.MinCost, nil), issuer, nil), store
}

func validSignup() SignupInput {
	return SignupInput{Name: "Ann", Email: "ann@example.com", Password: "secret1"}
}

func TestSignup_TokenMatchesAccount(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	sess, err := svc.Signup(ctx, validSignup())
	require.NoError(t, err)

	assert.Equal(t, "Ann", sess.User.Name)
	assert.Equal(t, "ann@example.com", sess.User.Email)
	assert.Equal(t, RoleUser, sess.User.Role)

	id, err := svc.Tokens().Verify(ctx, sess.Token)
	require.NoError(t, err)
	assert.Equal(t, sess.User.ID, id.SubjectID)
	assert.Equal(t, sess.User.Role, id.Role)

	stored, err := store.ByEmail(ctx, "ann@example.com")
	require.NoError(t, err)
	assert.NotEqual(t, "secret1", stored.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("secret1")))
}

func TestSignup_RoleHandling(t *testing.T) {
	tests := []struct {
		role string
		want Role
	}{
		{"", RoleUser},
		{"user", RoleUser},
		{"ADMIN", RoleAdmin},
	}

	for _, tt := range tests {
		t.Run(tt.role, func(t *testing.T) {
			svc, _ := newTestService(t)
			in := validSignup()
			in.Role = tt.role

			sess, err := svc.Signup(context.Background(), in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, sess.User.Role)
		})
	}
}

func TestSignup_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*SignupInput)
		want   string
	}{
		{"missing name", func(in *SignupInput) { in.Name = "" }, MsgFieldsRequired},
		{"blank name", func(in *SignupInput) { in.Name = "   " }, MsgFieldsRequired},
		{"missing email", func(in *SignupInput) { in.Email = "" }, MsgFieldsRequired},
		{"missing password", func(in *SignupInput) { in.Password = "" }, MsgFieldsRequired},
		{"malformed email", func(in *SignupInput) { in.Email = "ann.example.com" }, MsgInvalidEmail},
		{"short password", func(in *SignupInput) { in.Password = "12345" }, MsgPasswordTooShort},
		{"short password counts characters", func(in *SignupInput) { in.Password = "ééééé" }, MsgPasswordTooShort},
		{"short password beats bad role", func(in *SignupInput) { in.Password = "1"; in.Role = "root" }, MsgPasswordTooShort},
		{"unknown role", func(in *SignupInput) { in.Role = "superuser" }, MsgInvalidRole},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, store := newTestService(t)
			in := validSignup()
			tt.mutate(&in)

			_, err := svc.Signup(context.Background(), in)
			require.Error(t, err)
			assert.Equal(t, core.KindValidation, core.KindOf(err))
			assert.Equal(t, tt.want, core.MessageOf(err, ""))
			assert.Empty(t, store.byEmail)
		})
	}
}

func TestSignup_MultibytePasswordAccepted(t *testing.T) {
	svc, _ := newTestService(t)
	in := validSignup()
	in.Password = "éééééé"

	_, err := svc.Signup(context.Background(), in)
	require.NoError(t, err)
}

func TestSignup_DuplicateEmail(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Signup(ctx, validSignup())
	require.NoError(t, err)

	again := SignupInput{Name: "Someone Else", Email: "ann@example.com", Password: "different-password", Role: "admin"}
	_, err = svc.Signup(ctx, again)
	require.Error(t, err)
	assert.Equal(t, core.KindConflict, core.KindOf(err))
	assert.Equal(t, MsgEmailTaken, core.MessageOf(err, ""))
}

func TestSignup_ConcurrentSameEmail(t *testing.T) {
	svc, _ := newTestService(t)

	const n = 8
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Signup(context.Background(), validSignup())
		}(i)
	}
	wg.Wait()

	var ok, conflicts int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case core.KindOf(err) == core.KindConflict:
			conflicts++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, n-1, conflicts)
}

func TestSignup_StoreFailure(t *testing.T) {
	svc, store := newTestService(t)
	store.err = errors.New("dial tcp: connection refused")

	_, err := svc.Signup(context.Background(), validSignup())
	require.Error(t, err)
	assert.Equal(t, core.KindInfrastructure, core.KindOf(err))
	assert.Equal(t, MsgSignupFailed, core.MessageOf(err, ""))
	assert.ErrorIs(t, err, store.err)
}

func TestLogin(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	signed, err := svc.Signup(ctx, SignupInput{Name: "Ann", Email: "ann@example.com", Password: "secret1", Role: "admin"})
	require.NoError(t, err)

	sess, err := svc.Login(ctx, LoginInput{Email: "ann@example.com", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, signed.User, sess.User)

	id, err := svc.Tokens().Verify(ctx, sess.Token)
	require.NoError(t, err)
	assert.Equal(t, RoleAdmin, id.Role)
}

func TestLogin_EnumerationResistant(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Signup(ctx, validSignup())
	require.NoError(t, err)

	_, wrongPassword := svc.Login(ctx, LoginInput{Email: "ann@example.com", Password: "wrong-password"})
	_, noAccount := svc.Login(ctx, LoginInput{Email: "bob@example.com", Password: "secret1"})

	require.Error(t, wrongPassword)
	require.Error(t, noAccount)
	assert.Equal(t, core.KindUnauthorized, core.KindOf(wrongPassword))
	assert.Equal(t, core.KindOf(wrongPassword), core.KindOf(noAccount))
	assert.Equal(t, wrongPassword.Error(), noAccount.Error())
	assert.Equal(t, MsgInvalidCredentials, core.MessageOf(noAccount, ""))
}

func TestLogin_Validation(t *testing.T) {
	svc, _ := newTestService(t)

	tests := []struct {
		name string
		in   LoginInput
		want string
	}{
		{"missing email", LoginInput{Password: "secret1"}, MsgLoginFieldsRequired},
		{"missing password", LoginInput{Email: "ann@example.com"}, MsgLoginFieldsRequired},
		{"malformed email", LoginInput{Email: "ann", Password: "secret1"}, MsgInvalidEmail},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Login(context.Background(), tt.in)
			require.Error(t, err)
			assert.Equal(t, core.KindValidation, core.KindOf(err))
			assert.Equal(t, tt.want, core.MessageOf(err, ""))
		})
	}
}

func TestCurrentUser(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	sess, err := svc.Signup(ctx, validSignup())
	require.NoError(t, err)

	user, err := svc.CurrentUser(ctx, sess.User.ID)
	require.NoError(t, err)
	assert.Equal(t, sess.User, user)

	_, err = svc.CurrentUser(ctx, "")
	assert.Equal(t, core.KindUnauthenticated, core.KindOf(err))

	store.delete("ann@example.com")
	_, err = svc.CurrentUser(ctx, sess.User.ID)
	assert.Equal(t, core.KindNotFound, core.KindOf(err))
	assert.Equal(t, MsgUserNotFound, core.MessageOf(err, ""))
}

func TestLogout_RevokesToken(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	sess, err := svc.Signup(ctx, validSignup())
	require.NoError(t, err)

	id, err := svc.Tokens().Verify(ctx, sess.Token)
	require.NoError(t, err)

	require.NoError(t, svc.Logout(ctx, id))

	_, err = svc.Tokens().Verify(ctx, sess.Token)
	assert.ErrorIs(t, err, ErrTokenRevoked)
}

func TestSignup_HashPoolBusy(t *testing.T) {
	store := newMemStore()
	limiter := core.NewLimiter("hash", 1, 1)
	svc := NewService(store, NewBcryptHasher(bcrypt.MinCost, limiter), NewTokenIssuer(testSecret), nil)

	require.True(t, limiter.TryAcquire())
	defer limiter.Release()

	_, err := svc.Signup(context.Background(), validSignup())
	require.Error(t, err)
	assert.Equal(t, core.KindBusy, core.KindOf(err))
}

type digestRecorder struct {
	PasswordHasher
	mu       sync.Mutex
	verified []string
}

func (d *digestRecorder) Verify(ctx context.Context, plaintext, digest string) (bool, error) {
	d.mu.Lock()
	d.verified = append(d.verified, digest)
	d.mu.Unlock()
	return d.PasswordHasher.Verify(ctx, plaintext, digest)
}

func TestLogin_MissingEmailWhileHashPoolBusy(t *testing.T) {
	store := newMemStore()
	limiter := core.NewLimiter("hash", 1, 1)
	hasher := &digestRecorder{PasswordHasher: NewBcryptHasher(bcrypt.MinCost, limiter)}
	svc := NewService(store, hasher, NewTokenIssuer(testSecret), nil)
	ctx := context.Background()
	ghost := LoginInput{Email: "ghost@example.com", Password: "secret1"}

	// The first missing-email login cannot get a hashing slot.
	require.True(t, limiter.TryAcquire())
	_, err := svc.Login(ctx, ghost)
	limiter.Release()
	require.Error(t, err)
	assert.Equal(t, core.KindBusy, core.KindOf(err))

	// Once the pool frees up, missing emails are compared against a real
	// digest rather than an empty one.
	for i := 0; i < 2; i++ {
		_, err = svc.Login(ctx, ghost)
		require.Error(t, err)
		assert.Equal(t, core.KindUnauthorized, core.KindOf(err))
	}

	require.Len(t, hasher.verified, 2)
	for _, d := range hasher.verified {
		assert.NotEmpty(t, d)
		_, costErr := bcrypt.Cost([]byte(d))
		assert.NoError(t, costErr)
	}
	assert.Equal(t, hasher.verified[0], hasher.verified[1])
}
