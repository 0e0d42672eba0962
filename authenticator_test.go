package warehouse_test

import (
	"context"
	"database/sql"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goliatone/go-repository-bun"
	warehouse "github.com/goliatone/go-warehouse"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"golang.org/x/crypto/bcrypt"
)

// mockUsers stubs the persistence surface the auth flows touch. Unused
// repository methods panic through the embedded nil interface.
type mockUsers struct {
	warehouse.Users
	mu      sync.Mutex
	byEmail map[string]*warehouse.User
}

func newMockUsers() *mockUsers {
	return &mockUsers{byEmail: map[string]*warehouse.User{}}
}

func (m *mockUsers) Exists(_ context.Context, email string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.byEmail[email]
	return ok, nil
}

func (m *mockUsers) GetByEmail(_ context.Context, email string) (*warehouse.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.byEmail[email]
	if !ok {
		return nil, repository.NewRecordNotFound()
	}
	clone := *user
	return &clone, nil
}

func (m *mockUsers) GetByIdentifier(ctx context.Context, identifier string, _ ...repository.SelectCriteria) (*warehouse.User, error) {
	if user, err := m.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(identifier))); err == nil {
		return user, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, user := range m.byEmail {
		if user.Username == identifier || user.ID.String() == identifier {
			clone := *user
			return &clone, nil
		}
	}
	return nil, repository.NewRecordNotFound()
}

func (m *mockUsers) RegisterTx(ctx context.Context, tx bun.IDB, record *warehouse.User) (*warehouse.User, error) {
	return m.CreateTx(ctx, tx, record)
}

func (m *mockUsers) CreateTx(_ context.Context, _ bun.IDB, record *warehouse.User, _ ...repository.InsertCriteria) (*warehouse.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	if record.Role == "" {
		record.Role = warehouse.RoleUser
	}
	m.byEmail[record.Email] = record
	return record, nil
}

func (m *mockUsers) MarkEmailVerified(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, user := range m.byEmail {
		if user.ID == id {
			user.EmailVerified = true
			return nil
		}
	}
	return repository.NewRecordNotFound()
}

func (m *mockUsers) ResetPassword(_ context.Context, id uuid.UUID, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, user := range m.byEmail {
		if user.ID == id {
			user.PasswordHash = hash
			return nil
		}
	}
	return repository.NewRecordNotFound()
}

func (m *mockUsers) setRole(email string, role warehouse.UserRole) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if user, ok := m.byEmail[email]; ok {
		user.Role = role
	}
}

func (m *mockUsers) remove(email string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.byEmail, email)
}

type mockRepo struct {
	warehouse.RepositoryManager
	users *mockUsers
}

func (m *mockRepo) Users() warehouse.Users { return m.users }

func (m *mockRepo) RunInTx(ctx context.Context, _ *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	return f(ctx, bun.Tx{})
}

type autherFixture struct {
	auther    *warehouse.Auther
	users     *mockUsers
	mailer    *warehouse.MemoryMailQueue
	blocklist *warehouse.MemoryBlocklist
	tokens    warehouse.TokenService
	actions   *warehouse.ActionTokenCodec
}

func newAutherFixture() *autherFixture {
	users := newMockUsers()
	mailer := warehouse.NewMemoryMailQueue()
	blocklist := warehouse.NewMemoryBlocklist()
	tokens := warehouse.NewTokenService([]byte("test-signing-key"), time.Hour, 48*time.Hour, nil)
	actions := warehouse.NewActionTokenCodec([]byte("test-signing-key"), "", 24*time.Hour)

	auther := warehouse.NewAuther(
		&mockRepo{users: users},
		tokens,
		actions,
		warehouse.NewBcryptHasher(bcrypt.MinCost),
		blocklist,
		mailer,
	)

	return &autherFixture{
		auther:    auther,
		users:     users,
		mailer:    mailer,
		blocklist: blocklist,
		tokens:    tokens,
		actions:   actions,
	}
}

func (f *autherFixture) signup(t *testing.T, email, password string) *warehouse.User {
	t.Helper()
	user, err := f.auther.Signup(context.Background(), warehouse.SignupInput{
		Username: "clerk",
		Email:    email,
		Password: password,
	})
	require.NoError(t, err)
	return user
}

func TestAuther_Signup(t *testing.T) {
	f := newAutherFixture()
	ctx := context.Background()

	user := f.signup(t, "clerk@example.com", "password123")

	assert.Equal(t, "clerk@example.com", user.Email)
	assert.Equal(t, warehouse.RoleUser, user.Role)
	assert.False(t, user.EmailVerified)
	assert.NotEqual(t, uuid.Nil, user.ID)
	assert.NotEmpty(t, user.PasswordHash)
	assert.NotEqual(t, "password123", user.PasswordHash)

	t.Run("sends a verification email", func(t *testing.T) {
		messages := f.mailer.Messages()
		require.Len(t, messages, 1)
		assert.Equal(t, []string{"clerk@example.com"}, messages[0].Recipients)
		assert.Contains(t, messages[0].HTMLBody, "/api/v1/auth/verify/")
	})

	t.Run("duplicate email is rejected", func(t *testing.T) {
		_, err := f.auther.Signup(ctx, warehouse.SignupInput{
			Email:    "clerk@example.com",
			Password: "different456",
		})
		assert.Equal(t, warehouse.ErrUserAlreadyExists, err)
	})

	t.Run("email is normalized", func(t *testing.T) {
		_, err := f.auther.Signup(ctx, warehouse.SignupInput{
			Email:    "  CLERK@example.com ",
			Password: "different456",
		})
		assert.Equal(t, warehouse.ErrUserAlreadyExists, err)
	})

	t.Run("username falls back to email local part", func(t *testing.T) {
		other, err := f.auther.Signup(ctx, warehouse.SignupInput{
			Email:    "packer@example.com",
			Password: "password123",
		})
		require.NoError(t, err)
		assert.Equal(t, "packer", other.Username)
	})

	t.Run("empty password is rejected", func(t *testing.T) {
		_, err := f.auther.Signup(ctx, warehouse.SignupInput{
			Email: "empty@example.com",
		})
		assert.Error(t, err)
	})
}

func TestAuther_SignupWithHashIDs(t *testing.T) {
	f := newAutherFixture()
	f.auther.WithHashIDs(true)

	user := f.signup(t, "clerk@example.com", "password123")

	want, err := hashid.NewUUID("clerk@example.com")
	require.NoError(t, err)
	assert.Equal(t, want, user.ID)
}

func TestAuther_VerifyEmail(t *testing.T) {
	f := newAutherFixture()
	ctx := context.Background()

	f.signup(t, "clerk@example.com", "password123")

	token, err := f.actions.Generate("clerk@example.com", warehouse.ScopeEmailVerification)
	require.NoError(t, err)

	user, err := f.auther.VerifyEmail(ctx, token)
	require.NoError(t, err)
	assert.True(t, user.EmailVerified)

	stored, err := f.users.GetByEmail(ctx, "clerk@example.com")
	require.NoError(t, err)
	assert.True(t, stored.EmailVerified)

	t.Run("verifying twice is a no-op", func(t *testing.T) {
		again, err := f.auther.VerifyEmail(ctx, token)
		require.NoError(t, err)
		assert.True(t, again.EmailVerified)
	})

	t.Run("garbage token is rejected", func(t *testing.T) {
		_, err := f.auther.VerifyEmail(ctx, "garbage")
		assert.Equal(t, warehouse.ErrInvalidActionToken, err)
	})

	t.Run("password reset token cannot verify an email", func(t *testing.T) {
		reset, err := f.actions.Generate("clerk@example.com", warehouse.ScopePasswordReset)
		require.NoError(t, err)

		_, err = f.auther.VerifyEmail(ctx, reset)
		assert.Equal(t, warehouse.ErrInvalidActionToken, err)
	})

	t.Run("token for an unknown account is rejected", func(t *testing.T) {
		orphan, err := f.actions.Generate("ghost@example.com", warehouse.ScopeEmailVerification)
		require.NoError(t, err)

		_, err = f.auther.VerifyEmail(ctx, orphan)
		assert.Equal(t, warehouse.ErrInvalidActionToken, err)
	})
}

func TestAuther_Login(t *testing.T) {
	f := newAutherFixture()
	ctx := context.Background()

	f.signup(t, "clerk@example.com", "password123")

	t.Run("valid credentials yield a token pair", func(t *testing.T) {
		pair, err := f.auther.Login(ctx, "clerk@example.com", "password123")
		require.NoError(t, err)
		require.NotNil(t, pair)

		access, err := f.tokens.Decode(pair.AccessToken)
		require.NoError(t, err)
		assert.False(t, access.IsRefresh())
		assert.Equal(t, warehouse.RoleUser, access.Role())

		refresh, err := f.tokens.Decode(pair.RefreshToken)
		require.NoError(t, err)
		assert.True(t, refresh.IsRefresh())
		assert.Empty(t, string(refresh.Role()))
	})

	t.Run("username works as the login identifier", func(t *testing.T) {
		pair, err := f.auther.Login(ctx, "clerk", "password123")
		require.NoError(t, err)
		assert.NotNil(t, pair)
	})

	t.Run("unknown email and wrong password are indistinguishable", func(t *testing.T) {
		_, unknownErr := f.auther.Login(ctx, "ghost@example.com", "password123")
		_, wrongErr := f.auther.Login(ctx, "clerk@example.com", "wrongpassword")

		assert.Equal(t, warehouse.ErrInvalidCredentials, unknownErr)
		assert.Equal(t, warehouse.ErrInvalidCredentials, wrongErr)
	})
}

func TestAuther_Refresh(t *testing.T) {
	f := newAutherFixture()
	ctx := context.Background()

	f.signup(t, "clerk@example.com", "password123")
	pair, err := f.auther.Login(ctx, "clerk@example.com", "password123")
	require.NoError(t, err)

	refreshClaims, err := f.tokens.Decode(pair.RefreshToken)
	require.NoError(t, err)

	t.Run("yields a fresh access token", func(t *testing.T) {
		raw, err := f.auther.Refresh(ctx, refreshClaims)
		require.NoError(t, err)

		claims, err := f.tokens.Decode(raw)
		require.NoError(t, err)
		assert.False(t, claims.IsRefresh())
		assert.Equal(t, warehouse.RoleUser, claims.Role())
	})

	t.Run("picks up role changes from persistence", func(t *testing.T) {
		f.users.setRole("clerk@example.com", warehouse.RoleAdmin)

		raw, err := f.auther.Refresh(ctx, refreshClaims)
		require.NoError(t, err)

		claims, err := f.tokens.Decode(raw)
		require.NoError(t, err)
		assert.Equal(t, warehouse.RoleAdmin, claims.Role())
	})

	t.Run("rejects access tokens", func(t *testing.T) {
		accessClaims, err := f.tokens.Decode(pair.AccessToken)
		require.NoError(t, err)

		_, err = f.auther.Refresh(ctx, accessClaims)
		assert.Equal(t, warehouse.ErrRefreshTokenRequired, err)
	})

	t.Run("rejects nil claims", func(t *testing.T) {
		_, err := f.auther.Refresh(ctx, nil)
		assert.Equal(t, warehouse.ErrRefreshTokenRequired, err)
	})

	t.Run("rejects tokens for deleted accounts", func(t *testing.T) {
		f.users.remove("clerk@example.com")

		_, err := f.auther.Refresh(ctx, refreshClaims)
		assert.Equal(t, warehouse.ErrInvalidCredentials, err)
	})
}

func TestAuther_Logout(t *testing.T) {
	f := newAutherFixture()
	ctx := context.Background()

	f.signup(t, "clerk@example.com", "password123")
	pair, err := f.auther.Login(ctx, "clerk@example.com", "password123")
	require.NoError(t, err)

	claims, err := f.tokens.Decode(pair.AccessToken)
	require.NoError(t, err)

	require.NoError(t, f.auther.Logout(ctx, claims))

	revoked, err := f.blocklist.IsRevoked(ctx, claims.TokenID())
	require.NoError(t, err)
	assert.True(t, revoked)

	t.Run("logging out twice is a no-op", func(t *testing.T) {
		assert.NoError(t, f.auther.Logout(ctx, claims))
	})

	t.Run("claims without a token id are rejected", func(t *testing.T) {
		assert.Equal(t, warehouse.ErrInvalidToken, f.auther.Logout(ctx, &warehouse.TokenClaims{}))
	})
}

func TestAuther_RequestPasswordReset(t *testing.T) {
	f := newAutherFixture()
	ctx := context.Background()

	f.signup(t, "clerk@example.com", "password123")
	baseline := len(f.mailer.Messages())

	t.Run("unknown email reports success and sends nothing", func(t *testing.T) {
		require.NoError(t, f.auther.RequestPasswordReset(ctx, "ghost@example.com"))
		assert.Len(t, f.mailer.Messages(), baseline)
	})

	t.Run("known email receives a reset link", func(t *testing.T) {
		require.NoError(t, f.auther.RequestPasswordReset(ctx, "clerk@example.com"))

		messages := f.mailer.Messages()
		require.Len(t, messages, baseline+1)
		last := messages[len(messages)-1]
		assert.Equal(t, []string{"clerk@example.com"}, last.Recipients)
		assert.Contains(t, last.HTMLBody, "/password-reset-confirm/")
	})
}

func TestAuther_ConfirmPasswordReset(t *testing.T) {
	f := newAutherFixture()
	ctx := context.Background()

	f.signup(t, "clerk@example.com", "password123")

	t.Run("password mismatch is reported before the token is inspected", func(t *testing.T) {
		err := f.auther.ConfirmPasswordReset(ctx, "garbage", "newpassword", "different")
		assert.Equal(t, warehouse.ErrPasswordMismatch, err)
	})

	t.Run("garbage token is rejected", func(t *testing.T) {
		err := f.auther.ConfirmPasswordReset(ctx, "garbage", "newpassword", "newpassword")
		assert.Equal(t, warehouse.ErrInvalidActionToken, err)
	})

	t.Run("email verification token cannot reset a password", func(t *testing.T) {
		verify, err := f.actions.Generate("clerk@example.com", warehouse.ScopeEmailVerification)
		require.NoError(t, err)

		err = f.auther.ConfirmPasswordReset(ctx, verify, "newpassword", "newpassword")
		assert.Equal(t, warehouse.ErrInvalidActionToken, err)
	})

	t.Run("valid token installs the new password", func(t *testing.T) {
		token, err := f.actions.Generate("clerk@example.com", warehouse.ScopePasswordReset)
		require.NoError(t, err)

		require.NoError(t, f.auther.ConfirmPasswordReset(ctx, token, "newpassword", "newpassword"))

		_, err = f.auther.Login(ctx, "clerk@example.com", "password123")
		assert.Equal(t, warehouse.ErrInvalidCredentials, err)

		pair, err := f.auther.Login(ctx, "clerk@example.com", "newpassword")
		require.NoError(t, err)
		assert.NotNil(t, pair)
	})
}
