package warehouse

import (
	"context"
	"fmt"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/uptrace/bun"
)

// SignupInput carries everything needed to open an account
type SignupInput struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Password  string `json:"password"`
}

// Auther orchestrates the account lifecycle flows: signup, email
// verification, login, token refresh, logout, and password reset.
type Auther struct {
	repo       RepositoryManager
	tokens     TokenService
	actions    *ActionTokenCodec
	hasher     PasswordAuthenticator
	blocklist  Blocklist
	mailer     Mailer
	logger     Logger
	baseURL    string
	accessTTL  time.Duration
	useHashIDs bool
}

var _ Authenticator = (*Auther)(nil)

// NewAuther returns a new Authenticator
func NewAuther(
	repo RepositoryManager,
	tokens TokenService,
	actions *ActionTokenCodec,
	hasher PasswordAuthenticator,
	blocklist Blocklist,
	mailer Mailer,
) *Auther {
	return &Auther{
		repo:      repo,
		tokens:    tokens,
		actions:   actions,
		hasher:    hasher,
		blocklist: blocklist,
		mailer:    mailer,
		logger:    defLogger{},
		baseURL:   "http://localhost:8080",
		accessTTL: time.Hour,
	}
}

func (s *Auther) WithLogger(logger Logger) *Auther {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// WithBaseURL sets the public URL embedded in emailed links
func (s *Auther) WithBaseURL(baseURL string) *Auther {
	if baseURL != "" {
		s.baseURL = strings.TrimRight(baseURL, "/")
	}
	return s
}

// WithAccessTTL sets the fallback revocation window used when a token being
// logged out carries no usable expiry
func (s *Auther) WithAccessTTL(ttl time.Duration) *Auther {
	if ttl > 0 {
		s.accessTTL = ttl
	}
	return s
}

// WithHashIDs derives new account ids deterministically from the email
// instead of random UUIDs
func (s *Auther) WithHashIDs(enabled bool) *Auther {
	s.useHashIDs = enabled
	return s
}

// TokenService returns the token service backing this Authenticator
func (s *Auther) TokenService() TokenService {
	return s.tokens
}

// Signup registers a new, unverified account and sends the verification
// email. The account is created even if the email cannot be enqueued; the
// user can log in once verified through a re-sent link.
func (s *Auther) Signup(ctx context.Context, input SignupInput) (*User, error) {
	email := normalizeEmail(input.Email)

	exists, err := s.repo.Users().Exists(ctx, email)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check for existing account")
	}
	if exists {
		return nil, ErrUserAlreadyExists
	}

	user := &User{}

	err = s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		hash, err := s.hasher.HashPassword(input.Password)
		if err != nil {
			var richErr *goerrors.Error
			if goerrors.As(err, &richErr) {
				return richErr
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
		}

		user.PasswordHash = hash
		user.Email = email
		user.FirstName = input.FirstName
		user.LastName = input.LastName
		user.Username = getUsername(input.Username, email)
		user.Role = RoleUser

		if s.useHashIDs {
			if id, err := hashid.NewUUID(email); err == nil {
				user.ID = id
			}
		}

		if user, err = s.repo.Users().RegisterTx(ctx, tx, user); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryConflict, "could not create user")
		}

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return nil, richErr
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "signup transaction failed")
	}

	if err := s.sendVerificationEmail(ctx, user); err != nil {
		// The account exists either way; surfacing this would roll the
		// user into an error page they cannot act on.
		s.logger.Error("signup failed to enqueue verification email for %s: %v", user.Email, err)
	}

	return user, nil
}

// VerifyEmail redeems an emailed verification token and marks the account
// verified. Verifying twice is a no-op.
func (s *Auther) VerifyEmail(ctx context.Context, token string) (*User, error) {
	email, err := s.actions.Decode(token, ScopeEmailVerification)
	if err != nil {
		return nil, ErrInvalidActionToken
	}

	user, err := s.repo.Users().GetByEmail(ctx, email)
	if err != nil {
		if goerrors.IsNotFound(err) {
			return nil, ErrInvalidActionToken
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load account for verification")
	}

	if user.EmailVerified {
		return user, nil
	}

	if err := s.repo.Users().MarkEmailVerified(ctx, user.ID); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to mark email verified")
	}

	user.EmailVerified = true
	return user, nil
}

// Login exchanges credentials for an access/refresh token pair. The
// identifier can be an email, a username, or a record id. A missing account
// and a wrong password are indistinguishable to the caller.
func (s *Auther) Login(ctx context.Context, identifier, password string) (*TokenPair, error) {
	user, err := s.repo.Users().GetByIdentifier(ctx, identifier)
	if err != nil {
		if goerrors.IsNotFound(err) {
			return nil, ErrInvalidCredentials
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load account for login")
	}

	if err := s.hasher.ComparePasswordAndHash(password, user.PasswordHash); err != nil {
		return nil, ErrInvalidCredentials
	}

	access, err := s.tokens.Issue(user.TokenUser(), TokenKindAccess, 0)
	if err != nil {
		return nil, err
	}

	refresh, err := s.tokens.Issue(user.TokenUser(), TokenKindRefresh, 0)
	if err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
	}, nil
}

// Refresh redeems a refresh token for a fresh access token. The account is
// re-read from persistence so the new token carries the current role, not
// the role at login time.
func (s *Auther) Refresh(ctx context.Context, claims *TokenClaims) (string, error) {
	if claims == nil || !claims.IsRefresh() {
		return "", ErrRefreshTokenRequired
	}

	if expires := claims.Expires(); expires.IsZero() || time.Now().After(expires) {
		return "", ErrTokenExpired
	}

	user, err := s.repo.Users().GetByEmail(ctx, claims.Email())
	if err != nil {
		if goerrors.IsNotFound(err) {
			return "", ErrInvalidCredentials
		}
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load account for token refresh")
	}

	return s.tokens.Issue(user.TokenUser(), TokenKindAccess, 0)
}

// Logout revokes the presented token for the remainder of its validity
// window. Logging out twice is a no-op.
func (s *Auther) Logout(ctx context.Context, claims *TokenClaims) error {
	if claims == nil || claims.TokenID() == "" {
		return ErrInvalidToken
	}

	ttl := s.accessTTL
	if expires := claims.Expires(); !expires.IsZero() {
		ttl = time.Until(expires)
	}
	if ttl <= 0 {
		return nil
	}

	return s.blocklist.Revoke(ctx, claims.TokenID(), ttl)
}

// RequestPasswordReset sends a reset link if the email maps to an account.
// It reports success for unknown emails so the endpoint cannot be used to
// enumerate accounts.
func (s *Auther) RequestPasswordReset(ctx context.Context, email string) error {
	user, err := s.repo.Users().GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if goerrors.IsNotFound(err) {
			s.logger.Info("password reset requested for unknown email")
			return nil
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load account for password reset")
	}

	token, err := s.actions.Generate(user.Email, ScopePasswordReset)
	if err != nil {
		return err
	}

	return s.SendMail(ctx,
		[]string{user.Email},
		"Reset your password",
		s.passwordResetBody(user, token),
	)
}

// ConfirmPasswordReset redeems a reset token and installs a new password.
// The password pair is checked before the token so a user with a fat
// fingered confirmation field gets the cheap error first.
func (s *Auther) ConfirmPasswordReset(ctx context.Context, token, newPassword, confirmPassword string) error {
	if newPassword != confirmPassword {
		return ErrPasswordMismatch
	}

	email, err := s.actions.Decode(token, ScopePasswordReset)
	if err != nil {
		return ErrInvalidActionToken
	}

	user, err := s.repo.Users().GetByEmail(ctx, email)
	if err != nil {
		if goerrors.IsNotFound(err) {
			return ErrInvalidActionToken
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load account for password reset")
	}

	hash, err := s.hasher.HashPassword(newPassword)
	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
	}

	if err := s.repo.Users().ResetPassword(ctx, user.ID, hash); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to store new password")
	}

	return nil
}

// SendMail enqueues an outbound email for asynchronous delivery
func (s *Auther) SendMail(ctx context.Context, recipients []string, subject, htmlBody string) error {
	return s.mailer.Enqueue(ctx, MailMessage{
		Recipients: recipients,
		Subject:    subject,
		HTMLBody:   htmlBody,
	})
}

func (s *Auther) sendVerificationEmail(ctx context.Context, user *User) error {
	token, err := s.actions.Generate(user.Email, ScopeEmailVerification)
	if err != nil {
		return err
	}

	return s.SendMail(ctx,
		[]string{user.Email},
		"Verify your email address",
		s.verificationBody(user, token),
	)
}

func (s *Auther) verificationBody(user *User, token string) string {
	link := fmt.Sprintf("%s/api/v1/auth/verify/%s", s.baseURL, token)
	return fmt.Sprintf(
		`<p>Hi %s,</p>
<p>Welcome to the warehouse. Confirm your email address to activate your account:</p>
<p><a href="%s">Verify email</a></p>
<p>If you did not sign up, you can ignore this message.</p>`,
		displayName(user), link,
	)
}

func (s *Auther) passwordResetBody(user *User, token string) string {
	link := fmt.Sprintf("%s/password-reset-confirm/%s", s.baseURL, token)
	return fmt.Sprintf(
		`<p>Hi %s,</p>
<p>We received a request to reset your password:</p>
<p><a href="%s">Choose a new password</a></p>
<p>The link expires in 24 hours. If you did not request this, you can ignore this message.</p>`,
		displayName(user), link,
	)
}

func displayName(user *User) string {
	if user.FirstName != "" {
		return user.FirstName
	}
	return user.Username
}

func getUsername(username, email string) string {
	if username != "" {
		return username
	}

	if strings.Contains(email, "@") {
		username = strings.Split(email, "@")[0]
	}

	return username
}
