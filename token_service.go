package warehouse

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// JWTTokenService implements TokenService using HS256 signed JWTs
type JWTTokenService struct {
	signingKey []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	logger     Logger
}

// NewTokenService creates a new TokenService instance
func NewTokenService(signingKey []byte, accessTTL, refreshTTL time.Duration, logger Logger) TokenService {
	if logger == nil {
		logger = defLogger{}
	}
	if accessTTL <= 0 {
		accessTTL = time.Hour
	}
	if refreshTTL <= 0 {
		refreshTTL = 48 * time.Hour
	}
	return &JWTTokenService{
		signingKey: signingKey,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		logger:     logger,
	}
}

// Issue creates a signed token of the given kind for the user. A ttl of 0
// selects the configured default for the kind. Refresh tokens never carry a
// role claim: the role is re-read from persistence when they are redeemed.
func (ts *JWTTokenService) Issue(user TokenUser, kind TokenKind, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = ts.accessTTL
		if kind == TokenKindRefresh {
			ttl = ts.refreshTTL
		}
	}

	if kind == TokenKindRefresh {
		user.Role = ""
	}

	now := time.Now()
	claims := &TokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.UID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		User:    user,
		Refresh: kind == TokenKindRefresh,
	}

	ensureTokenID(&claims.RegisteredClaims)

	return ts.SignClaims(claims)
}

// SignClaims signs arbitrary token claims using the configured signing key.
func (ts *JWTTokenService) SignClaims(claims *TokenClaims) (string, error) {
	if claims == nil {
		return "", errors.New("claims must not be nil", errors.CategoryInternal)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signedString, err := token.SignedString(ts.signingKey)
	if err != nil {
		return "", errors.Wrap(err, errors.CategoryInternal, "failed to sign JWT")
	}

	return signedString, nil
}

// Decode parses and validates a token string, returning structured claims.
// Expired tokens are reported as ErrTokenExpired; every other failure mode
// collapses into ErrInvalidToken so the caller cannot distinguish them.
func (ts *JWTTokenService) Decode(raw string) (*TokenClaims, error) {
	token, err := jwt.ParseWithClaims(raw, &TokenClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			ts.logger.Error("token decode encountered unexpected signing method: %v", t.Header["alg"])
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return ts.signingKey, nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, errors.Wrap(err, ErrInvalidToken.Category, ErrInvalidToken.Message).
			WithTextCode(ErrInvalidToken.TextCode).
			WithCode(ErrInvalidToken.Code)
	}

	claims, ok := token.Claims.(*TokenClaims)
	if !ok || !token.Valid {
		ts.logger.Error("token decode could not validate claims")
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// AccessTTL returns the configured access token lifetime.
func (ts *JWTTokenService) AccessTTL() time.Duration {
	return ts.accessTTL
}

// RefreshTTL returns the configured refresh token lifetime.
func (ts *JWTTokenService) RefreshTTL() time.Duration {
	return ts.refreshTTL
}

func ensureTokenID(claims *jwt.RegisteredClaims) {
	if claims.ID == "" {
		claims.ID = uuid.NewString()
	}
}
