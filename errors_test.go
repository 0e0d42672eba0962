package warehouse_test

import (
	"errors"
	"net/http"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	warehouse "github.com/goliatone/go-warehouse"
	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil error", nil, http.StatusOK},
		{"invalid credentials", warehouse.ErrInvalidCredentials, http.StatusUnauthorized},
		{"expired token", warehouse.ErrTokenExpired, http.StatusUnauthorized},
		{"revoked token", warehouse.ErrRevokedToken, http.StatusUnauthorized},
		{"insufficient permission", warehouse.ErrInsufficientPermission, http.StatusForbidden},
		{"account not verified", warehouse.ErrAccountNotVerified, http.StatusForbidden},
		{"user already exists", warehouse.ErrUserAlreadyExists, http.StatusConflict},
		{"tag already exists", warehouse.ErrTagAlreadyExists, http.StatusConflict},
		{"item not found", warehouse.ErrItemNotFound, http.StatusNotFound},
		{"password mismatch", warehouse.ErrPasswordMismatch, http.StatusBadRequest},
		{"invalid action token", warehouse.ErrInvalidActionToken, http.StatusBadRequest},
		{"plain error", errors.New("boom"), http.StatusInternalServerError},
		{"uncategorized rich error", goerrors.New("boom", goerrors.CategoryInternal), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, warehouse.HTTPStatus(tt.err))
		})
	}
}

func TestErrorTextCodes(t *testing.T) {
	assert.Equal(t, "INVALID_CREDENTIALS", warehouse.ErrInvalidCredentials.TextCode)
	assert.Equal(t, "REVOKED_TOKEN", warehouse.ErrRevokedToken.TextCode)
	assert.Equal(t, "USER_ALREADY_EXISTS", warehouse.ErrUserAlreadyExists.TextCode)
	assert.Equal(t, "INSUFFICIENT_PERMISSION", warehouse.ErrInsufficientPermission.TextCode)
	assert.Equal(t, "ACCOUNT_NOT_VERIFIED", warehouse.ErrAccountNotVerified.TextCode)
}
