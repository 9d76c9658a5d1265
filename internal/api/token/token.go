// Package token resolves the bearer credential to an account identifier.
package token

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/snapdish/snapdish/internal/jwt"
)

var (
	ErrNoBearerToken = errors.New("token: missing bearer token")
	ErrNoAccountID   = errors.New("token: no account id in context")
)

type accountIDKeyType struct{}

var accountIDKey accountIDKeyType

// BearerToken extracts the credential from the Authorization header.
func BearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || raw == "" {
		return "", ErrNoBearerToken
	}
	return raw, nil
}

// NewAccessToken mints a signed token for an account. Used by tests and
// local tooling; production credentials come from the identity provider.
func NewAccessToken(accountID int64, secret []byte, version string) (string, error) {
	return jwt.GenerateJWT(jwt.JWTParams{
		AccountID: strconv.FormatInt(accountID, 10),
	}, secret, version)
}

// AccountIDFromToken validates the credential and resolves the account id.
func AccountIDFromToken(raw, version string, secret []byte) (int64, error) {
	parsed, err := jwt.ValidateJWT(raw, version, secret)
	if err != nil {
		return 0, err
	}
	sub, err := parsed.Claims.GetSubject()
	if err != nil {
		return 0, fmt.Errorf("token: extracting subject: %w", err)
	}
	accountID, err := strconv.ParseInt(sub, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("token: parsing account id: %w", err)
	}
	return accountID, nil
}

// AccountIDWithCtx stores the authenticated account id in the context.
func AccountIDWithCtx(ctx context.Context, accountID int64) context.Context {
	return context.WithValue(ctx, accountIDKey, accountID)
}

// AccountIDFromCtx extracts the authenticated account id.
func AccountIDFromCtx(ctx context.Context) (int64, error) {
	if v, ok := ctx.Value(accountIDKey).(int64); ok {
		return v, nil
	}
	return 0, ErrNoAccountID
}
