// Package middleware contains middleware functions for the API.
package middleware

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/httplog/v3"
	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"

	apiError "github.com/snapdish/snapdish/internal/api/error"
	"github.com/snapdish/snapdish/internal/api/requestid"
	"github.com/snapdish/snapdish/internal/api/token"
	"github.com/snapdish/snapdish/internal/env"
	"github.com/snapdish/snapdish/internal/log"
)

// InjectEnv injects an environment struct into the request context.
func InjectEnv(environment *env.Env) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(env.WithCtx(r.Context(), environment)))
		})
	}
}

func LogRequest(logger *slog.Logger) func(http.Handler) http.Handler {
	return httplog.RequestLogger(logger, &httplog.Options{
		LogExtraAttrs: func(r *http.Request, reqBody string, respStatus int) []slog.Attr {
			if id := requestid.ExtractRequestID(r.Context()); id != 0 {
				return []slog.Attr{slog.Uint64("log_id", id)}
			}
			return []slog.Attr{slog.String("log_id", "N/A")}
		},
	})
}

// AddRequestID adds a request ID to the request context.
func AddRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := ulid.Now()
		r = r.WithContext(log.AppendCtx(r.Context(), slog.Uint64("log_id", requestID)))
		r = r.WithContext(requestid.InjectRequestID(r.Context(), requestID))
		next.ServeHTTP(w, r)
	})
}

// Authenticate resolves the bearer credential to an account identifier. Its
// absence is a hard failure before any pipeline stage runs.
func Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		e := env.EnvFromCtx(r.Context())
		requestID := fmt.Sprintf("%d", requestid.ExtractRequestID(r.Context()))

		raw, err := token.BearerToken(r)
		if err != nil {
			e.Logger.ErrorContext(r.Context(), "missing bearer token", slog.Any("error", err))
			_ = apiError.EncodeError(w, apiError.InvalidAccessToken, "missing bearer token", requestID)
			return
		}

		accountID, err := token.AccountIDFromToken(raw,
			e.Config.AppSecretVersion, []byte(e.Config.AppSecret))
		if errors.Is(err, jwt.ErrTokenExpired) {
			e.Logger.ErrorContext(r.Context(), "access token expired", slog.Any("error", err))
			_ = apiError.EncodeError(w, apiError.ExpiredAccessToken, "access token expired", requestID)
			return
		} else if err != nil {
			e.Logger.ErrorContext(r.Context(), "invalid access token", slog.Any("error", err))
			_ = apiError.EncodeError(w, apiError.InvalidAccessToken, "invalid access token", requestID)
			return
		}

		r = r.WithContext(log.AppendCtx(r.Context(), slog.Int64("account_id", accountID)))
		r = r.WithContext(token.AccountIDWithCtx(r.Context(), accountID))
		next.ServeHTTP(w, r)
	})
}
