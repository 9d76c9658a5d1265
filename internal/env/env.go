// Package env provides a structure for managing application-wide dependencies.
package env

import (
	"context"
	"log/slog"

	"github.com/snapdish/snapdish/internal/config"
	"github.com/snapdish/snapdish/internal/database"
	"github.com/snapdish/snapdish/internal/importer"
	"github.com/snapdish/snapdish/internal/log"
	"github.com/snapdish/snapdish/internal/meter"
)

type Env struct {
	Logger   *slog.Logger
	Config   *config.Config
	Database *database.Database
	Importer *importer.Importer
	Gate     *meter.Gate
}

type envKeyType struct{}

var envKey envKeyType

// WithCtx stores the environment in the context.
func WithCtx(ctx context.Context, e *Env) context.Context {
	return context.WithValue(ctx, envKey, e)
}

// EnvFromCtx extracts the environment from the context, falling back to a
// null environment so handlers can always log.
func EnvFromCtx(ctx context.Context) *Env {
	if e, ok := ctx.Value(envKey).(*Env); ok {
		return e
	}
	return Null()
}

func Null() *Env {
	return &Env{
		Logger: log.NullLogger(),
	}
}
