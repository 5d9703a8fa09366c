// Package composables carries request-scoped values through a context.
package composables

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/iota-uz/unicorn-warehouse/pkg/logging"
)

type loggerKey struct{}

// WithLogger returns a new context carrying logger.
func WithLogger(ctx context.Context, logger *logrus.Entry) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// UseLogger returns the logger from the context, or a no-op entry when none
// was attached.
func UseLogger(ctx context.Context) *logrus.Entry {
	if logger, ok := ctx.Value(loggerKey{}).(*logrus.Entry); ok && logger != nil {
		return logger
	}
	return logging.Nop()
}
