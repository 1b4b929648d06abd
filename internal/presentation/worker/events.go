package workerpresentation

import (
	"context"

	domoutbox "github.com/Zhima-Mochi/krishi-prebook/internal/domain/outbox"
	"github.com/Zhima-Mochi/krishi-prebook/internal/observability"
	"github.com/Zhima-Mochi/krishi-prebook/internal/observability/logctx"
)

// WithEventLogging wraps a bus handler so every delivery runs with its own event
// context and a handler-scoped logger.
func WithEventLogging(base observability.Logger, handler string, next domoutbox.Handler) domoutbox.Handler {
	return func(ctx context.Context, e domoutbox.Event) error {
		ctx = WithEventContext(ctx, logctx.FromOr(ctx, base), map[string]string{
			"event":   e.EventName(),
			"handler": handler,
		})
		return next(ctx, e)
	}
}
