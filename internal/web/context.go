package web

import (
	"log/slog"
	"net/http"

	"github.com/JonMunkholm/moodlelogsmart/internal/core"
	"github.com/JonMunkholm/moodlelogsmart/internal/logging"
)

// requestLogger returns the request-scoped logger with the client IP and,
// when auth is enabled, the job owner.
func requestLogger(r *http.Request) *slog.Logger {
	ctx := r.Context()
	args := []any{"ip", core.ClientIPFromContext(ctx)}
	if owner := core.OwnerFromContext(ctx); owner != "" {
		args = append(args, "owner", owner)
	}
	return logging.WithFields(ctx, args...)
}
