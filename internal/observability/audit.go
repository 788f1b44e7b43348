package observability

import (
	"context"
	"log/slog"
	"net/http"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

func Audit(r *http.Request, event string, attrs ...any) {
	base := []any{
		"event", event,
		"method", r.Method,
		"path", r.URL.Path,
		"request_id", chimiddleware.GetReqID(r.Context()),
	}
	base = append(base, attrs...)
	slog.InfoContext(r.Context(), "audit", base...)
}

// AuditBackground records an audit event that has no originating request, such as a detached sweep.
func AuditBackground(ctx context.Context, event string, attrs ...any) {
	slog.InfoContext(ctx, "audit", append([]any{"event", event}, attrs...)...)
}
