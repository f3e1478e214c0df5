package app

import (
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

// logRequests injects a request-scoped logger into the context and logs every
// request on completion with status, duration, and request ID.
func logRequests(lg *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

			ctx := zctx.Base(r.Context(), lg)
			if reqID := chimw.GetReqID(ctx); reqID != "" {
				ctx = zctx.With(ctx, zap.String("request_id", reqID))
			}

			next.ServeHTTP(ww, r.WithContext(ctx))

			zctx.From(ctx).Info("Request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
			)
		})
	}
}
