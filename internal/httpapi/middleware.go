package httpapi

import (
	"net/http"
	"slices"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/technobid/auction-backend/internal/logging"
	"github.com/technobid/auction-backend/internal/metrics"
)

// requestLogger logs one line per request, records HTTP metrics under the
// chi route pattern and stores a request-scoped logger in the context.
func requestLogger(base *zap.Logger, rec *metrics.Recorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			reqID := middleware.GetReqID(r.Context())
			if reqID != "" {
				w.Header().Set(middleware.RequestIDHeader, reqID)
			}

			log := base.With(
				zap.String(logging.FieldRequestID, reqID),
				zap.String(logging.FieldMethod, r.Method),
				zap.String(logging.FieldPath, r.URL.Path),
				zap.String(logging.FieldRemoteAddr, r.RemoteAddr),
			)
			r = r.WithContext(logging.WithLogger(r.Context(), log))

			// the wrapper keeps http.Hijacker so websocket upgrades still work
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			route := r.URL.Path
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}
			d := time.Since(start)
			rec.RecordHTTPRequest(r.Method, route, status, d)
			log.Info("request complete",
				zap.String(logging.FieldRoute, route),
				zap.Int(logging.FieldStatusCode, status),
				zap.Int64(logging.FieldDurationMS, d.Milliseconds()),
			)
		})
	}
}

// cors answers preflights and tags responses for the configured origins.
// An empty list disables cross-origin access.
func cors(origins []string) func(http.Handler) http.Handler {
	wildcard := slices.Contains(origins, "*")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" && (wildcard || slices.Contains(origins, origin)) {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-Id")
				w.Header().Add("Vary", "Origin")
				if r.Method == http.MethodOptions {
					w.WriteHeader(http.StatusNoContent)
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
