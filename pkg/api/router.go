package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/worshipwaves/WDweb-sub002/internal/logger"
	"github.com/worshipwaves/WDweb-sub002/pkg/api/handlers"
	apimw "github.com/worshipwaves/WDweb-sub002/pkg/api/middleware"
	"github.com/worshipwaves/WDweb-sub002/pkg/metrics"
	"github.com/worshipwaves/WDweb-sub002/pkg/runtime"
)

// NewRouter creates and configures the chi router with all middleware and routes.
//
// Routes:
//   - GET  /health                      liveness
//   - GET  /health/ready                store health
//   - GET  /api/v1/status               prefetch progress
//   - GET  /api/v1/items/{id}           per-key cache state of an item
//   - POST /api/v1/items/{id}/load      load an item ahead of the scheduler
//   - POST /api/v1/scheduler/pause      pause scheduling
//   - POST /api/v1/scheduler/resume     resume scheduling
//   - POST /api/v1/activity             report a user interaction
//   - GET  /metrics                     Prometheus, when metrics are enabled
//
// Every request outside /health and /metrics counts as foreground work for
// the idle host.
func NewRouter(rt *runtime.Runtime, requestTimeout time.Duration) http.Handler {
	if requestTimeout <= 0 {
		requestTimeout = 30 * time.Second
	}

	r := chi.NewRouter()

	// Middleware stack - order matters
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))
	r.Use(apimw.Foreground(rt, "/health", "/metrics"))

	healthHandler := handlers.NewHealthHandler(rt)
	prefetchHandler := handlers.NewPrefetchHandler(rt)
	activityHandler := handlers.NewActivityHandler(rt.Events())

	r.Route("/health", func(r chi.Router) {
		r.Get("/", healthHandler.Liveness)
		r.Get("/ready", healthHandler.Readiness)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", prefetchHandler.Status)

		r.Route("/items/{id}", func(r chi.Router) {
			r.Get("/", prefetchHandler.Item)
			r.Post("/load", prefetchHandler.Load)
		})

		r.Route("/scheduler", func(r chi.Router) {
			r.Post("/pause", prefetchHandler.Pause)
			r.Post("/resume", prefetchHandler.Resume)
		})

		r.Post("/activity", activityHandler.Report)
	})

	if h := metrics.Handler(); h != nil {
		r.Method(http.MethodGet, "/metrics", h)
	}

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/health", http.StatusTemporaryRedirect)
	})

	return r
}

// requestLogger logs request start at DEBUG and completion at INFO.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := middleware.GetReqID(r.Context())

		logger.Debug("API request started",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"remote_addr", r.RemoteAddr,
		)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		logger.Info("API request completed",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			logger.DurationMs(start),
		)
	})
}
