package handler

import (
	"context"
	"net/http"
	"sort"
	"time"

	"admin-auth/internal/util"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// HealthFunc reports whether the service can take traffic and which
// dependencies are failing. Failures alongside healthy=true mean degraded.
type HealthFunc func(ctx context.Context) (bool, map[string]error)

type RouterConfig struct {
	AllowedOrigins []string
	RequestTimeout time.Duration
	Health         HealthFunc
}

// NewRouter builds the chi router shared by the local server and the Lambda
// adapters. Each registrar mounts one component's routes.
func NewRouter(cfg RouterConfig, registrars ...func(chi.Router)) *chi.Mux {
	router := chi.NewRouter()

	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(LoggerMiddleware())
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(timeout))

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	if len(origins) == 1 && origins[0] == "*" {
		// cors only answers requests that carry an Origin header
		router.Use(allowAnyOrigin)
	}
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		MaxAge:         300,
	}))

	router.Get("/health", healthHandler(cfg.Health))

	for _, register := range registrars {
		register(router)
	}

	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respondWithError(w, http.StatusNotFound, "endpoint not found")
	})
	router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		respondWithError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	return router
}

func allowAnyOrigin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		next.ServeHTTP(w, r)
	})
}

func healthHandler(check HealthFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if check == nil {
			respondWithJSON(w, http.StatusOK, map[string]string{"status": "healthy", "service": "admin-auth"})
			return
		}

		healthy, failures := check(r.Context())
		if len(failures) == 0 && healthy {
			respondWithJSON(w, http.StatusOK, map[string]string{"status": "healthy", "service": "admin-auth"})
			return
		}

		names := make([]string, 0, len(failures))
		for name, err := range failures {
			names = append(names, name)
			util.Warn("Health check failed", util.String("dependency", name), util.ErrorField(err))
		}
		sort.Strings(names)

		status, label := http.StatusServiceUnavailable, "unhealthy"
		if healthy {
			status, label = http.StatusOK, "degraded"
		}
		respondWithJSON(w, status, map[string]interface{}{
			"status": label,
			"failed": names,
		})
	}
}

// LoggerMiddleware logs one line per request with the final status.
func LoggerMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			defer func() {
				util.Info("HTTP request",
					util.String("method", r.Method),
					util.String("path", r.URL.Path),
					util.String("remote_addr", r.RemoteAddr),
					util.String("request_id", middleware.GetReqID(r.Context())),
					util.Int("status", ww.Status()),
					util.Duration("duration", time.Since(start)),
					util.String("user_agent", r.UserAgent()),
				)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
