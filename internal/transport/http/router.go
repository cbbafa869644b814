package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"iq-test-service/internal/auth"
	"iq-test-service/internal/logger"
)

// NewRouter wires the public catalog routes and the authenticated results routes.
func NewRouter(h *Handler, clock *ClockHandler, verifier *auth.Verifier, corsOrigins []string, log *logger.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer, middleware.StripSlashes)
	r.Use(requestLogger(log))
	if len(corsOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   corsOrigins,
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Authorization", "Content-Type"},
			ExposedHeaders:   []string{"Content-Length"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/tests", h.ListTests)
	r.Get("/questions", h.ListQuestions)

	r.Route("/results", func(rr chi.Router) {
		rr.Use(verifier.Middleware(func(w http.ResponseWriter, err error) {
			writeError(w, log, err)
		}))
		rr.Post("/start", h.StartAttempt)
		rr.Post("/submit", h.SubmitAttempt)
		rr.Get("/history", h.History)
		rr.Get("/clock", clock.ServeWS)
	})
	return r
}

func requestLogger(log *logger.Logger) func(http.Handler) http.Handler {
	log = log.With("component", "access")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Info("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration", time.Since(start).String(),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}
