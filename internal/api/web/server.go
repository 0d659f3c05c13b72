package web

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/rs/zerolog/log"

	app "vqa-bot/internal/application"
	"vqa-bot/internal/container"
	"vqa-bot/internal/domain/entity"
)

// Server HTTP-сервер с демо-страницей и JSON API
type Server struct {
	sessions      *app.SessionService
	qa            *app.QAService
	maxImageBytes int64
	inferTimeout  time.Duration
	router        chi.Router
}

// Options параметры сервера
type Options struct {
	MaxImageBytes    int64
	InferenceTimeout time.Duration
}

// NewServer создаёт сервер и настраивает маршруты
func NewServer(c *container.Container, opts Options) *Server {
	if opts.MaxImageBytes <= 0 {
		opts.MaxImageBytes = entity.DefaultMaxImageBytes
	}
	if opts.InferenceTimeout <= 0 {
		opts.InferenceTimeout = app.DefaultInferenceTimeout
	}

	s := &Server{
		sessions:      c.SessionService,
		qa:            c.QAService,
		maxImageBytes: opts.MaxImageBytes,
		inferTimeout:  opts.InferenceTimeout,
	}
	s.setupRouter()
	return s
}

func (s *Server) setupRouter() {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	// Запас сверху на загрузку и ответ модели
	r.Use(middleware.Timeout(s.inferTimeout + 30*time.Second))

	r.Get("/", s.handleIndex)
	r.Get("/health", s.handleHealth)
	r.Get("/image", s.handleImage)
	r.Post("/image", s.handleUpload)
	r.Post("/ask", s.handleAsk)
	r.Post("/clear", s.handleClear)
	r.Post("/reset", s.handleReset)

	r.Route("/api", func(r chi.Router) {
		r.Post("/ask", s.handleAPIAsk)
		r.Get("/session", s.handleAPISession)
	})

	s.router = r
}

// ServeHTTP позволяет использовать Server как http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Start запускает сервер и останавливает его при отмене контекста
func (s *Server) Start(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: s.inferTimeout + 45*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("web server started")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down web server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}
	log.Info().Msg("web server stopped")
	return nil
}

// requestLogger пишет запросы в zerolog вместо стандартного логгера chi
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			log.Debug().
				Str("requestID", requestID(r)).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Dur("elapsed", time.Since(start)).
				Msg("http request")
		}()
		next.ServeHTTP(ww, r)
	})
}

func requestID(r *http.Request) string {
	return middleware.GetReqID(r.Context())
}
