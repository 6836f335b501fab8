package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"
	"github.com/ironstar-io/chizerolog"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"github.com/jd-116/pushnotifier/api/devices"
	"github.com/jd-116/pushnotifier/api/notifications"
	"github.com/jd-116/pushnotifier/auth"
	"github.com/jd-116/pushnotifier/types"
)

// Notifier is the part of a PushNotifier session the relay exposes
type Notifier interface {
	devices.Lister
	notifications.Sender
}

// APIServer is a struct that bundles together the various server-wide
// resources used at runtime by the relay
type APIServer struct {
	logger       zerolog.Logger
	notifier     Notifier
	lister       devices.Lister
	jwtManager   *auth.JWTManager
	maxBodyBytes int64
}

// NewAPIServer wraps the notifier so that at most one call
// uses the underlying session at a time.
// A positive deviceCacheTTL keeps device listings for that long
func NewAPIServer(logger zerolog.Logger, notifier Notifier, jwtManager *auth.JWTManager,
	maxBodyBytes int64, deviceCacheTTL time.Duration) *APIServer {
	serialized := &serializedNotifier{notifier: notifier}

	var lister devices.Lister = serialized
	if deviceCacheTTL > 0 {
		lister = devices.NewCache(serialized, deviceCacheTTL)
	}

	return &APIServer{
		logger:       logger,
		notifier:     serialized,
		lister:       lister,
		jwtManager:   jwtManager,
		maxBodyBytes: maxBodyBytes,
	}
}

// Serve runs the relay until it's cancelled for some reason,
// in which case it attempts to gracefully shutdown.
// This function blocks.
func (a *APIServer) Serve(ctx context.Context, port int) error {
	router := a.routes()
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: router,
	}

	listenErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			listenErr <- err
		}
		close(listenErr)
	}()
	a.logger.Info().Int("port", port).Msg("relay started")

	select {
	case err := <-listenErr:
		if err != nil {
			return errors.Wrapf(err, "could not listen on port %d", port)
		}
	case <-ctx.Done():
	}
	a.logger.Info().Msg("relay stopped")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "relay shutdown failed")
	}
	a.logger.Info().Msg("relay exited properly")
	return nil
}

func (a *APIServer) routes() *chi.Mux {
	router := chi.NewRouter()
	router.Use(
		middleware.Recoverer,                          // Recover from panics without crashing the server
		hlog.NewHandler(a.logger),                     // Make the logger available to handlers
		chizerolog.LoggerMiddleware(&a.logger),        // Log API request calls
		middleware.RedirectSlashes,                    // Redirect slashes to no slash URL versions
		render.SetContentType(render.ContentTypeJSON), // Set content-type headers to application/json
		middleware.Compress(5),                        // Compress results
		middleware.NoCache,                            // Prevent clients from caching the results
		a.corsMiddleware(),                            // Create cors middleware from go-chi/cors
	)

	router.Route("/v1", func(r chi.Router) {
		// Public routes
		r.Group(func(r chi.Router) {
			// Can be used for health checks
			r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNoContent)
			})
		})

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(a.jwtManager.Authenticated())

			r.Mount("/devices", devices.Routes(a.lister))
			r.Mount("/notifications", notifications.Routes(a.notifier, a.maxBodyBytes))
		})
	})

	return router
}

func (a *APIServer) corsMiddleware() func(http.Handler) http.Handler {
	// See if the CORS_ALLOWED_ORIGINS environment variable was set
	allowedOrigins := "*"
	if value, ok := os.LookupEnv("CORS_ALLOWED_ORIGINS"); ok {
		allowedOrigins = value
	}

	return cors.Handler(cors.Options{
		AllowedOrigins:   []string{allowedOrigins},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{},
		AllowCredentials: false,
		MaxAge:           300,
	})
}

// serializedNotifier guards a session, which is not safe for concurrent use
type serializedNotifier struct {
	sync.Mutex
	notifier Notifier
}

func (s *serializedNotifier) GetDevices(ctx context.Context) ([]types.Device, error) {
	s.Lock()
	defer s.Unlock()
	return s.notifier.GetDevices(ctx)
}

func (s *serializedNotifier) SendMessage(ctx context.Context, deviceIDs []string, content string, silent bool) (bool, error) {
	s.Lock()
	defer s.Unlock()
	return s.notifier.SendMessage(ctx, deviceIDs, content, silent)
}

func (s *serializedNotifier) SendURL(ctx context.Context, deviceIDs []string, url string, silent bool) (bool, error) {
	s.Lock()
	defer s.Unlock()
	return s.notifier.SendURL(ctx, deviceIDs, url, silent)
}

func (s *serializedNotifier) SendNotification(ctx context.Context, deviceIDs []string, content string, url string, silent bool) (bool, error) {
	s.Lock()
	defer s.Unlock()
	return s.notifier.SendNotification(ctx, deviceIDs, content, url, silent)
}
