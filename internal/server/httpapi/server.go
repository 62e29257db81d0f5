// Package httpapi exposes the REST surface of the capsule server: auth,
// capsule CRUD with multipart uploads, and the unauthenticated public-view
// endpoints gated by access tokens.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/dmitrijs2005/timecapsule/internal/logging"
	"github.com/dmitrijs2005/timecapsule/internal/server/services"
)

type HTTPServer struct {
	address   string
	logger    logging.Logger
	users     *services.UserService
	capsules  *services.CapsuleService
	jwtSecret []byte
}

func NewHTTPServer(a string, l logging.Logger, us *services.UserService, cs *services.CapsuleService, secretKey string) (*HTTPServer, error) {
	return &HTTPServer{
		address:   a,
		logger:    l.With("module", "http_server"),
		users:     us,
		capsules:  cs,
		jwtSecret: []byte(secretKey),
	}, nil
}

// Router wires every endpoint. Method-qualified patterns keep the routing in
// the standard mux.
func (s *HTTPServer) Router() *http.ServeMux {
	mux := http.NewServeMux()

	// public auth routes
	mux.HandleFunc("POST /api/auth/register", s.handlerRegister)
	mux.HandleFunc("POST /api/auth/login", s.handlerLogin)
	mux.HandleFunc("POST /api/auth/refresh", s.handlerRefresh)

	// owner/recipient routes
	mux.HandleFunc("POST /api/capsules", s.withAuth(s.handlerCreateCapsule))
	mux.HandleFunc("GET /api/capsules", s.withAuth(s.handlerListCapsules))
	mux.HandleFunc("GET /api/capsules/{id}", s.withAuth(s.handlerGetCapsule))
	mux.HandleFunc("PUT /api/capsules/{id}", s.withAuth(s.handlerUpdateCapsule))
	mux.HandleFunc("DELETE /api/capsules/{id}", s.withAuth(s.handlerDeleteCapsule))
	mux.HandleFunc("POST /api/capsules/{id}/files", s.withAuth(s.handlerAttachFiles))
	mux.HandleFunc("DELETE /api/capsules/{id}/files/{name}", s.withAuth(s.handlerDetachFile))
	mux.HandleFunc("GET /api/capsules/{id}/files/{name}", s.withAuth(s.handlerDownloadFile))

	// token-gated public routes, no authentication
	mux.HandleFunc("GET /api/public/capsules/{token}", s.handlerPublicView)
	mux.HandleFunc("GET /api/public/capsules/{token}/files/{name}", s.handlerPublicDownload)

	return mux
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *HTTPServer) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.address,
		Handler: s.Router(),
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", s.address)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
