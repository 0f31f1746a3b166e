// Package server implements the collector's HTTP API.
package server

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/and161185/gnss-relay/internal/auth"
	"github.com/and161185/gnss-relay/internal/config"
	"github.com/and161185/gnss-relay/internal/crypto"
	"github.com/and161185/gnss-relay/internal/metrics"
	"github.com/and161185/gnss-relay/internal/server/middleware"
	"github.com/and161185/gnss-relay/storage"
)

const shutdownTimeout = 10 * time.Second

// Server serves ingest and query endpoints over a storage.Storage.
type Server struct {
	Storage storage.Storage
	Config  *config.ServerConfig

	privKey *rsa.PrivateKey
	now     func() time.Time
}

// NewServer prepares a server, loading the private key when one is configured.
func NewServer(st storage.Storage, cfg *config.ServerConfig) (*Server, error) {
	srv := &Server{Storage: st, Config: cfg, now: time.Now}
	if cfg.CryptoKeyPath != "" {
		priv, err := crypto.LoadPrivateKey(cfg.CryptoKeyPath)
		if err != nil {
			return nil, fmt.Errorf("load private key: %w", err)
		}
		srv.privKey = priv
	}
	return srv, nil
}

func (srv *Server) logger() *zap.SugaredLogger {
	if srv.Config == nil || srv.Config.Logger == nil {
		return zap.NewNop().Sugar()
	}
	return srv.Config.Logger
}

// Router builds the handler tree.
//
// Ingest requests pass, in order: trusted subnet, decryption, body hash, gzip, bearer token.
// Query requests pass the bearer token check and gzip responses.
func (srv *Server) Router() (http.Handler, error) {
	trusted, err := middleware.TrustedCIDR(srv.Config.TrustedSubnet)
	if err != nil {
		return nil, err
	}
	metrics.Init()

	router := chi.NewRouter()
	router.Use(chiMiddleware.StripSlashes)
	router.Use(chiMiddleware.Recoverer)
	router.Use(middleware.LogMiddleware(srv.logger()))

	router.Get("/ping", srv.PingHandler)
	router.Handle("/metrics", metrics.Handler())

	router.Group(func(r chi.Router) {
		r.Use(trusted)
		r.Use(middleware.DecryptMiddleware(srv.privKey, false))
		r.Use(middleware.VerifyHashMiddleware(srv.Config.Key))
		r.Use(middleware.DecompressMiddleware)
		r.Use(auth.Middleware(srv.Config.AuthSecret))

		r.Post("/gnssdata", srv.IngestMeasurementsHandler)
		r.Post("/gnssnavdata", srv.IngestNavHandler)
	})

	router.Group(func(r chi.Router) {
		r.Use(auth.Middleware(srv.Config.AuthSecret))
		r.Use(middleware.CompressMiddleware)

		r.Get("/gnssdata", srv.ListMeasurementsHandler)
		r.Get("/gnssdata/summary", srv.SummaryHandler)
		r.Get("/gnssdata/export.xlsx", srv.ExportXLSXHandler)
		r.Get("/gnssdata/report.pdf", srv.ReportPDFHandler)
		r.Get("/gnssnavdata", srv.ListNavHandler)
	})

	return router, nil
}

// Run listens on Config.Addr until ctx is done, then shuts down gracefully.
func (srv *Server) Run(ctx context.Context) error {
	handler, err := srv.Router()
	if err != nil {
		return err
	}
	hs := &http.Server{
		Addr:              srv.Config.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		srv.logger().Infow("collector listening", "addr", srv.Config.Addr)
		errCh <- hs.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := hs.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
