package server

import (
	"context"
	"crypto/tls"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/serisow/lesocle-kb/handlers"
	"github.com/urfave/negroni"
	"golang.org/x/crypto/acme/autocert"
	"golang.org/x/sync/errgroup"
)

const defaultShutdownTimeout = 30 * time.Second

type Config struct {
	Domains      []string
	CertCacheDir string
	HTTPPort     string
	IdleTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	// ShutdownTimeout bounds how long in-flight requests may finish once
	// serving is asked to stop.
	ShutdownTimeout time.Duration
}

// Services groups what the routes are served from.
type Services struct {
	KnowledgeBase  handlers.KnowledgeBase
	Ingester       handlers.Ingester
	Answerer       handlers.Answerer
	MaxUploadBytes int64
	IngestTimeout  time.Duration
}

func SetupRoutes(svc Services, logger *slog.Logger) *mux.Router {
	r := mux.NewRouter()

	kbHandler := handlers.NewKnowledgeBaseHandler(svc.KnowledgeBase, logger)
	r.HandleFunc("/knowledge_base/status", kbHandler.Status).Methods("GET")
	r.HandleFunc("/knowledge_base/clear", kbHandler.Clear).Methods("DELETE")

	r.Handle("/upload", handlers.NewUploadHandler(svc.Ingester, svc.MaxUploadBytes, svc.IngestTimeout, logger)).Methods("POST")
	r.Handle("/query", handlers.NewQueryHandler(svc.Answerer, logger)).Methods("POST")

	return r
}

func SetupNegroni(r *mux.Router) *negroni.Negroni {
	n := negroni.New()

	n.Use(negroni.NewRecovery())
	n.Use(negroni.NewLogger())
	// Browser front ends are served from other origins.
	n.Use(cors.AllowAll())

	n.UseHandler(r)
	return n
}

// ServeProduction serves over TLS with certificates obtained by autocert
// until ctx is cancelled.
func ServeProduction(ctx context.Context, n *negroni.Negroni, cfg Config) error {
	autocertManager := autocert.Manager{
		Prompt:     autocert.AcceptTOS,
		HostPolicy: autocert.HostWhitelist(cfg.Domains...),
		Cache:      autocert.DirCache(cfg.CertCacheDir),
	}

	// Port 80 answers ACME "http-01" challenges and redirects everything
	// else to HTTPS.
	challengeSrv := &http.Server{
		Addr:         ":80",
		Handler:      autocertManager.HTTPHandler(nil),
		IdleTimeout:  time.Minute,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	tlsConfig := &tls.Config{
		GetCertificate:   autocertManager.GetCertificate,
		MinVersion:       tls.VersionTLS12,
		CurvePreferences: []tls.CurveID{tls.X25519, tls.CurveP256},
	}

	srv := &http.Server{
		Addr:         ":443",
		Handler:      n,
		TLSConfig:    tlsConfig,
		IdleTimeout:  cfg.IdleTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	// Either server failing stops the other.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return serveUntilDone(gctx, challengeSrv, challengeSrv.ListenAndServe, cfg.ShutdownTimeout)
	})
	g.Go(func() error {
		return serveUntilDone(gctx, srv, func() error { return srv.ListenAndServeTLS("", "") }, cfg.ShutdownTimeout)
	})
	return g.Wait()
}

func NewDevelopmentServer(n *negroni.Negroni, cfg Config) *http.Server {
	return &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      n,
		IdleTimeout:  cfg.IdleTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
}

// ServeDevelopment serves plain HTTP until ctx is cancelled.
func ServeDevelopment(ctx context.Context, s *http.Server, shutdownTimeout time.Duration) error {
	return serveUntilDone(ctx, s, s.ListenAndServe, shutdownTimeout)
}

// serveUntilDone runs listen until it fails or ctx is cancelled. On
// cancellation the server is shut down, waiting up to shutdownTimeout for
// in-flight requests. A clean shutdown returns nil.
func serveUntilDone(ctx context.Context, s *http.Server, listen func() error, shutdownTimeout time.Duration) error {
	if shutdownTimeout <= 0 {
		shutdownTimeout = defaultShutdownTimeout
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- listen()
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
	if err := s.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
