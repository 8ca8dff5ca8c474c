package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	httpadapter "paxreport/internal/adapters/http"
	"paxreport/internal/adapters/ingest"
	pg "paxreport/internal/adapters/postgres"
	"paxreport/internal/adapters/scanapi"
	"paxreport/internal/adapters/tunnel"
	"paxreport/internal/config"
	"paxreport/internal/logging"
	"paxreport/internal/ports"
	"paxreport/internal/services/activity"
	scansvc "paxreport/internal/services/scanner"
	scanworker "paxreport/internal/workers/scanrunner"
)

func main() {
	cfg, err := config.Load()
	log := logging.New(cfg.Env, cfg.LogLevel, os.Stderr)
	if err != nil {
		if !config.IsMissing(err) {
			log.WithError(err).Fatal("configuration error")
		}
		log.Warnf("warning: %v", err)
	}
	log.Infof("credentials: PAX_API_KEY %d chars, NGROK_AUTHTOKEN %d chars", len(cfg.PaxAPIKey), len(cfg.NgrokAuthtoken))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		history ports.ScanHistory = ports.NopHistory{}
		jobs    ports.JobRepository
	)
	if cfg.DatabaseURL != "" {
		db, err := pg.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			log.WithError(err).Fatal("db connect error")
		}
		defer db.Close()
		if err := db.Migrate(ctx, log); err != nil {
			log.WithError(err).Fatal("db migrate error")
		}
		history, jobs = db, db
	} else {
		log.Info("DATABASE_URL not set: scan history and queued scans disabled")
	}

	tunnels := scansvc.NewTunnelManager(tunnel.NewNgrokProvider(cfg.NgrokAuthtoken), log.WithField("component", "tunnel"))
	scanClient := scanapi.New(cfg.ScannerURL, log.WithField("component", "scanapi"))
	scanner := scansvc.New(tunnels, scanClient, history, log.WithField("component", "scanner"))
	reporter := activity.New(ingest.New(cfg.ReportAPIURL, cfg.PaxAPIKey), cfg.IngestSource, log.WithField("component", "activity"))

	srv := httpadapter.New(scanner, jobs, reporter, httpadapter.Options{
		ToolsToken:       cfg.ToolsToken,
		RateLimitEnabled: cfg.RateLimitEnabled,
		ScanRatePerMin:   cfg.ScanRatePerMin,
	}, log.WithField("component", "http"))
	r := chi.NewRouter()
	r.Mount("/", srv.Routes())

	workersDone := make(chan struct{})
	if cfg.ScanWorkers > 0 && jobs != nil {
		go func() {
			defer close(workersDone)
			scanworker.Run(ctx, jobs, scanner, cfg.ScanWorkers, cfg.PollInterval, log.WithField("component", "scanrunner"))
		}()
		log.Infof("scan workers started: %d", cfg.ScanWorkers)
	} else {
		close(workersDone)
	}

	httpSrv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		// Synchronous scans hold the request for up to the remote scan bound.
		WriteTimeout: scanapi.DefaultTimeout + 30*time.Second,
		IdleTimeout:  60 * time.Second,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}
	errCh := make(chan error, 1)
	go func() { errCh <- httpSrv.ListenAndServe() }()
	log.Infof("listening on %s", cfg.ListenAddr)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		log.Infof("shutting down on %s", sig)
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("server error")
		}
	}

	// Cancelling in-flight scans releases their tunnels before the handlers return.
	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("http shutdown")
	}
	select {
	case <-workersDone:
	case <-shutdownCtx.Done():
		log.Warn("scan workers did not stop in time")
	}
}
