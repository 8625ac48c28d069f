package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/shopledger/payoutrecon/internal/api"
	"github.com/shopledger/payoutrecon/internal/config"
	"github.com/shopledger/payoutrecon/internal/ingestion"
	"github.com/shopledger/payoutrecon/internal/logging"
	"github.com/shopledger/payoutrecon/internal/reconciliation"
	"github.com/shopledger/payoutrecon/internal/repository"
)

func main() {
	cfg := config.Load()
	log := logging.New(cfg.LogLevel, cfg.LogFormat)
	for _, w := range cfg.Warnings {
		log.Warn(w)
	}

	log.Infof("Initializing database at %s", cfg.DBPath)
	db, err := repository.InitDB(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to init DB: %v", err)
	}
	defer db.Close()

	// Create repositories.
	payoutRepo := repository.NewPayoutRepo(db)
	orderRepo := repository.NewOrderRepo(db)
	runRepo := repository.NewRunRepo(db)
	discRepo := repository.NewDiscrepancyRepo(db)
	importRepo := repository.NewImportRepo(db)

	// Create services.
	engine := reconciliation.NewEngine(cfg.Recon, log)
	reconSvc := reconciliation.NewService(engine, payoutRepo, orderRepo, runRepo, discRepo, log)
	ingestionSvc := ingestion.NewService(importRepo, payoutRepo, orderRepo, reconSvc, log)

	// Create router.
	router := api.NewRouter(payoutRepo, orderRepo, runRepo, discRepo, ingestionSvc, reconSvc, log)

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Infof("Payout reconciler listening on http://localhost:%s", cfg.Port)
	log.Infof("API base: http://localhost:%s/api/v1", cfg.Port)
	log.WithFields(logrus.Fields{
		"strategy":  cfg.Recon.Strategy,
		"exclusive": cfg.Recon.Exclusive,
		"lookback":  cfg.Recon.MaxLookbackDays,
		"workers":   cfg.Recon.Workers,
	}).Info("reconciliation settings")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorf("Shutdown: %v", err)
	}
}
