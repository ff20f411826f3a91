// Package main wires together the notification ingestion service.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/manibhai1989/the-rojgar-palace-sub001/internal/api"
	"github.com/manibhai1989/the-rojgar-palace-sub001/internal/classifier"
	"github.com/manibhai1989/the-rojgar-palace-sub001/internal/clock/system"
	"github.com/manibhai1989/the-rojgar-palace-sub001/internal/config"
	"github.com/manibhai1989/the-rojgar-palace-sub001/internal/crawler"
	"github.com/manibhai1989/the-rojgar-palace-sub001/internal/extractor"
	"github.com/manibhai1989/the-rojgar-palace-sub001/internal/hash/sha256"
	"github.com/manibhai1989/the-rojgar-palace-sub001/internal/id/uuid"
	"github.com/manibhai1989/the-rojgar-palace-sub001/internal/logging"
	"github.com/manibhai1989/the-rojgar-palace-sub001/internal/metrics"
	"github.com/manibhai1989/the-rojgar-palace-sub001/internal/pipeline"
	"github.com/manibhai1989/the-rojgar-palace-sub001/internal/quota"
	"github.com/manibhai1989/the-rojgar-palace-sub001/internal/registry"
	"github.com/manibhai1989/the-rojgar-palace-sub001/internal/store/postgres"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if syncErr := logger.Sync(); syncErr != nil {
			fmt.Fprintf(os.Stderr, "logger sync failed: %v\n", syncErr)
		}
	}()
	zap.ReplaceGlobals(logger)
	metrics.Init()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := registry.Default()
	if len(cfg.Sources) > 0 {
		reg, err = registry.New(cfg.Sources)
		if err != nil {
			logger.Fatal("invalid source registry", zap.Error(err))
		}
	}

	clock := system.New()
	scanner := crawler.NewScanner(reg, crawler.Config{
		UserAgent: cfg.Crawler.UserAgent,
		Timeout:   cfg.CrawlTimeout(),
	}, clock, logger.Named("crawler"))

	var ocr classifier.OCRClient
	if cfg.Classifier.OCREndpoint != "" {
		ocr = classifier.NewHTTPOCR(cfg.Classifier.OCREndpoint, cfg.OCRTimeout())
	} else {
		logger.Warn("no OCR endpoint configured; scanned documents will fail classification")
	}
	cls := classifier.New(classifier.NewPDFExtractor(), ocr, classifier.Config{
		MinCharsPerPage: cfg.Classifier.MinCharsPerPage,
	}, logger.Named("classifier"))

	providers, limits := buildProviders(ctx, cfg, logger)
	governor := quota.NewGovernor(limits, clock)
	engine := extractor.NewEngine(extractor.Config{
		MaxInputChars: cfg.Extraction.MaxInputChars,
	}, logger.Named("extractor"))

	pipe := pipeline.New(cls, engine, governor, providers, sha256.New(), uuid.New(), logger.Named("pipeline"))

	var store *postgres.Store
	var apiStore api.Store
	if cfg.DB.DSN != "" {
		store, err = postgres.New(ctx, postgres.Config{
			DSN:             cfg.DB.DSN,
			MaxConns:        cfg.DB.MaxConns,
			MinConns:        cfg.DB.MinConns,
			MaxConnLifetime: time.Duration(cfg.DB.MaxConnLifetime) * time.Second,
		})
		if err != nil {
			logger.Fatal("connect database", zap.Error(err))
		}
		defer store.Close()
		apiStore = store
	} else {
		logger.Warn("no database configured; scan results and job records will not be persisted")
	}

	apiServer := api.NewServer(pipe, scanner, apiStore, governor, reg, cfg, logger.Named("api"))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go exportQuotaHealth(ctx, governor)

	go func() {
		logger.Info("http server started", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	logger.Info("shutdown complete")
}

// buildProviders constructs every provider with a configured credential.
// Providers without credentials are skipped rather than built broken: a
// request naming one fails closed at the pipeline with a config failure.
func buildProviders(ctx context.Context, cfg config.Config, logger *zap.Logger) (map[string]extractor.Provider, map[string]quota.Limits) {
	providers := make(map[string]extractor.Provider)
	limits := make(map[string]quota.Limits)

	for name, pc := range cfg.Providers {
		if pc.APIKey == "" {
			logger.Warn("provider has no api key; skipping", zap.String("provider", name))
			continue
		}
		var (
			p   extractor.Provider
			err error
		)
		switch name {
		case "gemini":
			p, err = extractor.NewGemini(ctx, pc.APIKey, pc.Model)
		case "groq":
			p, err = extractor.NewGroq(pc.APIKey, pc.Model, pc.BaseURL)
		default:
			logger.Warn("unknown provider kind; skipping", zap.String("provider", name))
			continue
		}
		if err != nil {
			logger.Error("provider init failed", zap.String("provider", name), zap.Error(err))
			continue
		}
		providers[name] = p
		limits[name] = quota.Limits{RPM: pc.RPM, RPD: pc.RPD}
	}
	return providers, limits
}

// exportQuotaHealth periodically publishes governor health to Prometheus.
func exportQuotaHealth(ctx context.Context, governor *quota.Governor) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, name := range governor.Providers() {
				metrics.SetQuotaHealth(name, healthValue(governor.Check(name)))
			}
		}
	}
}

func healthValue(h quota.Health) float64 {
	switch h {
	case quota.HealthWarning:
		return 1
	case quota.HealthOverload:
		return 2
	default:
		return 0
	}
}
