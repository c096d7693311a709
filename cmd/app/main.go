package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	cfgpkg "github.com/local/pdfmerge/internal/config"
	"github.com/local/pdfmerge/internal/filetype"
	logpkg "github.com/local/pdfmerge/internal/logger"
	"github.com/local/pdfmerge/internal/metrics"
	"github.com/local/pdfmerge/internal/server"
	"github.com/local/pdfmerge/internal/source"
	"github.com/local/pdfmerge/internal/statuscheck"
	"github.com/local/pdfmerge/internal/storage"
	"github.com/local/pdfmerge/internal/store"
	"github.com/local/pdfmerge/internal/toolkit"
)

func main() {
	cfg := cfgpkg.Load()

	_ = logpkg.Init(logpkg.Options{
		Level:        cfg.Logging.Level,
		Pretty:       cfg.Logging.Pretty,
		File:         cfg.Logging.File,
		MaxSizeMB:    cfg.Logging.MaxSizeMB,
		MaxBackups:   cfg.Logging.MaxBackups,
		MaxAgeDays:   cfg.Logging.MaxAgeDays,
		Compress:     cfg.Logging.Compress,
		SendToAxiom:  cfg.Axiom.Send && cfg.Axiom.APIKey != "",
		AxiomAPIKey:  cfg.Axiom.APIKey,
		AxiomOrgID:   cfg.Axiom.OrgID,
		AxiomDataset: cfg.Axiom.Dataset,
		AxiomFlush:   cfg.Axiom.FlushInterval,
	})
	defer logpkg.Close()

	metrics.Init()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := os.MkdirAll(cfg.Merge.TempDir, 0o755); err != nil {
		log.Fatal().Err(err).Str("dir", cfg.Merge.TempDir).Msg("cannot create temp dir")
	}

	resolver := &source.Resolver{
		HTTP:         &http.Client{Timeout: cfg.Merge.HTTPTimeout},
		MaxBytes:     int64(cfg.Merge.MaxUploadMB) << 20,
		NoHTTP:       !cfg.Merge.RemoteFetch,
		AllowedHosts: cfg.Merge.RemoteHosts,
	}
	if cfg.Merge.RemoteFetch && len(cfg.Merge.RemoteHosts) == 0 {
		log.Warn().Msg("PDFMERGE_REMOTE_HOSTS not set; url sources may name any host")
	}
	checks := statuscheck.Options{S3Bucket: cfg.Storage.Bucket, TempDir: cfg.Merge.TempDir}
	if cfg.Storage.Enabled() {
		s3c, err := storage.NewS3Client(ctx, storage.Options{
			Region:          cfg.Storage.Region,
			Endpoint:        cfg.Storage.Endpoint,
			AccessKeyID:     cfg.Storage.AccessKeyID,
			SecretAccessKey: cfg.Storage.SecretAccessKey,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to init s3 client")
		}
		resolver.S3 = s3c
		checks.S3 = s3c
	}

	deps := server.Dependencies{
		Toolkit:        toolkit.NewPDFCPU(),
		Resolver:       resolver,
		Detector:       filetype.New(),
		DefaultBucket:  cfg.Storage.Bucket,
		TempDir:        cfg.Merge.TempDir,
		Cleanup:        cfg.Merge.Cleanup,
		MaxUploadBytes: int64(cfg.Merge.MaxUploadMB) << 20,
		MaxPages:       cfg.Merge.MaxPages,
	}

	if cfg.Results.RedisURL != "" {
		rs, err := store.NewResultStore(cfg.Results.RedisURL, cfg.Results.TTL)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to init redis result store")
		}
		defer rs.Close()
		deps.Results = rs
		checks.Redis = rs
	} else {
		log.Warn().Msg("REDIS_URL not set; string mode disabled")
	}

	deps.Status = statuscheck.New(checks)

	mux := http.NewServeMux()
	server.New(deps).RegisterRoutes(mux)

	server.StartSweeper(ctx, cfg.Merge.TempDir, cfg.Merge.TempMaxAge, cfg.Merge.SweepInterval)

	srv := &http.Server{Addr: ":" + cfg.Server.Port, Handler: mux}
	go func() {
		log.Info().Msgf("HTTP server listening on :%s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server error")
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	fmt.Println("shutdown complete")
}
