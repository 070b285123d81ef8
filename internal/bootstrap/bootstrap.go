// Package bootstrap provides dependency initialization for the snapreel API.
package bootstrap

import (
	"fmt"
	"log/slog"

	"github.com/snapreel/snapreel-api/internal/config"
	"github.com/snapreel/snapreel-api/internal/encoder"
	"github.com/snapreel/snapreel-api/internal/pipeline"
	"github.com/snapreel/snapreel-api/internal/storage"
	"github.com/snapreel/snapreel-api/internal/template"
)

// Dependencies holds all initialized dependencies for the HTTP server.
type Dependencies struct {
	VideoService *pipeline.Service
	Registry     *template.Registry
	Store        storage.Storage
}

// NewDependencies creates and initializes all dependencies for the
// application. A missing encoder binary fails startup immediately.
func NewDependencies(cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	store, err := initStorage(cfg, logger)
	if err != nil {
		return nil, err
	}

	// Resolve the encoder binary up front so a misconfigured host is
	// reported at startup rather than on the first request.
	ffmpegPath, err := encoder.ResolveBinary(cfg.FFmpegPath)
	if err != nil {
		return nil, fmt.Errorf("resolve encoder: %w", err)
	}
	logger.Info("encoder resolved",
		slog.String("ffmpeg_path", ffmpegPath),
	)
	invoker := encoder.NewFFmpegInvoker(ffmpegPath, logger)

	registry := template.NewRegistry()

	svc := pipeline.NewService(
		registry,
		store,
		invoker,
		cfg.TempDir,
		logger,
		pipeline.WithAssetsDir(cfg.AssetsDir),
		pipeline.WithRenderWorkers(cfg.MaxRenderWorkers),
		pipeline.WithEncoderCheck(func() error {
			_, err := encoder.ResolveBinary(cfg.FFmpegPath)
			return err
		}),
	)

	return &Dependencies{
		VideoService: svc,
		Registry:     registry,
		Store:        store,
	}, nil
}

// initStorage creates the appropriate storage backend based on configuration.
func initStorage(cfg *config.Config, logger *slog.Logger) (storage.Storage, error) {
	if cfg.S3Enabled() {
		s3Cfg := storage.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
		}
		s3Store, err := storage.NewS3Storage(s3Cfg)
		if err != nil {
			return nil, fmt.Errorf("create S3 storage: %w", err)
		}
		logger.Info("S3 storage configured",
			slog.String("bucket", cfg.S3Bucket),
			slog.String("region", cfg.S3Region),
		)
		return s3Store, nil
	}

	localStore, err := storage.NewLocalStorage(cfg.TempDir)
	if err != nil {
		return nil, fmt.Errorf("create local storage: %w", err)
	}
	logger.Info("local storage configured",
		slog.String("temp_dir", cfg.TempDir),
	)
	return localStore, nil
}
