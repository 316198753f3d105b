package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/golfvision/golfball-detection-service/config"
	"github.com/golfvision/golfball-detection-service/detections"
	"github.com/golfvision/golfball-detection-service/logger"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.New(false).Fatal("Failed to load configuration: %v", err)
	}
	lg := logger.New(cfg.Debug)
	defer func() { _ = lg.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, lg, os.Stdout); err != nil {
		lg.Fatal("Server stopped: %v", err)
	}
}

// run loads the model and serves until ctx is done. It returns before
// listening if the model cannot be loaded.
func run(ctx context.Context, cfg *config.Config, lg *logger.Logger, accessLog io.Writer) error {
	modelPath := detections.ResolveModelPath(cfg.ModelPath)
	if _, err := os.Stat(modelPath); err != nil {
		lg.Error("Model file not found at: %s", modelPath)
		return fmt.Errorf("%w: %s (MODEL_PATH must point to an ONNX export, default %s)",
			detections.ErrModelNotFound, modelPath, config.DefaultModelPath)
	}

	libPath, err := resolveRuntimeLib(cfg.RuntimeLib)
	if err != nil {
		return err
	}
	if err := detections.InitRuntime(libPath); err != nil {
		return err
	}
	defer detections.DestroyRuntime()

	if features := detections.CPUFeatures(); len(features) > 0 {
		lg.Info("CPU features: %s", strings.Join(features, ", "))
	}

	det, err := loadDetector(cfg, lg)
	if err != nil {
		return fmt.Errorf("failed to load the model: %w", err)
	}
	defer det.Destroy()

	state := NewAppState(cfg, det, lg)
	srv := &http.Server{
		Handler:      NewRouter(state, accessLog),
		Addr:         cfg.Addr(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return serve(ctx, srv, lg, cfg.AllowedOrigins())
}

// loadDetector picks the loader the operator configured. The alternative
// loader is never tried as a fallback.
func loadDetector(cfg *config.Config, lg *logger.Logger) (*detections.Detector, error) {
	opts := detections.Options{
		PoolSize:       cfg.PoolSize,
		AcquireTimeout: cfg.AcquireTimeout,
		ConfThreshold:  cfg.ConfThreshold,
		IouThreshold:   cfg.IouThreshold,
		MaxDetections:  cfg.MaxDetections,
		Logger:         lg,
	}
	if cfg.ModelLoader == config.LoaderAlternative {
		return detections.LoadWithAlternativeMethod(cfg.ModelPath, opts)
	}
	return detections.Load(cfg.ModelPath, opts)
}

func serve(ctx context.Context, srv *http.Server, lg *logger.Logger, origins []string) error {
	errCh := make(chan error, 1)
	go func() {
		lg.Info("Starting server on %s (allowed origins: %s)", srv.Addr, strings.Join(origins, ", "))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	lg.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
