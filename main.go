package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"podlight/api"
	"podlight/config"
	"podlight/job"
	"podlight/media"
	"podlight/metrics"
	"podlight/pipeline"
)

func newLogger(cfg *config.Config) *logrus.Logger {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})
	log.SetOutput(os.Stdout)

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)
	return log
}

func main() {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}

	log := newLogger(cfg)

	for _, dir := range []string{cfg.UploadDir, cfg.OutputDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Fatalf("Failed to create directory %s: %v", dir, err)
		}
	}

	// 2. Initialize the pipeline collaborators
	limits := media.ResourceLimits{
		IdleCPU:  cfg.ThrottleCPU,
		FreeMem:  cfg.ThrottleFreeMem,
		FreeDisk: cfg.ThrottleFreeDisk,
	}

	transcriber, err := media.NewWhisperTranscriber(cfg.WhisperBin, cfg.WhisperModel, limits, log)
	if err != nil {
		log.Fatalf("Failed to initialize transcriber: %v", err)
	}

	analyzer := media.NewKeywordAnalyzer(cfg.MinHighlightDuration, cfg.MaxHighlightDuration, cfg.NumHighlights)

	generator, err := media.NewClipGenerator(cfg.FFBin, cfg.OutputDir, cfg.GenExtraArgs, limits, log)
	if err != nil {
		log.Fatalf("Failed to initialize clip generator: %v", err)
	}

	var hooks pipeline.HookWriter
	if cfg.UseAIHook {
		hookWriter, err := media.NewOpenAIHookWriter(cfg.OpenAIKey, cfg.OpenAIModel, log)
		if err != nil {
			log.Warnf("AI hooks enabled but unavailable: %v", err)
		} else {
			hooks = hookWriter
		}
	}

	// 3. Wire the store and the stage runner
	store := job.NewStore()
	m := metrics.New(prometheus.DefaultRegisterer)
	runner := pipeline.NewRunner(cfg, store, transcriber, analyzer, generator, hooks, log, m)

	// 4. Set up router and server
	router := api.SetupRouter(store, runner, cfg, log, m)
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// 5. Start the HTTP server and wait for an interrupt
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Infof("Server starting on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s", err)
		}
	}()

	<-ctx.Done()
	stop()
	log.Info("Shutting down gracefully, press Ctrl+C again to force")

	// In-flight pipeline stages are not cancellable; give the HTTP server
	// a few seconds to drain and exit.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Info("Server exiting")
}
