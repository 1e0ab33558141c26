package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/thereceipt/certificate-engine/internal/api"
	"github.com/thereceipt/certificate-engine/internal/batch"
	"github.com/thereceipt/certificate-engine/internal/command"
	"github.com/thereceipt/certificate-engine/internal/config"
	"github.com/thereceipt/certificate-engine/internal/renderer"
	"github.com/thereceipt/certificate-engine/internal/store"
	"github.com/thereceipt/certificate-engine/internal/tui"
	"github.com/thereceipt/certificate-engine/pkg/certformat"
	"golang.org/x/time/rate"
)

// Version is set during build via ldflags
var Version = "dev"

func main() {
	sink := &logSink{w: os.Stderr}
	logger := slog.New(slog.NewTextHandler(sink, nil))
	slog.SetDefault(logger)

	if err := run(logger, sink); err != nil {
		logger.Error("certificate engine stopped", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger, sink *logSink) error {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logger.Info("configuration loaded", "version", Version, "config", cfg.String())

	ctx := context.Background()

	st, err := store.Open(ctx, cfg.StoreOptions())
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer st.Close()

	if seeded, err := store.Seed(ctx, st); err != nil {
		return err
	} else if seeded {
		logger.Info("seeded default template")
	}

	themes := certformat.DefaultThemes()
	if cfg.ThemesFile != "" {
		if themes, err = certformat.LoadThemes(cfg.ThemesFile); err != nil {
			return fmt.Errorf("failed to load themes: %w", err)
		}
	}

	stampKind, err := renderer.ParseStampKind(cfg.StampKind)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	rend := renderer.New(
		renderer.WithFontDir(cfg.FontDir),
		renderer.WithStamp(renderer.Stamp{Kind: stampKind, BaseURL: cfg.VerifyBaseURL}),
		renderer.WithLogger(logger),
	)
	exporter := renderer.NewExporter(rend, cfg.OutputDir, cfg.OutputBaseURL)

	hub := api.NewHub(logger)

	generator := batch.NewGenerator(exporter,
		batch.WithHistory(st),
		batch.WithMetrics(batch.NewMetrics(registry)),
		batch.WithWorkers(cfg.Workers),
		batch.WithProgress(hub.BroadcastProgress),
		batch.WithLogger(logger),
	)

	queue := batch.NewQueue(generator,
		batch.WithUpdates(hub.BroadcastRun),
		batch.WithQueueLogger(logger),
	)
	defer queue.Stop()

	server := api.NewServer(api.Deps{
		Templates:     st,
		History:       st,
		Generator:     generator,
		Queue:         queue,
		Renderer:      rend,
		Hub:           hub,
		Themes:        themes,
		OutputDir:     cfg.OutputDir,
		Registry:      registry,
		GenerateRate:  rate.Limit(cfg.GenerateRate),
		GenerateBurst: cfg.GenerateBurst,
		Logger:        logger,
	})

	serverErr := make(chan error, 1)
	go func() {
		addr := fmt.Sprintf("0.0.0.0:%s", cfg.Port)
		logger.Info("starting API server", "addr", addr, "output", cfg.OutputDir)
		serverErr <- server.Run(addr)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	uiDone := make(chan struct{})
	if cfg.NoTUI {
		defer close(uiDone)
	} else {
		dashboard := tui.NewTViewApp(command.NewExecutor(st, st, queue), queue, st, cfg.Port)
		sink.Set(dashboard.LogWriter())
		go func() {
			defer close(uiDone)
			if err := dashboard.Run(); err != nil {
				sink.Set(os.Stderr)
				logger.Error("TUI error", "error", err)
			}
		}()
	}

	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-sigChan:
		logger.Info("shutting down")
	case <-uiDone:
	}

	sink.Set(os.Stderr)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// logSink lets the dashboard take over log output once it is running
type logSink struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *logSink) Set(w io.Writer) {
	s.mu.Lock()
	s.w = w
	s.mu.Unlock()
}

func (s *logSink) Write(p []byte) (int, error) {
	s.mu.Lock()
	w := s.w
	s.mu.Unlock()
	return w.Write(p)
}
