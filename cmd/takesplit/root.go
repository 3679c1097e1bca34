package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-isatty"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"

	"github.com/MrWong99/takesplit/internal/config"
	"github.com/MrWong99/takesplit/internal/health"
	"github.com/MrWong99/takesplit/internal/observe"
	"github.com/MrWong99/takesplit/internal/pipeline"
)

// flags holds the persistent flags that override configuration values.
type flags struct {
	config   string
	audio    string
	script   string
	workDir  string
	logLevel string
}

func newRootCommand() *cobra.Command {
	var f flags

	root := &cobra.Command{
		Use:           "takesplit",
		Short:         "Split a voice-over recording into per-line clips",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&f.config, "config", "c", "", "configuration file (.yaml or .toml)")
	pf.StringVar(&f.audio, "audio", "", "source recording (WAV)")
	pf.StringVar(&f.script, "script", "", "tab-separated script file")
	pf.StringVar(&f.workDir, "work-dir", "", "directory for intermediate and output files")
	pf.StringVar(&f.logLevel, "log-level", "", "log level: debug, info, warn or error")

	root.AddCommand(
		newSegmentCommand(&f),
		newTranscribeCommand(&f),
		newAlignCommand(&f),
		newRenameCommand(&f),
		newRunCommand(&f),
	)
	return root
}

// load reads the configuration and applies flag overrides.
func (f *flags) load() (*config.Config, error) {
	cfg, err := config.Load(f.config)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config file %q not found", f.config)
		}
		return nil, err
	}
	if f.audio != "" {
		cfg.Paths.Audio = f.audio
	}
	if f.script != "" {
		cfg.Paths.Script = f.script
	}
	if f.workDir != "" {
		cfg.Paths.WorkDir = f.workDir
	}
	if f.logLevel != "" {
		cfg.LogLevel = config.LogLevel(f.logLevel)
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// withPipeline sets up logging, telemetry and the optional metrics endpoint
// around fn.
func (f *flags) withPipeline(cmd *cobra.Command, fn func(context.Context, *pipeline.Pipeline) error) error {
	cfg, err := f.load()
	if err != nil {
		return err
	}

	logger := newLogger(cmd.ErrOrStderr(), cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runID := uuid.NewString()
	reg := prometheus.NewRegistry()
	shutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceVersion: version,
		RunID:          runID,
		Registry:       reg,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(sctx); err != nil {
			logger.Warn("telemetry shutdown error", "err", err)
		}
	}()

	metrics, err := observe.NewMetrics(otel.GetMeterProvider())
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}
	progress := health.NewProgress(runID)
	p := pipeline.New(cfg,
		pipeline.WithLogger(logger),
		pipeline.WithMetrics(metrics),
		pipeline.WithRunID(runID),
		pipeline.WithProgress(progress),
		pipeline.WithOutput(cmd.OutOrStdout()),
	)

	if cfg.Metrics.ListenAddr != "" {
		hh := health.New(progress, p.Checkers()...)
		stopMetrics := serveMetrics(cfg.Metrics.ListenAddr, observe.Handler(metrics, reg, hh.Register), logger)
		defer stopMetrics()
	}

	logger.Info("takesplit starting",
		"command", cmd.Name(),
		"run_id", runID,
		"config", f.config,
		"work_dir", cfg.Paths.WorkDir,
	)
	return fn(ctx, p)
}

// newLogger returns a text logger when w is a terminal and a JSON logger
// otherwise.
func newLogger(w io.Writer, level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if isTerminal(w) {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// serveMetrics serves h on addr until the returned function is called.
func serveMetrics(addr string, h http.Handler, log *slog.Logger) (stop func()) {
	srv := &http.Server{Addr: addr, Handler: h, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server error", "addr", addr, "err", err)
		}
	}()
	log.Info("metrics endpoint listening", "addr", addr)
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
