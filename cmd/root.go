package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Gaurav-Gosain/asrtdash/api"
	"github.com/Gaurav-Gosain/asrtdash/config"
	"github.com/Gaurav-Gosain/asrtdash/logging"
	"github.com/Gaurav-Gosain/asrtdash/output"
	"github.com/Gaurav-Gosain/asrtdash/poller"
	"github.com/Gaurav-Gosain/asrtdash/results"
	"github.com/Gaurav-Gosain/asrtdash/tui"
)

// flagKeys maps command-line flags to their configuration keys.
var flagKeys = map[string]string{
	"url":        "url",
	"interval":   "interval",
	"timeout":    "timeout",
	"log-dir":    "log_dir",
	"listen":     "listen",
	"once":       "once",
	"output-dir": "output_dir",
	"word-wrap":  "word_wrap",
	"debug":      "debug",
}

func NewRootCmd() *cobra.Command {
	v := config.New()
	var configFile string

	cmd := &cobra.Command{
		Use:   "asrtdash [url]",
		Short: "Live dashboard for assertion results",
		Long:  "Polls an endpoint that serves assertion results as JSON and shows them as a live dashboard:\nthe latest batch, total count, last update and error rates over the last hour, day and week.",
		Example: `  # Watch an endpoint, polling every 10s
  asrtdash http://localhost:8080/results

  # Poll every 2s and also serve the store as JSON
  asrtdash -i 2000 --listen :9090 http://localhost:8080/results

  # Poll once and print the dashboard
  asrtdash --once http://localhost:8080/results

  # Poll once and write a markdown report
  asrtdash --once -o ./reports http://localhost:8080/results`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			if len(args) == 1 {
				v.Set("url", args[0])
			}
			return run(c.Context(), v, configFile, c.OutOrStdout())
		},
		// Allow a positional URL even though fang adds subcommands.
		TraverseChildren: true,
	}

	f := cmd.Flags()
	f.StringVarP(&configFile, "config", "c", "", "Config file (default: ./asrtdash.* or ./config/asrtdash.*)")
	f.StringP("url", "u", "", "Endpoint serving the JSON result batch")
	f.IntP("interval", "i", config.DefaultIntervalMS, "Polling interval in milliseconds (0 = default)")
	f.Int("timeout", config.DefaultTimeoutMS, "Request timeout in milliseconds")
	f.String("log-dir", "", "Write rotating JSON logs to this directory")
	f.String("listen", "", "Serve the results as JSON on this address (e.g. :9090)")
	f.Bool("once", false, "Poll a single time, print the dashboard and exit")
	f.StringP("output-dir", "o", "", "Write the markdown report to this directory")
	f.IntP("word-wrap", "w", config.DefaultWordWrap, "Word wrap width for terminal rendering")
	f.Bool("debug", false, "Log debug entries")

	for flag, key := range flagKeys {
		_ = v.BindPFlag(key, f.Lookup(flag))
	}

	return cmd
}

func run(ctx context.Context, v *viper.Viper, configFile string, stdout io.Writer) error {
	if err := config.LoadDotEnv(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load .env: %w", err)
	}
	if err := config.ReadFile(v, configFile); err != nil {
		return err
	}
	cfg, err := config.Load(v)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	level := zapcore.InfoLevel
	if cfg.Debug {
		level = zapcore.DebugLevel
	}
	logger, err := logging.New(cfg.LogDir, level)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	store := results.NewResultStore()
	opts := poller.Options{
		URL:      cfg.URL,
		Interval: cfg.Interval(),
		Timeout:  cfg.Timeout(),
	}

	if cfg.Once {
		return runOnce(ctx, cfg, store, opts, logger, stdout)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if cfg.Listen != "" {
		srv := api.NewServer(logger, store)
		go func() {
			if err := srv.ListenAndServe(ctx, cfg.Listen); err != nil {
				logger.Error("api_failed", zap.String("addr", cfg.Listen), zap.Error(err))
			}
		}()
	}

	if cfg.OutputDir != "" {
		opts.OnEvent = func(e poller.Event) {
			if e.Type != poller.EventDone {
				return
			}
			if _, err := output.WriteReport(cfg.OutputDir, cfg.URL, store.Snapshot(), e.Stats); err != nil {
				logger.Warn("report_failed", zap.String("dir", cfg.OutputDir), zap.Error(err))
			}
		}
	}

	logger.Info("dashboard_started", zap.String("url", cfg.URL))
	return tui.Run(ctx, store, opts, logger)
}

func runOnce(ctx context.Context, cfg *config.Config, store *results.ResultStore, opts poller.Options, logger *zap.Logger, stdout io.Writer) error {
	if err := poller.New(store, opts, logger).Poll(ctx); err != nil {
		return fmt.Errorf("poll failed: %w", err)
	}

	snapshot, stats := store.Snapshot(), store.Stats()
	if cfg.OutputDir != "" {
		path, err := output.WriteReport(cfg.OutputDir, cfg.URL, snapshot, stats)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(stdout, "Saved %s\n", path)
		return err
	}
	return output.RenderTerminal(stdout, cfg.URL, snapshot, stats, cfg.WordWrap)
}
