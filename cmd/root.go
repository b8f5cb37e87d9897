package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/soocke/pixel-aim-go/app"
	"github.com/soocke/pixel-aim-go/config"
)

const reloadInterval = time.Second

type rootOptions struct {
	configPath string
	modelPath  string
	capture    string
	debug      bool
	dryRun     bool
}

// newRootCmd builds the pixel-aim command tree.
func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "pixel-aim",
		Short:         "Pixel Aim",
		Long:          `Captures the area around the screen center, runs an ONNX detector on it and steers the pointer toward the nearest target.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			level := slog.LevelInfo
			if cfg.Debug {
				level = slog.LevelDebug
			}
			logger := NewLogger(level)
			logger.Info("starting", "model", cfg.ModelPath, "capture", cfg.CaptureMethod.String(), "dry_run", cfg.DryRun)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			store := config.NewStore(cfg)
			if opts.configPath != "" {
				r := config.NewReloader(opts.configPath, store, func(c *config.Config) {
					if err := applyFlags(cmd, opts, c); err != nil {
						logger.Warn("flag overrides", "error", err)
					}
				}, logger)
				go r.Run(ctx, reloadInterval)
			}
			c := app.BuildContainer(store, logger)
			if err := c.Run(ctx); err != nil {
				logger.Warn("shutdown", "error", err)
			}
			return nil
		},
	}
	addRootFlags(root, opts)
	root.AddCommand(newInitCmd())
	return root
}

func addRootFlags(cmd *cobra.Command, opts *rootOptions) {
	f := cmd.Flags()
	f.StringVarP(&opts.configPath, "config", "c", "", "JSON or YAML config file")
	f.StringVarP(&opts.modelPath, "model", "m", "", "ONNX model path")
	f.StringVar(&opts.capture, "capture", "", "capture method (duplication or blit)")
	f.BoolVarP(&opts.debug, "debug", "d", false, "debug logging and memory stats")
	f.BoolVar(&opts.dryRun, "dry-run", false, "log pointer actions instead of emitting them")
}

// newInitCmd writes the default configuration to a file.
func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init <path>",
		Short: "Write a default config file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.DefaultConfig().Save(args[0]); err != nil {
				return fmt.Errorf("cmd: write config: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "wrote", args[0])
			return nil
		},
	}
}

// loadConfig reads the config file, if any, and applies the flags that were set.
func loadConfig(cmd *cobra.Command, opts *rootOptions) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if opts.configPath != "" {
		loaded, err := config.Load(opts.configPath)
		if err != nil {
			return nil, fmt.Errorf("cmd: load config: %w", err)
		}
		cfg = loaded
	}
	if err := applyFlags(cmd, opts, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyFlags overwrites cfg with the flags that were set on the command line.
func applyFlags(cmd *cobra.Command, opts *rootOptions, cfg *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("model") {
		cfg.ModelPath = opts.modelPath
	}
	if flags.Changed("capture") {
		m, err := config.ParseCaptureMethod(opts.capture)
		if err != nil {
			return fmt.Errorf("cmd: %w", err)
		}
		cfg.CaptureMethod = m
	}
	if flags.Changed("debug") {
		cfg.Debug = opts.debug
	}
	if flags.Changed("dry-run") {
		cfg.DryRun = opts.dryRun
	}
	_ = cfg.Validate()
	return nil
}

// Execute runs the root command and exits non-zero on error.
func Execute() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
