package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"echoe-api/internal/app"
	"echoe-api/internal/config"
	"echoe-api/internal/logging"
	"echoe-api/internal/server"
)

const defaultEnvFile = ".env"

type options struct {
	addr           string
	envFile        string
	allowedOrigins []string
	logLevel       string
}

// newRootCmd creates the 'devserver' command serving the API over plain HTTP.
func newRootCmd() *cobra.Command {
	var opts options
	cmd := &cobra.Command{
		Use:           "devserver",
		Short:         "Serve the echoe API locally",
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := loadEnvFile(opts.envFile, cmd.Flags().Changed("env-file")); err != nil {
				return err
			}
			cfg := applyFlags(cmd, config.Load(os.Getenv), opts)
			return run(cmd, cfg)
		},
	}
	cmd.Flags().StringVar(&opts.addr, "addr", config.DefaultAddr, "listen address (overrides PORT)")
	cmd.Flags().StringVar(&opts.envFile, "env-file", defaultEnvFile, "dotenv file loaded before reading the environment")
	cmd.Flags().StringSliceVar(&opts.allowedOrigins, "allowed-origins", nil, "CORS origins (overrides ALLOWED_ORIGINS)")
	cmd.Flags().StringVar(&opts.logLevel, "log-level", "", "log level (overrides LOG_LEVEL)")
	return cmd
}

// loadEnvFile loads path into the environment without overriding variables
// that are already set. A missing default file is not an error.
func loadEnvFile(path string, explicit bool) error {
	if path == "" {
		return nil
	}
	err := godotenv.Load(path)
	if err == nil {
		return nil
	}
	if !explicit && errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("load %s: %w", path, err)
}

func applyFlags(cmd *cobra.Command, cfg config.Config, opts options) config.Config {
	flags := cmd.Flags()
	if flags.Changed("addr") {
		cfg.Addr = opts.addr
	}
	if flags.Changed("allowed-origins") {
		cfg.AllowedOrigins = opts.allowedOrigins
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = opts.logLevel
	}
	return cfg
}

func run(cmd *cobra.Command, cfg config.Config) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, err := logging.New(cfg.LogLevel, zap.String("service", "echoe-devserver"))
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	params, err := app.ParamStore(ctx, cfg.ParamPrefix)
	if err != nil {
		return err
	}
	h, err := app.NewHandler(cfg, os.Getenv, params, logger)
	if err != nil {
		return err
	}
	router, err := server.NewRouter(h, server.Options{AllowedOrigins: cfg.AllowedOrigins, Logger: logger})
	if err != nil {
		return err
	}
	return server.Run(ctx, cfg.Addr, router, logger)
}
