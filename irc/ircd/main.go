package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/presbrey/ircd/irc"
	"github.com/presbrey/ircd/irc/admind"
	"github.com/presbrey/ircd/irc/config"
	_ "github.com/presbrey/ircd/irc/hidelist"
	_ "github.com/presbrey/ircd/irc/modlog"
)

func main() {
	var (
		configPath string
		debug      bool
	)

	rootCmd := &cobra.Command{
		Use:          "ircd",
		Short:        "IRC server with pluggable mode watchers",
		Long:         `An IRC server whose channel mode checks can be extended by modules loaded from the configuration.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			initLogger(debug)
			defer zap.L().Sync()
			return run(cmd.Context(), configPath)
		},
	}
	rootCmd.Flags().StringVarP(&configPath, "config", "c", os.Getenv("IRCD_CONFIG"), "configuration file or URL")
	rootCmd.Flags().BoolVar(&debug, "debug", false, "enable debug logging")

	modulesCmd := &cobra.Command{
		Use:   "modules",
		Short: "List the modules compiled into this binary",
		Run: func(cmd *cobra.Command, args []string) {
			for _, name := range irc.AvailableModules() {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
		},
	}
	rootCmd.AddCommand(modulesCmd)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func initLogger(debug bool) {
	var cfg zap.Config
	if debug {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		cfg = zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.DisableStacktrace = !debug

	l, err := cfg.Build()
	if err != nil {
		panic(err)
	}
	zap.ReplaceGlobals(l)
	zap.RedirectStdLog(l)
}

func run(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	zap.S().Infow("starting IRC server",
		"name", cfg.Server.Name,
		"listen", cfg.ListenAddress(),
		"config", cfg.Source,
		"modules", cfg.Modules)

	srv := irc.NewServer(cfg)

	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		srv.Run(ctx)
	}()

	var loadErr error
	if err := srv.Do(ctx, func() { loadErr = srv.LoadModules() }); err != nil {
		return err
	}
	if loadErr != nil {
		return fmt.Errorf("failed to load modules: %w", loadErr)
	}

	var api *admind.Server
	if cfg.Admin.Enabled {
		api = admind.New(srv)
		go func() {
			if err := api.Start(cfg.AdminListenAddress()); err != nil {
				zap.S().Errorw("admin API stopped", "error", err)
			}
		}()
	}

	err = srv.ListenAndServe(ctx)
	zap.S().Info("shutdown signal received, stopping server")

	if api != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := api.Shutdown(shutdownCtx); err != nil {
			zap.S().Warnw("admin API shutdown", "error", err)
		}
	}
	<-loopDone

	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	zap.S().Info("server stopped")
	return nil
}
