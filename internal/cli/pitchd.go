package cli

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tOgg1/pitchline/internal/backend"
	"github.com/tOgg1/pitchline/internal/config"
	"github.com/tOgg1/pitchline/internal/db"
	"github.com/tOgg1/pitchline/internal/logging"
)

// ExecuteServer runs the pitchd command line.
func ExecuteServer(version string) error {
	return newServerRootCmd(version).ExecuteContext(context.Background())
}

func newServerRootCmd(version string) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "pitchd",
		Short:         "Development message service for pitchline",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version,
		Args:          cobra.NoArgs,
		RunE:          runServe,
	}
	flags := cmd.Flags()
	flags.String("config", "", "config file (default: ~/.config/pitchline/config.yaml)")
	flags.String("log-level", "", "log level (trace, debug, info, warn, error)")
	flags.String("addr", "", "listen address (default: server.addr)")
	flags.String("db", "", "SQLite database path (default: server.db_path)")
	return cmd
}

func loadServerConfig(cmd *cobra.Command) (*config.Config, error) {
	loader := config.NewLoader()
	if path, _ := cmd.Flags().GetString("config"); strings.TrimSpace(path) != "" {
		loader.SetConfigFile(path)
	}
	overrides := map[string]string{
		"log-level": "logging.level",
		"addr":      "server.addr",
		"db":        "server.db_path",
	}
	for flag, key := range overrides {
		if value, _ := cmd.Flags().GetString(flag); strings.TrimSpace(value) != "" {
			loader.Set(key, value)
		}
	}
	return loader.Load()
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadServerConfig(cmd)
	if err != nil {
		return Exitf(ExitCodeFailure, "%v", err)
	}
	logCfg := cfg.LoggingInit()
	logCfg.Output = cmd.ErrOrStderr()
	closer, err := logging.Init(logCfg)
	if err != nil {
		return Exitf(ExitCodeFailure, "init logging: %v", err)
	}
	defer closer.Close()
	logger := logging.Component("pitchd")

	dbCfg := db.DefaultConfig()
	dbCfg.Path = cfg.Server.DBPath
	store, err := db.Open(dbCfg)
	if err != nil {
		return Exitf(ExitCodeFailure, "%v", err)
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	applied, err := store.MigrateUp(ctx)
	if err != nil {
		return Exitf(ExitCodeFailure, "migrate: %v", err)
	}
	logger.Info().Int("applied", applied).Str("db", store.Path()).Msg("database ready")

	srv := backend.NewServer(backend.Config{
		Addr:           cfg.Server.Addr,
		RateLimitRPS:   cfg.Server.RateLimitRPS,
		RateLimitBurst: cfg.Server.RateLimitBurst,
	}, db.NewMessageRepository(store), nil)
	if err := srv.Run(ctx); err != nil {
		return Exitf(ExitCodeFailure, "serve: %v", err)
	}
	return nil
}
