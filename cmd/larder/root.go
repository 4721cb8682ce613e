package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/larder/internal/paths"
)

// Global flag values.
var (
	flagConfigDir string
	flagDataDir   string
	flagBackend   string
	flagLogLevel  string
)

// configValues holds settings loaded from config.yaml by PersistentPreRunE;
// flags override them.
var configValues struct {
	backend    string
	dataDir    string
	listenAddr string
	logLevel   string
}

var logger = slog.New(slog.NewTextHandler(os.Stderr, nil))

var rootCmd = &cobra.Command{
	Use:          "larder",
	Short:        "Larder is a small table-oriented data engine",
	Version:      version,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		configDir, err := resolveConfigDir()
		if err != nil {
			return err
		}
		cfg, err := loadConfig(configDir)
		if err != nil {
			return err
		}
		configValues.backend = cfg.GetString(cfgKeyBackend)
		configValues.dataDir = cfg.GetString(cfgKeyDataDir)
		configValues.listenAddr = cfg.GetString(cfgKeyListenAddr)
		configValues.logLevel = cfg.GetString(cfgKeyLogLevel)

		logger = newLogger(resolveLogLevel())
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfigDir, "config-dir", "", "configuration directory (default: platform config dir)")
	rootCmd.PersistentFlags().StringVar(&flagDataDir, "data-dir", "", "database directory (default: $(CWD)/.larder-db)")
	rootCmd.PersistentFlags().StringVar(&flagBackend, "backend", "", "storage backend: native or sqlite")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "log level: debug, info, warn, error")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(replCmd)
}

func resolveConfigDir() (string, error) {
	return paths.ResolveConfigDir(flagConfigDir)
}

func resolveDataDir() (string, error) {
	return paths.ResolveDataDir(flagDataDir, configValues.dataDir)
}

func resolveBackend() string {
	if flagBackend != "" {
		return flagBackend
	}
	return configValues.backend
}

func resolveLogLevel() string {
	if flagLogLevel != "" {
		return flagLogLevel
	}
	return configValues.logLevel
}

func newLogger(level string) *slog.Logger {
	var l slog.Level
	switch level {
	case "debug":
		l = slog.LevelDebug
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l}))
}
