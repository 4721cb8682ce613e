package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/larder/internal/database"
	"github.com/mesh-intelligence/larder/internal/server"
	"github.com/mesh-intelligence/larder/pkg/types"
)

var (
	flagNew        string
	flagListenAddr string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server over a database directory",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		dataDir, err := resolveDataDir()
		if err != nil {
			fmt.Fprintln(os.Stderr, "serve:", err)
			os.Exit(exitSysError)
		}
		cfg := types.Config{
			Backend:    resolveBackend(),
			DataDir:    dataDir,
			ListenAddr: resolveListenAddr(),
			LogLevel:   resolveLogLevel(),
		}

		var db *database.Database
		if flagNew != "" {
			db, err = database.Create(cfg, flagNew)
		} else {
			db, err = database.Open(cfg)
		}
		if err != nil {
			fmt.Fprintln(os.Stderr, "serve:", err)
			os.Exit(exitSysError)
		}
		defer db.Close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		srv := server.New(db, cfg.ListenAddr, logger)
		if err := srv.Serve(ctx); err != nil {
			fmt.Fprintln(os.Stderr, "serve:", err)
			os.Exit(exitSysError)
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().StringVar(&flagNew, "new", "", "create a new database called <name> before serving")
	serveCmd.Flags().StringVar(&flagListenAddr, "listen", "", "listen address (default: config listen_addr)")
}

func resolveListenAddr() string {
	if flagListenAddr != "" {
		return flagListenAddr
	}
	if configValues.listenAddr != "" {
		return configValues.listenAddr
	}
	return defaultListenAddr
}
