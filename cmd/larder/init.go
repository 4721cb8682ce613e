// Init command for the larder CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/larder/internal/database"
	"github.com/mesh-intelligence/larder/pkg/types"
)

var flagInitName string

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration and create an empty database",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		configDir, err := resolveConfigDir()
		if err != nil {
			fmt.Fprintln(os.Stderr, "init:", err)
			os.Exit(exitSysError)
		}
		if err := ensureConfigDir(configDir); err != nil {
			fmt.Fprintln(os.Stderr, "init:", err)
			os.Exit(exitSysError)
		}
		if err := ensureDefaultConfigFile(configDir); err != nil {
			fmt.Fprintln(os.Stderr, "init:", err)
			os.Exit(exitSysError)
		}

		dataDir, err := resolveDataDir()
		if err != nil {
			fmt.Fprintln(os.Stderr, "init:", err)
			os.Exit(exitSysError)
		}
		cfg := types.Config{Backend: resolveBackend(), DataDir: dataDir}
		db, err := database.Create(cfg, flagInitName)
		if err != nil {
			fmt.Fprintln(os.Stderr, "init:", err)
			os.Exit(exitSysError)
		}
		defer db.Close()

		fmt.Println("Larder initialized successfully")
		fmt.Println("  config:", configDir)
		fmt.Println("  data:  ", dataDir)
		fmt.Println("  backend:", cfg.Backend)
		return nil
	},
}

func init() {
	initCmd.Flags().StringVar(&flagInitName, "name", "larder", "name of the new database")
}
