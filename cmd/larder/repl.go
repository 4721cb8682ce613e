package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/larder/internal/client"
)

var (
	flagServerURL string
	flagFormat    string
)

var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Open the interactive shell against a running server",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		configDir, err := resolveConfigDir()
		if err != nil {
			fmt.Fprintln(os.Stderr, "repl:", err)
			os.Exit(exitSysError)
		}
		c := client.New(flagServerURL)
		repl := client.NewRepl(c, flagFormat, configDir)
		return repl.Run(cmd.OutOrStdout())
	},
}

func init() {
	replCmd.Flags().StringVar(&flagServerURL, "server", "http://localhost:8080", "server base URL")
	replCmd.Flags().StringVar(&flagFormat, "format", "table", "output format: table, json, csv")
}
