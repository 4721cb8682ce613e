// Package main provides the larder CLI: serve runs the HTTP server over a
// database directory, repl opens the interactive shell against a running
// server, init prepares the configuration directory.
package main

import (
	"fmt"
	"os"
)

// Exit codes: user errors (bad flags, bad queries) and system errors
// (config or storage failures) are distinguished for scripting.
const (
	exitSuccess   = 0
	exitUserError = 1
	exitSysError  = 2
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitUserError)
	}
}
