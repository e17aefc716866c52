package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information set at build time.
var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:           "innernet",
		Short:         "Game lobby and object relay server",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		serveCmd(),
		decodeCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// configPath resolves the config file: flag, then INNERNET_CONFIG, then the default.
func configPath(flag string) string {
	if flag != "" {
		return flag
	}
	if p := os.Getenv("INNERNET_CONFIG"); p != "" {
		return p
	}
	return "config/server.toml"
}
