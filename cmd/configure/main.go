package main

import (
	"fmt"
	"os"

	"github.com/benvon/datarest/cmd/configure/commands"
	"github.com/benvon/datarest/internal/logger"
	"github.com/spf13/cobra"
)

func main() {
	log, err := logger.NewDevelopmentLogger(os.Getenv("SERVER_DEBUG_MODE") == "true")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	var rootCmd = &cobra.Command{
		Use:   "datarest-configure",
		Short: "Configuration tool for the datarest API",
		Long:  "CLI tool for managing CORS overrides, rate limits and the routes file",
	}

	rootCmd.AddCommand(commands.NewCorsCmd(log))
	rootCmd.AddCommand(commands.NewRatelimitCmd())
	rootCmd.AddCommand(commands.NewRoutesCmd())
	rootCmd.AddCommand(commands.NewTestCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
