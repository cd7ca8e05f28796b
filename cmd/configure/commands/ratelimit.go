package commands

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/benvon/datarest/internal/database"
	"github.com/benvon/datarest/internal/models"
	"github.com/benvon/datarest/internal/queue"
	"github.com/spf13/cobra"
	"github.com/ulule/limiter/v3"
)

// NewRatelimitCmd creates the ratelimit configuration command with list and set subcommands.
func NewRatelimitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ratelimit",
		Short: "Manage rate limit configuration",
		Long:  "List or update rate limits (e.g. 5-S, 100-M) per scope. The default scope applies to resources without their own rate. Stored in database.",
	}
	cmd.AddCommand(newRatelimitListCmd())
	cmd.AddCommand(newRatelimitSetCmd())
	return cmd
}

func newRatelimitListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored rate limits",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, db, closeDB, err := openDB()
			if err != nil {
				return err
			}
			defer closeDB()

			rates, err := database.NewRatelimitConfigRepository(db).List(context.Background())
			if err != nil {
				return fmt.Errorf("list ratelimit config: %w", err)
			}
			if len(rates) == 0 {
				fmt.Println("No rate limit configuration in database. Use 'ratelimit set' to add one.")
				return nil
			}
			scopes := make([]string, 0, len(rates))
			for scope := range rates {
				scopes = append(scopes, scope)
			}
			sort.Strings(scopes)
			fmt.Println("Rate limit configuration:")
			for _, scope := range scopes {
				fmt.Printf("  %s: %s\n", scope, rates[scope])
			}
			return nil
		},
	}
}

func newRatelimitSetCmd() *cobra.Command {
	var rate, scope string
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Set rate limit configuration",
		Long:  "Update the rate limit of a scope (e.g. 5-S, 100-M, 1000-H). Stored in database.",
		RunE: func(cmd *cobra.Command, args []string) error {
			rate = strings.TrimSpace(rate)
			if rate == "" {
				return fmt.Errorf("--rate is required (e.g. 5-S, 100-M)")
			}
			if _, err := limiter.NewRateFromFormatted(rate); err != nil {
				return fmt.Errorf("invalid rate %q: %w", rate, err)
			}
			cfg, db, closeDB, err := openDB()
			if err != nil {
				return err
			}
			defer closeDB()

			c := &models.RatelimitConfig{ConfigKey: scope, Rate: rate}
			if err := database.NewRatelimitConfigRepository(db).Set(context.Background(), c); err != nil {
				return fmt.Errorf("set ratelimit config: %w", err)
			}
			fmt.Println("Rate limit configuration updated.")
			notifyServers(cfg, queue.EventKindRatelimit, scope)
			return nil
		},
	}
	cmd.Flags().StringVar(&rate, "rate", "", "Rate (e.g. 5-S, 100-M, 1000-H) (required)")
	cmd.Flags().StringVar(&scope, "scope", database.DefaultRatelimitScope, "Resource name, or \"default\"")
	return cmd
}
