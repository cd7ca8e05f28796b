package commands

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/benvon/datarest/internal/config"
	"github.com/benvon/datarest/internal/database"
	"github.com/benvon/datarest/internal/queue"
)

// openDB loads configuration and connects to the database. The returned
// closer reports close failures on stderr.
func openDB() (*config.Config, *database.DB, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}
	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("connect to database: %w", err)
	}
	closer := func() {
		if err := db.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close database: %v\n", err)
		}
	}
	return cfg, db, closer, nil
}

// notifyServers publishes a reconfiguration event when RABBITMQ_URL is set.
// Servers still pick the change up on their next poll if this fails.
func notifyServers(cfg *config.Config, kind queue.EventKind, resource string) {
	if cfg.RabbitMQURL == "" {
		return
	}
	bus, err := queue.NewRabbitMQBus(cfg.RabbitMQURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not notify servers: %v\n", err)
		return
	}
	defer func() {
		_ = bus.Close()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := bus.Publish(ctx, queue.NewReconfigureEvent(kind, resource)); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not notify servers: %v\n", err)
		return
	}
	fmt.Println("Running servers notified.")
}

// formatList renders a list attribute, marking unset ones.
func formatList(values []string) string {
	if values == nil {
		return "(unset)"
	}
	if len(values) == 0 {
		return "(none)"
	}
	return strings.Join(values, ", ")
}
