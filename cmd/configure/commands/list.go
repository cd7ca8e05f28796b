package commands

import (
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/benvon/datarest/internal/config"
	"github.com/benvon/datarest/internal/mapping"
	"github.com/spf13/cobra"
)

// NewRoutesCmd creates the routes command
func NewRoutesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "routes",
		Short: "Inspect the routes file",
	}
	cmd.AddCommand(newRoutesListCmd())
	return cmd
}

func newRoutesListCmd() *cobra.Command {
	var routesFile, basePath string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List exported resources and global CORS mappings",
		Long:  "Validate the routes file and list the resources it exports with their supported methods. Does not connect to the database.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if routesFile == "" {
				routesFile = envOr("ROUTES_FILE", "routes.yaml")
			}
			if basePath == "" {
				basePath = envOr("BASE_PATH", "/api")
			}
			routes, err := config.LoadRoutes(routesFile)
			if err != nil {
				return err
			}
			mappings, err := mapping.NewMappings(basePath, routes.Resources)
			if err != nil {
				return err
			}
			printRoutes(cmd.OutOrStdout(), mappings, routes)
			return nil
		},
	}
	cmd.Flags().StringVar(&routesFile, "routes", "", "Routes file (defaults to ROUTES_FILE)")
	cmd.Flags().StringVar(&basePath, "base-path", "", "Base path (defaults to BASE_PATH)")
	return cmd
}

func printRoutes(w io.Writer, mappings *mapping.Mappings, routes *config.Routes) {
	resources := mappings.Resources()
	if len(resources) == 0 {
		_, _ = fmt.Fprintln(w, "No exported resources")
	} else {
		_, _ = fmt.Fprintln(w, "Exported resources:")
	}
	for _, res := range resources {
		cors := "no"
		if res.CrossOrigin != nil {
			cors = "yes"
		}
		_, _ = fmt.Fprintf(w, "  - %s\n", res.Name)
		_, _ = fmt.Fprintf(w, "    Path: %s\n", path.Join("/", mappings.BasePath(), res.RoutePath()))
		_, _ = fmt.Fprintf(w, "    Methods: %s\n", strings.Join(mapping.SupportedMethods(res.Capabilities), ", "))
		_, _ = fmt.Fprintf(w, "    Cross origin: %s\n", cors)
	}
	if patterns := routes.Global.Patterns(); len(patterns) > 0 {
		_, _ = fmt.Fprintln(w, "Global CORS mappings:")
		for _, p := range patterns {
			_, _ = fmt.Fprintf(w, "  - %s\n", p)
		}
	}
}
