package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/benvon/datarest/internal/config"
	"github.com/benvon/datarest/internal/cors"
	"github.com/benvon/datarest/internal/database"
	"github.com/benvon/datarest/internal/mapping"
	"github.com/benvon/datarest/internal/models"
	"github.com/benvon/datarest/internal/queue"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// NewCorsCmd creates the cors command managing per-resource cross-origin overrides.
func NewCorsCmd(log *zap.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cors",
		Short: "Manage per-resource CORS overrides",
		Long:  "List, set, delete or resolve cross-origin overrides stored in the database. Overrides replace the cross_origin block of the routes file for a resource.",
	}
	cmd.AddCommand(newCorsListCmd())
	cmd.AddCommand(newCorsSetCmd())
	cmd.AddCommand(newCorsDeleteCmd())
	cmd.AddCommand(newCorsResolveCmd(log))
	return cmd
}

func newCorsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored CORS overrides",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, db, closeDB, err := openDB()
			if err != nil {
				return err
			}
			defer closeDB()

			configs, err := database.NewCrossOriginRepository(db).List(context.Background())
			if err != nil {
				return fmt.Errorf("list cors overrides: %w", err)
			}
			if len(configs) == 0 {
				fmt.Println("No CORS overrides in database. Use 'cors set' to add one.")
				return nil
			}
			for _, c := range configs {
				printCrossOrigin(cmd.OutOrStdout(), c.Resource, c.CrossOrigin)
			}
			return nil
		},
	}
}

// crossOriginFlags holds the cors set flags. Flags left unset keep the
// attribute at its "not set" sentinel.
type crossOriginFlags struct {
	origins          []string
	allowedHeaders   []string
	exposedHeaders   []string
	methods          []string
	maxAge           int64
	allowCredentials string
}

func (f *crossOriginFlags) toModel() *models.CrossOrigin {
	meta := models.NewCrossOrigin()
	if len(f.origins) > 0 {
		meta.Origins = trimAll(f.origins)
	}
	if len(f.allowedHeaders) > 0 {
		meta.AllowedHeaders = trimAll(f.allowedHeaders)
	}
	if len(f.exposedHeaders) > 0 {
		meta.ExposedHeaders = trimAll(f.exposedHeaders)
	}
	if len(f.methods) > 0 {
		meta.Methods = trimAll(f.methods)
		for i, m := range meta.Methods {
			meta.Methods[i] = strings.ToUpper(m)
		}
	}
	if f.maxAge >= 0 {
		meta.MaxAge = f.maxAge
	}
	meta.AllowCredentials = strings.TrimSpace(f.allowCredentials)
	return meta
}

func trimAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func newCorsSetCmd() *cobra.Command {
	var resource string
	flags := &crossOriginFlags{}
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Set the CORS override for a resource",
		Long:  "Store a cross-origin override for a resource. Attributes whose flag is omitted fall back to their defaults when the policy is resolved.",
		RunE: func(cmd *cobra.Command, args []string) error {
			resource = strings.TrimSpace(resource)
			if resource == "" {
				return fmt.Errorf("--resource is required")
			}
			cfg, db, closeDB, err := openDB()
			if err != nil {
				return err
			}
			defer closeDB()

			c := &models.CrossOriginConfig{Resource: resource, CrossOrigin: flags.toModel()}
			if err := database.NewCrossOriginRepository(db).Set(context.Background(), c); err != nil {
				return fmt.Errorf("set cors override: %w", err)
			}
			fmt.Printf("CORS override for %q updated.\n", resource)
			notifyServers(cfg, queue.EventKindCORS, resource)
			return nil
		},
	}
	cmd.Flags().StringVar(&resource, "resource", "", "Resource name (required)")
	cmd.Flags().StringSliceVar(&flags.origins, "origins", nil, "Allowed origins (comma-separated)")
	cmd.Flags().StringSliceVar(&flags.allowedHeaders, "allowed-headers", nil, "Allowed request headers (comma-separated)")
	cmd.Flags().StringSliceVar(&flags.exposedHeaders, "exposed-headers", nil, "Exposed response headers (comma-separated)")
	cmd.Flags().StringSliceVar(&flags.methods, "methods", nil, "Allowed methods (comma-separated)")
	cmd.Flags().Int64Var(&flags.maxAge, "max-age", models.UnsetMaxAge, "Access-Control-Max-Age in seconds")
	cmd.Flags().StringVar(&flags.allowCredentials, "allow-credentials", "", "Allow credentials: true or false")
	return cmd
}

func newCorsDeleteCmd() *cobra.Command {
	var resource string
	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete the CORS override for a resource",
		RunE: func(cmd *cobra.Command, args []string) error {
			resource = strings.TrimSpace(resource)
			if resource == "" {
				return fmt.Errorf("--resource is required")
			}
			cfg, db, closeDB, err := openDB()
			if err != nil {
				return err
			}
			defer closeDB()

			err = database.NewCrossOriginRepository(db).Delete(context.Background(), resource)
			if errors.Is(err, database.ErrNotFound) {
				fmt.Printf("No CORS override for %q.\n", resource)
				return nil
			}
			if err != nil {
				return fmt.Errorf("delete cors override: %w", err)
			}
			fmt.Printf("CORS override for %q deleted.\n", resource)
			notifyServers(cfg, queue.EventKindCORS, resource)
			return nil
		},
	}
	cmd.Flags().StringVar(&resource, "resource", "", "Resource name (required)")
	return cmd
}

func newCorsResolveCmd(log *zap.Logger) *cobra.Command {
	var resource string
	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Print the effective CORS policy of a resource",
		Long:  "Resolve the policy a running server would apply to a resource: routes file, database override and global mappings combined.",
		RunE: func(cmd *cobra.Command, args []string) error {
			resource = strings.TrimSpace(resource)
			if resource == "" {
				return fmt.Errorf("--resource is required")
			}
			cfg, db, closeDB, err := openDB()
			if err != nil {
				return err
			}
			defer closeDB()

			routes, err := config.LoadRoutes(cfg.RoutesFile)
			if err != nil {
				return err
			}
			overrides, err := database.NewCrossOriginRepository(db).Overrides(context.Background())
			if err != nil {
				return fmt.Errorf("load cors overrides: %w", err)
			}
			resources := mapping.ApplyOverrides(routes.Resources, overrides, log)
			mappings, err := mapping.NewMappings(cfg.BasePath, resources)
			if err != nil {
				return err
			}
			return printResolved(cmd.OutOrStdout(), mapping.Build(mappings, routes.Global, log), resource)
		},
	}
	cmd.Flags().StringVar(&resource, "resource", "", "Resource name (required)")
	return cmd
}

// printResolved writes the effective policy of the named resource in table.
func printResolved(w io.Writer, table *mapping.Table, resource string) error {
	var res *models.Resource
	for _, r := range table.Mappings().Resources() {
		if r.Name == resource {
			res = r
			break
		}
	}
	if res == nil {
		return fmt.Errorf("resource %q is not exported by the routes file", resource)
	}
	routePath := path.Join("/", table.Mappings().BasePath(), res.RoutePath())
	policy, ok := table.PolicyFor(routePath)
	if !ok {
		_, _ = fmt.Fprintf(w, "%s (%s): no CORS policy, cross-origin requests are not answered\n", res.Name, routePath)
		return nil
	}
	_, _ = fmt.Fprintf(w, "%s (%s):\n", res.Name, routePath)
	printPolicy(w, policy)
	return nil
}

func printPolicy(w io.Writer, p cors.Policy) {
	_, _ = fmt.Fprintf(w, "  Allowed origins: %s\n", formatList(p.AllowedOrigins))
	_, _ = fmt.Fprintf(w, "  Allowed headers: %s\n", formatList(p.AllowedHeaders))
	_, _ = fmt.Fprintf(w, "  Exposed headers: %s\n", formatList(p.ExposedHeaders))
	_, _ = fmt.Fprintf(w, "  Allowed methods: %s\n", formatList(p.AllowedMethods))
	_, _ = fmt.Fprintf(w, "  Max-Age: %d\n", p.MaxAge)
	_, _ = fmt.Fprintf(w, "  Allow credentials: %v\n", p.AllowCredentials)
}

func printCrossOrigin(w io.Writer, resource string, c *models.CrossOrigin) {
	if c == nil {
		c = models.NewCrossOrigin()
	}
	maxAge := "(unset)"
	if c.MaxAge >= 0 {
		maxAge = fmt.Sprintf("%d", c.MaxAge)
	}
	credentials := c.AllowCredentials
	if credentials == models.UnsetCredentials {
		credentials = "(unset)"
	}
	_, _ = fmt.Fprintf(w, "%s:\n", resource)
	_, _ = fmt.Fprintf(w, "  Origins: %s\n", formatList(c.Origins))
	_, _ = fmt.Fprintf(w, "  Allowed headers: %s\n", formatList(c.AllowedHeaders))
	_, _ = fmt.Fprintf(w, "  Exposed headers: %s\n", formatList(c.ExposedHeaders))
	_, _ = fmt.Fprintf(w, "  Methods: %s\n", formatList(c.Methods))
	_, _ = fmt.Fprintf(w, "  Max-Age: %s\n", maxAge)
	_, _ = fmt.Fprintf(w, "  Allow credentials: %s\n", credentials)
}
