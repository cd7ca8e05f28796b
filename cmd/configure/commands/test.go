package commands

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

// NewTestCmd creates the test command
func NewTestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "test",
		Short: "Test a running server",
	}
	cmd.AddCommand(newTestPreflightCmd())
	return cmd
}

func newTestPreflightCmd() *cobra.Command {
	var baseURL, urlPath, origin, method, headers string
	cmd := &cobra.Command{
		Use:   "preflight",
		Short: "Send a CORS preflight request",
		Long:  "Send an OPTIONS preflight to a running server and report the CORS headers it answers with.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if urlPath == "" {
				return fmt.Errorf("--path is required")
			}
			if origin == "" {
				return fmt.Errorf("--origin is required")
			}
			if baseURL == "" {
				baseURL = envOr("BASE_URL", "http://localhost:8080")
			}
			target := strings.TrimRight(baseURL, "/") + "/" + strings.TrimLeft(urlPath, "/")

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			client := &http.Client{Timeout: 10 * time.Second}
			result, err := sendPreflight(ctx, client, target, origin, method, headers)
			if err != nil {
				return err
			}
			result.print(cmd.OutOrStdout())
			if !result.allowed() {
				return fmt.Errorf("preflight from %s for %s %s was rejected", origin, strings.ToUpper(method), urlPath)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&baseURL, "base-url", "", "Server URL (defaults to BASE_URL)")
	cmd.Flags().StringVar(&urlPath, "path", "", "Request path, e.g. /api/people (required)")
	cmd.Flags().StringVar(&origin, "origin", "", "Origin to send (required)")
	cmd.Flags().StringVar(&method, "method", http.MethodGet, "Access-Control-Request-Method")
	cmd.Flags().StringVar(&headers, "headers", "", "Access-Control-Request-Headers (comma-separated)")
	return cmd
}

// preflightResult is the CORS view of a preflight response.
type preflightResult struct {
	status  int
	origin  string
	header  http.Header
	request string
}

var preflightHeaders = []string{
	"Access-Control-Allow-Origin",
	"Access-Control-Allow-Methods",
	"Access-Control-Allow-Headers",
	"Access-Control-Allow-Credentials",
	"Access-Control-Max-Age",
	"Vary",
}

func sendPreflight(ctx context.Context, client *http.Client, target, origin, method, headers string) (*preflightResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodOptions, target, nil)
	if err != nil {
		return nil, fmt.Errorf("build preflight request: %w", err)
	}
	req.Header.Set("Origin", origin)
	req.Header.Set("Access-Control-Request-Method", strings.ToUpper(method))
	if headers != "" {
		req.Header.Set("Access-Control-Request-Headers", headers)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send preflight request: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close response body: %v\n", err)
		}
	}()
	_, _ = io.Copy(io.Discard, resp.Body)

	return &preflightResult{status: resp.StatusCode, origin: origin, header: resp.Header, request: target}, nil
}

// allowed reports whether the server accepted the origin.
func (p *preflightResult) allowed() bool {
	got := p.header.Get("Access-Control-Allow-Origin")
	return got == "*" || got == p.origin
}

func (p *preflightResult) print(w io.Writer) {
	_, _ = fmt.Fprintf(w, "OPTIONS %s -> %d\n", p.request, p.status)
	for _, name := range preflightHeaders {
		if v := p.header.Values(name); len(v) > 0 {
			_, _ = fmt.Fprintf(w, "  %s: %s\n", name, strings.Join(v, ", "))
		}
	}
	if p.allowed() {
		_, _ = fmt.Fprintln(w, "✓ Preflight accepted")
	} else {
		_, _ = fmt.Fprintln(w, "✗ Preflight rejected")
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
