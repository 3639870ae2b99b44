// Package cmd implements the aegisctl admin CLI. Every command is a thin
// wrapper over the HTTP API; no business logic lives here.
package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// HTTPClient is the transport seam; tests substitute a fake.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

var httpClient HTTPClient = http.DefaultClient

var (
	serverAddr string
	authToken  string
	tenantRef  string
)

var rootCmd = &cobra.Command{
	Use:           "aegisctl",
	Short:         "Administer an aegis deployment",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		color.New(color.FgRed).Fprintf(os.Stderr, "error: %v\n", err)
		return err
	}
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverAddr, "addr", envOr("AEGIS_ADDR", "http://localhost:8080"), "aegis server base URL")
	rootCmd.PersistentFlags().StringVar(&authToken, "token", os.Getenv("AEGIS_TOKEN"), "bearer token")
	rootCmd.PersistentFlags().StringVar(&tenantRef, "tenant", os.Getenv("AEGIS_TENANT"), "tenant id or slug for scoped commands")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// doJSON issues a request and decodes the response into out. Non-2xx
// responses surface the server's body text, which carries the error
// description.
func doJSON(method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, serverAddr+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if authToken != "" {
		req.Header.Set("Authorization", "Bearer "+authToken)
	}
	if tenantRef != "" {
		req.Header.Set("X-Tenant-ID", tenantRef)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%s %s: %s: %s", method, path, resp.Status, bytes.TrimSpace(raw))
	}
	if out != nil && len(raw) > 0 {
		return json.Unmarshal(raw, out)
	}
	return nil
}
