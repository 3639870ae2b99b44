package cmd

import (
	"fmt"
	"net/http"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(apikeyCmd)
	apikeyCmd.AddCommand(apikeyIssueCmd)
	apikeyCmd.AddCommand(apikeyListCmd)
	apikeyCmd.AddCommand(apikeyRevokeCmd)
}

var apikeyCmd = &cobra.Command{
	Use:   "apikey",
	Short: "Manage API keys",
}

var apikeyIssueCmd = &cobra.Command{
	Use:   "issue <name>",
	Short: "Issue a new API key",
	Long: `Issue a new API key for the current tenant.

The secret is printed exactly once. It is stored server-side only as a
hash and cannot be recovered later.`,
	Args: cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		var resp struct {
			Key struct {
				ID     string `json:"id"`
				Prefix string `json:"prefix"`
			} `json:"key"`
			Secret string `json:"secret"`
		}
		err := doJSON(http.MethodPost, "/v1/apikeys", map[string]string{"name": args[0]}, &resp)
		if err != nil {
			return err
		}

		color.New(color.FgGreen).Printf("issued key %s (%s)\n", resp.Key.Prefix, resp.Key.ID)
		color.New(color.FgYellow).Println("store this secret now; it will not be shown again:")
		fmt.Println(resp.Secret)
		return nil
	},
}

var apikeyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List API keys (prefixes only)",
	RunE: func(_ *cobra.Command, _ []string) error {
		var resp struct {
			Keys []struct {
				ID        string  `json:"id"`
				Name      string  `json:"name"`
				Prefix    string  `json:"prefix"`
				RevokedAt *string `json:"revoked_at"`
			} `json:"keys"`
		}
		if err := doJSON(http.MethodGet, "/v1/apikeys", nil, &resp); err != nil {
			return err
		}
		for _, key := range resp.Keys {
			status := color.GreenString("active")
			if key.RevokedAt != nil {
				status = color.RedString("revoked")
			}
			fmt.Printf("%s  %s  %-20s %s\n", key.ID, key.Prefix, key.Name, status)
		}
		return nil
	},
}

var apikeyRevokeCmd = &cobra.Command{
	Use:   "revoke <id>",
	Short: "Revoke an API key",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		if err := doJSON(http.MethodDelete, "/v1/apikeys/"+args[0], nil, nil); err != nil {
			return err
		}
		color.New(color.FgGreen).Println("revoked")
		return nil
	},
}
