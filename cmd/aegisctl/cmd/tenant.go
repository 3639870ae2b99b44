package cmd

import (
	"fmt"
	"net/http"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(tenantCmd)
	tenantCmd.AddCommand(tenantCreateCmd)
	tenantCmd.AddCommand(tenantGetCmd)

	tenantCreateCmd.Flags().String("plan", "free", "subscription plan")
}

var tenantCmd = &cobra.Command{
	Use:   "tenant",
	Short: "Manage tenants",
}

var tenantCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a tenant",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		plan, _ := cmd.Flags().GetString("plan")

		var tenant struct {
			ID   string `json:"id"`
			Slug string `json:"slug"`
			Name string `json:"name"`
			Plan string `json:"plan"`
		}
		err := doJSON(http.MethodPost, "/v1/tenants", map[string]string{
			"name": args[0],
			"plan": plan,
		}, &tenant)
		if err != nil {
			return err
		}

		color.New(color.FgGreen).Printf("created tenant %s\n", tenant.Name)
		fmt.Printf("  id:   %s\n", tenant.ID)
		fmt.Printf("  slug: %s\n", tenant.Slug)
		fmt.Printf("  plan: %s\n", tenant.Plan)
		return nil
	},
}

var tenantGetCmd = &cobra.Command{
	Use:   "get <id-or-slug>",
	Short: "Look up a tenant",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		var tenant struct {
			ID   string `json:"id"`
			Slug string `json:"slug"`
			Name string `json:"name"`
			Plan string `json:"plan"`
		}
		if err := doJSON(http.MethodGet, "/v1/tenants/"+args[0], nil, &tenant); err != nil {
			return err
		}
		fmt.Printf("%s  %s  (%s, %s)\n", tenant.ID, tenant.Slug, tenant.Name, tenant.Plan)
		return nil
	},
}
