package cmd

import (
	"fmt"
	"net/http"
	"net/url"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(obsCmd)
	obsCmd.AddCommand(obsSummaryCmd)
	obsCmd.AddCommand(obsPushCmd)

	obsSummaryCmd.Flags().String("application", "", "scope to one application id")
	obsSummaryCmd.Flags().String("from", "", "window start (RFC3339)")
	obsSummaryCmd.Flags().String("to", "", "window end (RFC3339)")

	obsPushCmd.Flags().String("path", "/v1/chat", "request path")
	obsPushCmd.Flags().Int("status", 200, "status code")
	obsPushCmd.Flags().Int64("latency", 0, "latency in milliseconds (0 = not measured)")
	obsPushCmd.Flags().String("model", "", "model name")
	obsPushCmd.Flags().String("application", "", "application id")
}

var obsCmd = &cobra.Command{
	Use:   "obs",
	Short: "Observability summaries and log ingest",
}

var obsSummaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Show decision counts and latency for the current tenant",
	RunE: func(cmd *cobra.Command, _ []string) error {
		query := url.Values{}
		for _, flag := range []string{"application", "from", "to"} {
			if v, _ := cmd.Flags().GetString(flag); v != "" {
				name := flag
				if flag == "application" {
					name = "application_id"
				}
				query.Set(name, v)
			}
		}
		path := "/v1/observability/summary"
		if len(query) > 0 {
			path += "?" + query.Encode()
		}

		var summary struct {
			TotalCount         int   `json:"total_count"`
			AllowCount         int   `json:"allow_count"`
			BlockCount         int   `json:"block_count"`
			AverageLatencyMs   int64 `json:"average_latency_ms"`
			DistinctPolicies   int   `json:"distinct_policies"`
			DistinctGuardrails int   `json:"distinct_guardrails"`
			DistinctModels     int   `json:"distinct_models"`
		}
		if err := doJSON(http.MethodGet, path, nil, &summary); err != nil {
			return err
		}

		fmt.Printf("decisions: %d total, %s / %s\n",
			summary.TotalCount,
			color.GreenString("%d allowed", summary.AllowCount),
			color.RedString("%d blocked", summary.BlockCount),
		)
		fmt.Printf("avg latency: %dms\n", summary.AverageLatencyMs)
		fmt.Printf("in enforcement: %d policies, %d guardrails, %d models\n",
			summary.DistinctPolicies, summary.DistinctGuardrails, summary.DistinctModels)
		return nil
	},
}

var obsPushCmd = &cobra.Command{
	Use:   "push",
	Short: "Ingest one log entry (testing aid)",
	RunE: func(cmd *cobra.Command, _ []string) error {
		path, _ := cmd.Flags().GetString("path")
		status, _ := cmd.Flags().GetInt("status")
		latency, _ := cmd.Flags().GetInt64("latency")
		model, _ := cmd.Flags().GetString("model")
		appID, _ := cmd.Flags().GetString("application")

		body := map[string]any{
			"path":        path,
			"status_code": status,
		}
		if latency > 0 {
			body["latency_ms"] = latency
		}
		if model != "" {
			body["model"] = model
		}
		if appID != "" {
			body["application_id"] = appID
		}

		if err := doJSON(http.MethodPost, "/v1/observability/logs", body, nil); err != nil {
			return err
		}
		color.New(color.FgGreen).Println("ingested")
		return nil
	},
}
