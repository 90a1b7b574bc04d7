package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
)

func newHealthCommand(cmdCtx *commandContext) *cobra.Command {
	var url string

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Query a running worker's health endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			if url == "" {
				cfg, err := cmdCtx.ensureConfig()
				if err != nil {
					return err
				}
				url = "http://" + cfg.Paths.APIBind + "/health"
			}

			client := &http.Client{Timeout: 5 * time.Second}
			req, err := http.NewRequestWithContext(cmd.Context(), http.MethodGet, url, nil)
			if err != nil {
				return err
			}
			resp, err := client.Do(req)
			if err != nil {
				return fmt.Errorf("worker unreachable: %w", err)
			}
			defer resp.Body.Close()

			var body struct {
				Status          string `json:"status"`
				ModelLoaded     bool   `json:"model_loaded"`
				BrokerConnected bool   `json:"broker_connected"`
			}
			if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
				return fmt.Errorf("decode health response: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Status:           %s\n", body.Status)
			fmt.Fprintf(cmd.OutOrStdout(), "Model loaded:     %t\n", body.ModelLoaded)
			fmt.Fprintf(cmd.OutOrStdout(), "Broker connected: %t\n", body.BrokerConnected)
			return nil
		},
	}

	cmd.Flags().StringVar(&url, "url", "", "Health endpoint URL (defaults to the configured bind address)")
	return cmd
}
