package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sourpat/payresolve/internal/workflow"
)

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Check the diagnostic API health",
	RunE: func(cmd *cobra.Command, args []string) error {
		client := newAPIClient(cfg, logger)
		st := client.Ping(cmd.Context())
		for _, b := range workflow.StatusBadges(&st, client.BaseURL()) {
			fmt.Fprintln(cmd.OutOrStdout(), b.Label)
		}
		if !st.OK {
			return fmt.Errorf("diagnostic API at %s is offline", client.BaseURL())
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(pingCmd)
}
