package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	mcpserver "github.com/sourpat/payresolve/internal/mcp"
	"github.com/sourpat/payresolve/internal/samples"
	"github.com/sourpat/payresolve/internal/workflow"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the MCP server for AI agent integration",
	Long:  `Starts a Model Context Protocol (MCP) server on stdio, exposing the sample library and the diagnosis workflow as tools for AI agents.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		var recorder workflow.Recorder
		if database, runs, err := openHistory(cfg); err != nil {
			logger.Warn("diagnosis history disabled", zap.Error(err))
		} else {
			defer database.Close()
			recorder = runs
		}

		client := newAPIClient(cfg, logger)
		logger.Info("payresolve MCP server started on stdio", zap.String("api_base", client.BaseURL()))

		srv := mcpserver.NewServer(client, samples.Default(), recorder, logger)
		return srv.Serve()
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
