package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/sourpat/payresolve/internal/history"
	"github.com/sourpat/payresolve/internal/workflow"
)

// handleListSamples lists sample incidents, optionally filtered by category.
func (s *Server) handleListSamples(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	category := request.GetString("category", "")

	var sb strings.Builder
	count := 0
	for _, inc := range s.samples.All() {
		if category != "" && !strings.EqualFold(inc.Category, category) {
			continue
		}
		count++
		sb.WriteString(fmt.Sprintf("- %s: %s [%s] (%s)\n", inc.ID, inc.Title, inc.Category, inc.ErrorCode))
	}
	if count == 0 {
		return mcp.NewToolResultText(fmt.Sprintf(
			"No samples found. Known categories: %s", strings.Join(s.samples.Categories(), ", "),
		)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Found %d sample(s):\n%s", count, sb.String())), nil
}

// handleGetSample returns one sample as JSON.
func (s *Server) handleGetSample(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: id"), nil
	}
	inc, ok := s.samples.ByID(id)
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("No sample with id %q. Use list_samples to see available ids.", id)), nil
	}
	return jsonResult(inc)
}

// handlePingAPI reports the diagnostic API health.
func (s *Server) handlePingAPI(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	st := s.client.Ping(ctx)
	var sb strings.Builder
	for _, b := range workflow.StatusBadges(&st, s.client.BaseURL()) {
		sb.WriteString(b.Label)
		sb.WriteString("\n")
	}
	return mcp.NewToolResultText(sb.String()), nil
}

// handleDiagnoseIncident runs one diagnosis through the same workflow the
// console uses.
func (s *Server) handleDiagnoseIncident(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	view := workflow.New(workflow.Deps{
		Client:   s.client,
		Samples:  s.samples,
		Recorder: s.recorder,
		Logger:   s.logger,
	}, workflow.Options{Source: history.SourceMCP})

	sampleID := request.GetString("sample_id", "")
	code := request.GetString("error_code", "")
	message := request.GetString("message", "")
	if sampleID == "" && (code == "" || message == "") {
		return mcp.NewToolResultError("provide error_code and message, or a sample_id"), nil
	}
	if sampleID != "" && !view.ApplySample(sampleID) {
		return mcp.NewToolResultError(fmt.Sprintf("No sample with id %q.", sampleID)), nil
	}
	if code != "" {
		view.SetField(workflow.FieldErrorCode, code)
	}
	if message != "" {
		view.SetField(workflow.FieldMessage, message)
	}
	if trace := request.GetString("trace", ""); trace != "" {
		view.SetField(workflow.FieldTrace, trace)
	}

	if err := view.RunDiagnosis(ctx); err != nil {
		return mcp.NewToolResultError(view.Snapshot().Err), nil
	}
	return jsonResult(view.Snapshot().Result)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encoding result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
