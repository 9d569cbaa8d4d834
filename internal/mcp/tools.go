package mcp

import "github.com/mark3labs/mcp-go/mcp"

// listSamplesTool defines the list_samples MCP tool.
var listSamplesTool = mcp.NewTool("list_samples",
	mcp.WithDescription("List the built-in sample payment incidents with their ids, titles and categories."),
	mcp.WithString("category",
		mcp.Description("Only list samples in this category, e.g. \"Payment errors\""),
	),
)

// getSampleTool defines the get_sample MCP tool.
var getSampleTool = mcp.NewTool("get_sample",
	mcp.WithDescription("Get the full payload (error code, message, trace) of one sample incident."),
	mcp.WithString("id",
		mcp.Required(),
		mcp.Description("Sample id as returned by list_samples"),
	),
)

// pingAPITool defines the ping_api MCP tool.
var pingAPITool = mcp.NewTool("ping_api",
	mcp.WithDescription("Check whether the diagnostic API is reachable and report its model and rules source."),
)

// diagnoseIncidentTool defines the diagnose_incident MCP tool.
var diagnoseIncidentTool = mcp.NewTool("diagnose_incident",
	mcp.WithDescription("Diagnose a payment error. Returns category, severity, signals, suggested steps, references and an assistant summary."),
	mcp.WithString("error_code",
		mcp.Description("Error code, e.g. PAYMENT_METHOD_ERROR. Required unless sample_id is given."),
	),
	mcp.WithString("message",
		mcp.Description("Short error message. Required unless sample_id is given."),
	),
	mcp.WithString("trace",
		mcp.Description("Optional stack trace or log excerpt"),
	),
	mcp.WithString("sample_id",
		mcp.Description("Start from this sample incident; explicit fields override it"),
	),
)
