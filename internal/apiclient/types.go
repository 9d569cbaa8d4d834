package apiclient

// PingStatus is the health-check payload of GET /support/ping.
type PingStatus struct {
	OK          bool   `json:"ok"`
	Model       string `json:"model,omitempty"`
	RulesSource string `json:"rules_source,omitempty"`
}

// DiagnosisRequest is the body of POST /support/diagnose.
type DiagnosisRequest struct {
	ErrorCode string `json:"error_code"`
	Message   string `json:"message"`
	Trace     string `json:"trace,omitempty"`
}

// DiagnosisResult is the triage payload returned by the diagnose endpoints.
// The with-summary variant additionally fills AssistantSummary, RawNotes and
// RulesVersion.
type DiagnosisResult struct {
	DetectedError    string   `json:"detected_error,omitempty"`
	Category         string   `json:"category,omitempty"`
	Severity         string   `json:"severity,omitempty"`
	Signals          []string `json:"signals,omitempty"`
	SuggestedSteps   []string `json:"suggested_steps,omitempty"`
	References       []string `json:"references,omitempty"`
	AssistantSummary string   `json:"assistant_summary,omitempty"`
	RawNotes         string   `json:"raw_notes,omitempty"`
	RulesVersion     string   `json:"rules_version,omitempty"`
}

// categoriesResponse is the payload of GET /support/categories.
type categoriesResponse struct {
	Categories []string `json:"categories"`
}

// errorBody is the FastAPI-style error envelope.
type errorBody struct {
	Detail string `json:"detail"`
}
