package devapi

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/sourpat/payresolve/internal/apiclient"
)

// MaxTraceLen bounds the trace accepted by the diagnose endpoints.
const MaxTraceLen = 20000

var (
	// ErrMissingErrorCode is returned for a blank error code.
	ErrMissingErrorCode = errors.New("error_code is required")
	// ErrTraceTooLong is returned when the trace exceeds MaxTraceLen.
	ErrTraceTooLong = fmt.Errorf("trace must be at most %d characters", MaxTraceLen)
)

// Options configures a Service.
type Options struct {
	Model        string
	RulesVersion string
	KnowledgeDir string
}

// Service answers the diagnostic API from local rules and playbooks.
type Service struct {
	classifier *Classifier
	playbook   *Playbook
	responder  *Responder
	opts       Options
	logger     *zap.Logger
}

// NewService wires the pieces together. A nil responder produces local
// summaries.
func NewService(c *Classifier, p *Playbook, r *Responder, opts Options, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if c == nil {
		c = NewClassifier(DefaultRules(), "builtin")
	}
	if p == nil {
		p = DefaultPlaybook()
	}
	if r == nil {
		r = NewResponder(nil, opts.Model, logger)
	}
	return &Service{classifier: c, playbook: p, responder: r, opts: opts, logger: logger}
}

// PingResponse is the /support/ping payload.
type PingResponse struct {
	OK           bool   `json:"ok"`
	Model        string `json:"model"`
	HasOpenAI    bool   `json:"has_openai"`
	RulesSource  string `json:"rules_source"`
	KnowledgeDir string `json:"knowledge_dir,omitempty"`
}

// Ping reports the service configuration.
func (s *Service) Ping() PingResponse {
	return PingResponse{
		OK:           true,
		Model:        s.opts.Model,
		HasOpenAI:    s.responder.HasProvider(),
		RulesSource:  s.classifier.Source(),
		KnowledgeDir: s.opts.KnowledgeDir,
	}
}

// Categories lists the playbook categories.
func (s *Service) Categories() []string { return s.playbook.Categories() }

// Diagnose classifies req and attaches the playbook. With summary set it
// also writes the assistant summary.
func (s *Service) Diagnose(ctx context.Context, req apiclient.DiagnosisRequest, summary bool) (*apiclient.DiagnosisResult, error) {
	if strings.TrimSpace(req.ErrorCode) == "" {
		return nil, ErrMissingErrorCode
	}
	if utf8.RuneCountInString(req.Trace) > MaxTraceLen {
		return nil, ErrTraceTooLong
	}

	verdict := s.classifier.Classify(req.ErrorCode, req.Message, req.Trace)
	refs, steps := s.playbook.Retrieve(verdict.Category)

	message := req.Message
	if message == "" {
		message = "No message"
	}
	tag := fmt.Sprintf("[%s/%s] %s", verdict.Category, verdict.Severity, req.ErrorCode)

	result := &apiclient.DiagnosisResult{
		DetectedError:  req.ErrorCode,
		Category:       verdict.Category,
		Severity:       verdict.Severity,
		Signals:        verdict.Signals,
		SuggestedSteps: steps,
		References:     refs,
		RawNotes:       fmt.Sprintf("query=%s :: %s\nsteps=%d refs=%d", tag, message, len(steps), len(refs)),
		RulesVersion:   s.opts.RulesVersion,
	}

	if summary {
		snippets := []string{
			"Steps:\n- " + strings.Join(steps, "\n- "),
			"References:\n- " + strings.Join(refs, "\n- "),
		}
		result.AssistantSummary = s.responder.Summarize(ctx, tag+": "+message, snippets)
	}

	s.logger.Info("diagnosed",
		zap.String("error_code", req.ErrorCode),
		zap.String("category", verdict.Category),
		zap.Bool("summary", summary))
	return result, nil
}
