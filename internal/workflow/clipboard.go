package workflow

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
)

const (
	NoticeCopied     = "Copied to clipboard"
	NoticeCopyFailed = "Copy failed"
)

// ErrNothingToCopy is returned by CopyPanel when the panel is empty.
var ErrNothingToCopy = errors.New("nothing to copy")

// Clipboard writes text to a system or browser clipboard.
type Clipboard interface {
	WriteText(ctx context.Context, text string) error
}

// ClipboardFunc adapts a function to Clipboard.
type ClipboardFunc func(ctx context.Context, text string) error

func (f ClipboardFunc) WriteText(ctx context.Context, text string) error { return f(ctx, text) }

// Notice is a one-shot acknowledgment shown to the user. It is not part of
// the view state.
type Notice struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

// Copy writes text to the clipboard and reports the outcome. Failures never
// touch the view state.
func (v *View) Copy(ctx context.Context, text string) Notice {
	if v.deps.Clipboard == nil {
		return Notice{Message: NoticeCopyFailed}
	}
	if err := v.deps.Clipboard.WriteText(ctx, text); err != nil {
		v.deps.Logger.Debug("clipboard write failed", zap.Error(err))
		return Notice{Message: NoticeCopyFailed}
	}
	return Notice{OK: true, Message: NoticeCopied}
}

// Panel names a copyable result panel.
type Panel string

const (
	PanelSummary    Panel = "summary"
	PanelSteps      Panel = "steps"
	PanelReferences Panel = "references"
)

// CopyText returns the clipboard text for panel p of the current result.
func (v *View) CopyText(p Panel) (string, error) {
	v.mu.Lock()
	result := v.result
	v.mu.Unlock()

	panels := BuildPanels(result)
	var text string
	switch p {
	case PanelSummary:
		text = panels.Summary
	case PanelSteps:
		text = strings.Join(panels.Steps, "\n")
	case PanelReferences:
		text = strings.Join(panels.References, "\n")
	default:
		return "", errors.New("unknown panel " + string(p))
	}
	if text == "" {
		return "", ErrNothingToCopy
	}
	return text, nil
}

// CopyPanel copies the content of panel p. An empty panel yields a failure
// notice without calling the clipboard.
func (v *View) CopyPanel(ctx context.Context, p Panel) Notice {
	text, err := v.CopyText(p)
	if err != nil {
		return Notice{Message: NoticeCopyFailed}
	}
	return v.Copy(ctx, text)
}
