package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sourpat/payresolve/internal/history"
	"github.com/sourpat/payresolve/internal/progress"
	"github.com/sourpat/payresolve/internal/samples"
	"github.com/sourpat/payresolve/internal/workflow"
)

// clipboardWriteAll is swapped out in tests.
var clipboardWriteAll = clipboard.WriteAll

// systemClipboard writes to the OS clipboard.
var systemClipboard = workflow.ClipboardFunc(func(_ context.Context, text string) error {
	return clipboardWriteAll(text)
})

var (
	diagCode      string
	diagMessage   string
	diagTrace     string
	diagTraceFile string
	diagSample    string
	diagPick      bool
	diagCopy      string
	diagJSON      bool
	diagQuiet     bool
)

var diagnoseCmd = &cobra.Command{
	Use:   "diagnose",
	Short: "Submit an incident to the diagnostic API",
	Long: `Submits an error code, message and optional trace to the diagnostic API
and prints the triage result. Start from a sample with --sample or --pick;
explicit flags override the sample's fields.`,
	Example: `  payresolve diagnose --sample payment-avs
  payresolve diagnose --code AUTH_TOKEN_EXPIRED --message "401 from gateway" --trace-file err.log
  payresolve diagnose --pick --copy steps`,
	RunE: func(cmd *cobra.Command, args []string) error {
		switch workflow.Panel(diagCopy) {
		case "", workflow.PanelSummary, workflow.PanelSteps, workflow.PanelReferences:
		default:
			return fmt.Errorf("--copy must be one of summary, steps, references")
		}

		var recorder workflow.Recorder
		if database, runs, err := openHistory(cfg); err != nil {
			logger.Warn("diagnosis history disabled", zap.Error(err))
		} else {
			defer database.Close()
			recorder = runs
		}

		lib := samples.Default()
		view := workflow.New(workflow.Deps{
			Client:    newAPIClient(cfg, logger),
			Samples:   lib,
			Clipboard: systemClipboard,
			Recorder:  recorder,
			Logger:    logger,
		}, workflow.Options{Source: history.SourceCLI})

		return runDiagnose(cmd, view, lib)
	},
}

func runDiagnose(cmd *cobra.Command, view *workflow.View, lib *samples.Library) error {
	ctx := cmd.Context()

	if diagPick {
		id, err := pickSample(lib)
		if err != nil {
			return err
		}
		diagSample = id
	}
	if diagSample != "" && !view.ApplySample(diagSample) {
		return fmt.Errorf("unknown sample %q (see `payresolve samples`)", diagSample)
	}
	if err := applyDiagnoseFlags(cmd, view); err != nil {
		return err
	}

	rep := progress.NewReporter(cmd.ErrOrStderr(), diagQuiet || diagJSON)
	rep.Start("Diagnosing " + view.Snapshot().ErrorCode)
	err := view.RunDiagnosis(ctx)
	rep.Finish("")

	snap := view.Snapshot()
	if err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), snap.Err)
		return fmt.Errorf("diagnosis failed: %w", err)
	}

	out := cmd.OutOrStdout()
	if diagJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(snap.Result); err != nil {
			return err
		}
	} else {
		printPanels(out, workflow.BuildPanels(snap.Result))
	}

	if diagCopy != "" {
		notice := view.CopyPanel(ctx, workflow.Panel(diagCopy))
		fmt.Fprintln(cmd.ErrOrStderr(), notice.Message)
	}
	return nil
}

// applyDiagnoseFlags writes explicitly set flags over the form.
func applyDiagnoseFlags(cmd *cobra.Command, view *workflow.View) error {
	flags := cmd.Flags()
	if flags.Changed("code") {
		view.SetField(workflow.FieldErrorCode, diagCode)
	}
	if flags.Changed("message") {
		view.SetField(workflow.FieldMessage, diagMessage)
	}
	if flags.Changed("trace") {
		view.SetField(workflow.FieldTrace, diagTrace)
	}
	if diagTraceFile != "" {
		trace, err := readTraceFile(cmd.InOrStdin(), diagTraceFile)
		if err != nil {
			return err
		}
		view.SetField(workflow.FieldTrace, trace)
	}
	return nil
}

// readTraceFile reads path, or stdin for "-".
func readTraceFile(stdin io.Reader, path string) (string, error) {
	if path == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("reading trace from stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading trace file: %w", err)
	}
	return string(data), nil
}

func pickSample(lib *samples.Library) (string, error) {
	all := lib.All()
	items := make([]string, len(all))
	for i, inc := range all {
		items[i] = fmt.Sprintf("%-12s %s", inc.Category, inc.Title)
	}

	prompt := promptui.Select{
		Label: "Select a sample incident",
		Items: items,
		Size:  10,
	}
	idx, _, err := prompt.Run()
	if err != nil {
		return "", fmt.Errorf("sample selection: %w", err)
	}
	return all[idx].ID, nil
}

// printPanels writes the human-readable result.
func printPanels(w io.Writer, p workflow.Panels) {
	if p.DetectedError != "" {
		fmt.Fprintf(w, "Detected error: %s\n", p.DetectedError)
	}
	var tags []string
	if p.Category != nil {
		tags = append(tags, "Category: "+p.Category.Label)
	}
	if p.Severity != nil {
		tags = append(tags, "Severity: "+p.Severity.Label)
	}
	if p.RulesVersion != "" {
		tags = append(tags, "Rules: "+p.RulesVersion)
	}
	if len(tags) > 0 {
		fmt.Fprintln(w, strings.Join(tags, "  |  "))
	}
	if len(p.Signals) > 0 {
		fmt.Fprintf(w, "Signals: %s\n", strings.Join(p.Signals, ", "))
	}
	if p.Summary != "" {
		fmt.Fprintf(w, "\nSummary\n%s\n", p.Summary)
	}
	if len(p.Steps) > 0 {
		fmt.Fprintln(w, "\nSuggested steps")
		for i, s := range p.Steps {
			fmt.Fprintf(w, "  %d. %s\n", i+1, s)
		}
	}
	if len(p.References) > 0 {
		fmt.Fprintln(w, "\nReferences")
		for _, r := range p.References {
			fmt.Fprintf(w, "  - %s\n", r)
		}
	}
	if p.RawNotes != "" {
		fmt.Fprintf(w, "\nNotes\n%s\n", p.RawNotes)
	}
	if !p.HasResult() {
		fmt.Fprintln(w, "The API returned an empty result.")
	}
}

func init() {
	f := diagnoseCmd.Flags()
	f.StringVar(&diagCode, "code", "", "error code (default "+workflow.DefaultErrorCode+")")
	f.StringVar(&diagMessage, "message", "", "error message")
	f.StringVar(&diagTrace, "trace", "", "stack trace")
	f.StringVar(&diagTraceFile, "trace-file", "", "read the stack trace from a file, - for stdin")
	f.StringVar(&diagSample, "sample", "", "start from the sample incident with this id")
	f.BoolVar(&diagPick, "pick", false, "choose a sample interactively")
	f.StringVar(&diagCopy, "copy", "", "copy a result panel to the clipboard: summary, steps or references")
	f.BoolVar(&diagJSON, "json", false, "print the raw result as JSON")
	f.BoolVarP(&diagQuiet, "quiet", "q", false, "no progress spinner")
	rootCmd.AddCommand(diagnoseCmd)
}
