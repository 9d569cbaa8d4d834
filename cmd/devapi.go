package cmd

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sourpat/payresolve/internal/devapi"
	"github.com/sourpat/payresolve/internal/llm"
	"github.com/sourpat/payresolve/internal/server"
)

var devapiPort int

var devapiCmd = &cobra.Command{
	Use:   "devapi",
	Short: "Run a local diagnostic API for development",
	Long: `Serves the diagnostic API contract (/support/ping, /support/categories,
/support/diagnose and /support/diagnose/with-summary) from built-in rules
and playbooks. Summaries come from an OpenAI-compatible model when
devapi.openai_key is set, otherwise from a local template.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		dc := cfg.DevAPI
		if cmd.Flags().Changed("port") {
			dc.Port = devapiPort
		}

		classifier, err := devapi.LoadClassifier(dc.RulesFile)
		if err != nil {
			logger.Warn("using built-in rules", zap.Error(err))
		}
		playbook, err := devapi.LoadKnowledge(dc.KnowledgeDir)
		if err != nil {
			return fmt.Errorf("loading knowledge: %w", err)
		}

		var provider llm.Provider
		if dc.OpenAIKey != "" {
			provider = llm.NewRateLimitedProvider(
				llm.NewOpenAIProvider(dc.OpenAIKey, dc.Model, dc.OpenAIBaseURL),
				dc.SummaryRPM,
			)
		}

		svc := devapi.NewService(classifier, playbook,
			devapi.NewResponder(provider, dc.Model, logger),
			devapi.Options{Model: dc.Model, RulesVersion: dc.RulesVersion, KnowledgeDir: dc.KnowledgeDir},
			logger,
		)

		r := chi.NewRouter()
		r.Use(middleware.RequestID)
		r.Use(server.AccessLog(logger))
		r.Use(middleware.Recoverer)
		r.Use(cors.AllowAll().Handler)
		devapi.RegisterRoutes(r, svc)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		logger.Info("devapi starting",
			zap.Int("port", dc.Port),
			zap.String("rules", classifier.Source()),
			zap.Bool("llm", provider != nil),
		)
		return runServer(ctx, httpRunner{&http.Server{
			Addr:              fmt.Sprintf(":%d", dc.Port),
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
		}})
	},
}

// httpRunner adapts http.Server to runServer.
type httpRunner struct{ *http.Server }

func (h httpRunner) Start() error { return h.ListenAndServe() }

func init() {
	devapiCmd.Flags().IntVarP(&devapiPort, "port", "p", 8000, "port to listen on (overrides config)")
	rootCmd.AddCommand(devapiCmd)
}
