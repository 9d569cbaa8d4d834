package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sourpat/payresolve/internal/history"
	"github.com/sourpat/payresolve/internal/metrics"
	"github.com/sourpat/payresolve/internal/prefs"
	"github.com/sourpat/payresolve/internal/samples"
	"github.com/sourpat/payresolve/internal/server"
	"github.com/sourpat/payresolve/internal/status"
	"github.com/sourpat/payresolve/internal/web"
)

const shutdownTimeout = 10 * time.Second

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web console",
	Long: `Starts the payresolve console: the diagnosis page, the about page, the
run history API, Prometheus metrics and, when upstream is configured, a
same-origin proxy to the diagnostic API under /api/support/.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().Changed("port") {
			cfg.Port = servePort
		}

		database, runs, err := openHistory(cfg)
		if err != nil {
			return err
		}
		defer database.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if cfg.HistoryRetention > 0 {
			n, err := runs.DeleteBefore(ctx, time.Now().Add(-cfg.HistoryRetention))
			if err != nil {
				return err
			}
			logger.Info("pruned diagnosis history", zap.Int64("runs", n), zap.Duration("retention", cfg.HistoryRetention))
		}

		srv, err := server.New(server.Config{
			Port:     cfg.Port,
			AllowAll: cfg.AllowAllOrigins,
			Upstream: cfg.Upstream,
		}, logger)
		if err != nil {
			return fmt.Errorf("creating server: %w", err)
		}

		client := newAPIClient(cfg, logger)
		console, err := web.New(web.Deps{
			Client:   client,
			Samples:  samples.Default(),
			Status:   &status.Flag{},
			Prefs:    prefs.NewStore(database),
			Recorder: runs,
			Observer: metrics.Observer{},
			Logger:   logger,
			ThemeKey: cfg.ThemeKey,
			Sessions: metrics.Sessions{},
		})
		if err != nil {
			return fmt.Errorf("creating console: %w", err)
		}
		history.RegisterRoutes(srv.Router(), runs)
		console.RegisterRoutes(srv.Router())

		logger.Info("payresolve console starting",
			zap.String("version", Version),
			zap.Int("port", cfg.Port),
			zap.String("api_base", client.BaseURL()),
			zap.String("database", database.Path()),
		)
		return runServer(ctx, srv)
	},
}

// runServer serves until ctx is cancelled or the listener fails, then shuts
// the server down gracefully.
func runServer(ctx context.Context, srv interface {
	Start() error
	Shutdown(context.Context) error
}) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 8080, "port to listen on (overrides config)")
	rootCmd.AddCommand(serveCmd)
}
