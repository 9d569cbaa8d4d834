package cmd

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/sourpat/payresolve/internal/apiclient"
	"github.com/sourpat/payresolve/internal/config"
	"github.com/sourpat/payresolve/internal/db"
	"github.com/sourpat/payresolve/internal/history"
)

// loadConfig loads and validates the config, providing a user-friendly error.
func loadConfig() (*config.Config, error) {
	c, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", cfgFile, err)
	}
	return c, nil
}

// newAPIClient builds the diagnostic API client from config. The base URL is
// resolved once here and fixed for the process.
func newAPIClient(c *config.Config, l *zap.Logger) *apiclient.Client {
	return apiclient.New(c.ResolvedAPIBase(),
		apiclient.WithOrigin(c.ResolvedOrigin()),
		apiclient.WithPingTimeout(c.PingTimeout),
		apiclient.WithDiagnoseTimeout(c.DiagnoseTimeout),
		apiclient.WithSummary(c.Summary),
		apiclient.WithLogger(l),
	)
}

// openHistory opens the database and its run log. The caller closes the
// database.
func openHistory(c *config.Config) (*db.DB, *history.Store, error) {
	database, err := db.Open(c.DBPath())
	if err != nil {
		return nil, nil, fmt.Errorf("opening database: %w", err)
	}
	return database, history.NewStore(database), nil
}
