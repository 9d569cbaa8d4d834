package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sourpat/payresolve/internal/db"
	"github.com/sourpat/payresolve/internal/prefs"
	"github.com/sourpat/payresolve/internal/theme"
)

var themeClient string

var themeCmd = &cobra.Command{
	Use:       "theme [light|dark|auto]",
	Short:     "Show or set a browser's stored theme preference",
	Long:      `Reads or writes the theme preference the console stores for a browser client id (the payresolve_client cookie).`,
	Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"light", "dark", "auto"},
	RunE: func(cmd *cobra.Command, args []string) error {
		database, err := db.Open(cfg.DBPath())
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer database.Close()

		ctx := cmd.Context()
		store := prefs.NewStore(database).ForClient(themeClient)
		ctrl := theme.NewController(ctx, store, nil, nil,
			theme.WithKey(cfg.ThemeKey),
			theme.WithLogger(logger),
		)
		defer ctrl.Close()

		if len(args) == 1 {
			pref, err := theme.ParsePreference(args[0])
			if err != nil {
				return err
			}
			if err := ctrl.Set(ctx, pref); err != nil {
				return err
			}
		}

		a := ctrl.Applied()
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", themeClient, a.Preference)
		return nil
	},
}

func init() {
	themeCmd.Flags().StringVar(&themeClient, "client", "", "browser client id")
	_ = themeCmd.MarkFlagRequired("client")
	rootCmd.AddCommand(themeCmd)
}
