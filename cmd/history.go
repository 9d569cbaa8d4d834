package cmd

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/sourpat/payresolve/internal/history"
)

var (
	historyLimit   int
	historyOutcome string
	historyPrune   time.Duration
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent diagnosis runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		database, runs, err := openHistory(cfg)
		if err != nil {
			return err
		}
		defer database.Close()

		ctx := cmd.Context()
		out := cmd.OutOrStdout()

		if historyPrune > 0 {
			n, err := runs.DeleteBefore(ctx, time.Now().Add(-historyPrune))
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Pruned %d run(s) older than %s\n", n, historyPrune)
			return nil
		}

		list, err := runs.List(ctx, history.Filter{
			Outcome: history.Outcome(historyOutcome),
			Limit:   historyLimit,
		})
		if err != nil {
			return err
		}
		if len(list) == 0 {
			fmt.Fprintln(out, "No diagnosis runs recorded yet.")
			return nil
		}

		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "STARTED\tSOURCE\tOUTCOME\tERROR CODE\tCATEGORY\tDURATION")
		for _, r := range list {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
				r.StartedAt.Local().Format(time.DateTime), r.Source, r.Outcome,
				r.ErrorCode, r.Category, r.Duration.Round(time.Millisecond))
		}
		return tw.Flush()
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "maximum runs to show")
	historyCmd.Flags().StringVar(&historyOutcome, "outcome", "", "filter by outcome: success or failed")
	historyCmd.Flags().DurationVar(&historyPrune, "prune", 0, "delete runs older than this instead of listing")
	rootCmd.AddCommand(historyCmd)
}
