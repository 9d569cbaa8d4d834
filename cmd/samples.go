package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sourpat/payresolve/internal/samples"
)

var samplesCmd = &cobra.Command{
	Use:   "samples [id]",
	Short: "List the sample incidents, or show one",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		lib := samples.Default()
		out := cmd.OutOrStdout()

		if len(args) == 1 {
			inc, ok := lib.ByID(args[0])
			if !ok {
				return fmt.Errorf("unknown sample %q", args[0])
			}
			enc := yaml.NewEncoder(out)
			enc.SetIndent(2)
			defer enc.Close()
			return enc.Encode(inc)
		}

		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		for _, g := range lib.Grouped() {
			fmt.Fprintf(tw, "%s\n", g.Category)
			for _, inc := range g.Incidents {
				fmt.Fprintf(tw, "  %s\t%s\t%s\n", inc.ID, inc.ErrorCode, inc.Title)
			}
		}
		return tw.Flush()
	},
}

var categoriesCmd = &cobra.Command{
	Use:   "categories",
	Short: "List the categories the diagnostic API knows about",
	RunE: func(cmd *cobra.Command, args []string) error {
		cats, err := newAPIClient(cfg, logger).Categories(cmd.Context())
		if err != nil {
			return err
		}
		for _, c := range cats {
			fmt.Fprintln(cmd.OutOrStdout(), c)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(samplesCmd)
	rootCmd.AddCommand(categoriesCmd)
}
