package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/JonMunkholm/moodlelogsmart/internal/rules"
	"github.com/spf13/cobra"
)

func newRulesCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Inspect classification rules",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "validate [FILE]",
		Short: "Load a rule file and list its rules in evaluation order",
		Long: `Parses and validates FILE, or the configured PIPELINE_RULES_PATH, or the
bundled Bloom rules when neither is given.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := a.cfg.Pipeline.RulesPath
			if len(args) == 1 {
				path = args[0]
			}

			engine, err := rules.LoadEngine(path)
			if err != nil {
				return err
			}

			source := path
			if source == "" {
				source = "bundled"
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%d rules loaded from %s\n\n", engine.Len(), source)

			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "PRIORITY\tID\tNAME\tACTIVITY\tBLOOM\tACTIVE\tCONDITIONS")
			for _, r := range engine.Rules() {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%v\t%d\n",
					r.Priority, r.ID, r.Name,
					r.Action.ActivityType, r.Action.BloomLevel, r.Action.IsActive,
					len(r.Conditions))
			}
			return tw.Flush()
		},
	})
	return cmd
}
