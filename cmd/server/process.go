package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"text/tabwriter"
	"time"

	"github.com/JonMunkholm/moodlelogsmart/internal/export"
	"github.com/JonMunkholm/moodlelogsmart/internal/pipeline"
	"github.com/spf13/cobra"
)

type processOptions struct {
	out   string
	rules string
	roles string
	zip   bool
	xes   bool
	json  bool
}

func newProcessCmd(a *app) *cobra.Command {
	opts := &processOptions{}

	cmd := &cobra.Command{
		Use:   "process <file.csv>",
		Short: "Classify one Moodle log file offline",
		Long: `Runs the full pipeline on a local file, writes the enriched CSV (and XES)
exports to --out and prints the classification statistics.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := pipelineConfig(a.cfg)
			if opts.rules != "" {
				cfg.RulesPath = opts.rules
			}
			if opts.roles != "" {
				cfg.RolesFile = opts.roles
			}
			if cmd.Flags().Changed("xes") {
				cfg.XES = opts.xes
			}

			p, err := pipeline.New(cfg, nil)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), a.cfg.Jobs.Timeout)
			defer cancel()
			return runProcess(ctx, cmd.OutOrStdout(), p, args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.out, "out", "o", "results", "Directory for the exported files")
	cmd.Flags().StringVar(&opts.rules, "rules", "", "Rule file overriding the bundled Bloom rules")
	cmd.Flags().StringVar(&opts.roles, "roles", "", "CSV mapping user full names to role ids")
	cmd.Flags().BoolVar(&opts.zip, "zip", false, "Also package the exports as a ZIP next to --out")
	cmd.Flags().BoolVar(&opts.xes, "xes", true, "Write XES event logs")
	cmd.Flags().BoolVar(&opts.json, "json", false, "Print the result as JSON")
	return cmd
}

func runProcess(ctx context.Context, w io.Writer, p *pipeline.Pipeline, path string, opts *processOptions) error {
	if err := os.MkdirAll(opts.out, 0o750); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	req := pipeline.Request{Path: path, OutDir: opts.out}
	if opts.zip {
		req.ArchivePath = filepath.Join(filepath.Dir(filepath.Clean(opts.out)), export.ArchiveName(time.Now()))
	}

	res, err := p.Run(ctx, req, nil)
	if err != nil {
		return err
	}

	if opts.json {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	return printResult(w, res)
}

func printResult(w io.Writer, res *pipeline.Result) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	fmt.Fprintf(tw, "Encoding:\t%s\n", res.Format.Encoding)
	fmt.Fprintf(tw, "Delimiter:\t%q\n", res.Format.Delimiter)
	fmt.Fprintf(tw, "Timestamp format:\t%s\n", res.TimestampFormat)
	fmt.Fprintf(tw, "Rows read:\t%d\n", res.Rows)
	fmt.Fprintf(tw, "Rows dropped:\t%d\n", res.Dropped)
	fmt.Fprintf(tw, "Total events:\t%d\n", res.Stats.TotalEvents)
	fmt.Fprintf(tw, "Active events:\t%d (%.1f%%)\n", res.Stats.ActiveEvents, 100*res.Stats.ActiveRatio())
	fmt.Fprintf(tw, "Passive events:\t%d\n", res.Stats.PassiveEvents)

	levels := make([]string, 0, len(res.Stats.BloomDistribution))
	for level := range res.Stats.BloomDistribution {
		levels = append(levels, level)
	}
	slices.Sort(levels)
	for _, level := range levels {
		fmt.Fprintf(tw, "Bloom %s:\t%d\n", level, res.Stats.BloomDistribution[level])
	}

	names := make([]string, 0, len(res.Files))
	for name := range res.Files {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		fmt.Fprintf(tw, "Wrote:\t%s\n", res.Files[name])
	}
	if res.ArchivePath != "" {
		fmt.Fprintf(tw, "Archive:\t%s\n", res.ArchivePath)
	}
	fmt.Fprintf(tw, "Duration:\t%s\n", res.Duration.Round(time.Millisecond))
	return tw.Flush()
}
