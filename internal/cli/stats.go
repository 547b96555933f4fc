package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/five82/sdpanel/internal/analytics"
)

func newStatsCmd(flags *rootFlags) *cobra.Command {
	var (
		days   int
		recent int
	)

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show generation statistics from the local ledger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := flags.open(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = env.Close() }()

			ctx := cmd.Context()
			totals, err := env.Ledger.Totals(ctx)
			if err != nil {
				return fmt.Errorf("totals: %w", err)
			}
			daily, err := env.Ledger.Daily(ctx, days)
			if err != nil {
				return fmt.Errorf("daily: %w", err)
			}
			latest, err := env.Ledger.Recent(ctx, recent)
			if err != nil {
				return fmt.Errorf("recent: %w", err)
			}

			out := cmd.OutOrStdout()
			printTotals(out, totals)
			if len(daily) > 0 {
				fmt.Fprintln(out)
				rows := make([][]string, 0, len(daily))
				for _, d := range daily {
					rows = append(rows, []string{
						d.Date,
						fmt.Sprintf("%d", d.Generations),
						fmt.Sprintf("%d", d.Images),
						d.Duration.Round(time.Second).String(),
					})
				}
				renderTable(out, []string{"Day", "Jobs", "Images", "Time"}, rows)
			}
			if len(latest) > 0 {
				fmt.Fprintln(out)
				rows := make([][]string, 0, len(latest))
				for _, e := range latest {
					rows = append(rows, []string{
						e.CreatedAt.Local().Format(time.DateTime),
						shorten(e.Model, 24),
						fmt.Sprintf("%dx%d", e.Width, e.Height),
						fmt.Sprintf("%d", e.BatchSize),
						e.Duration.Round(100 * time.Millisecond).String(),
						shorten(e.Prompt, 40),
					})
				}
				renderTable(out, []string{"When", "Model", "Size", "Batch", "Time", "Prompt"}, rows)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&days, "days", 7, "days of daily totals")
	cmd.Flags().IntVar(&recent, "recent", 10, "number of recent generations")
	return cmd
}

func printTotals(w io.Writer, t analytics.Totals) {
	printField(w, "Generations", t.Generations)
	printField(w, "Images", t.Images)
	printField(w, "Megapixels", fmt.Sprintf("%.1f", float64(t.Pixels)/1e6))
	printField(w, "Steps", t.Steps)
	printField(w, "Time", t.Duration.Round(time.Second))
	if t.Images > 0 {
		printField(w, "Avg per image", fmt.Sprintf("%.1fs", t.AvgSecondsPerImg))
	}
	for _, group := range []struct {
		label  string
		counts []analytics.Count
	}{
		{"Top models", t.TopModels},
		{"Top samplers", t.TopSamplers},
	} {
		if len(group.counts) == 0 {
			continue
		}
		line := ""
		for i, c := range group.counts {
			if i > 0 {
				line += ", "
			}
			line += fmt.Sprintf("%s (%d)", c.Name, c.Count)
		}
		printField(w, group.label, line)
	}
}
