package commands

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/querypulse/querypulse/internal/cli/config"
	"github.com/querypulse/querypulse/internal/usage"
)

// NewUsageCommand creates the usage command.
func NewUsageCommand() *cobra.Command {
	var (
		days       int
		top        int
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "usage",
		Short: "Report table and column usage from stored query history",
		Long: `Aggregate the SQL queries recorded in the event store and report
per-query usage counts for tables, columns, and (table, column) pairs.

A count is the number of queries referencing the name, not the number of
textual occurrences. The pair counts are co-occurrence counts: every
table in a query is paired with every column in it.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg := config.GetConfig(ctx)
			logger := config.GetLogger(ctx)

			if !cmd.Flags().Changed("days") {
				days = cfg.WindowDays
			}

			store, err := openStore(ctx, cfg, logger)
			if err != nil {
				return fmt.Errorf("failed to open event store: %w", err)
			}
			defer func() { _ = store.Close() }()

			agg := usage.New(usage.Config{Logger: logger, Workers: cfg.Workers})
			report, err := agg.AggregateHistory(ctx, store, days)
			if err != nil {
				return fmt.Errorf("failed to aggregate usage: %w", err)
			}

			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}

			renderReport(cmd.OutOrStdout(), report, days, top)
			return nil
		},
	}

	cmd.Flags().IntVar(&days, "days", 0, "Lookback window in days (0 = full history; default from config)")
	cmd.Flags().IntVar(&top, "top", 20, "Show only the top N entries per list (0 = all)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output the full report as JSON")

	return cmd
}

func renderReport(w io.Writer, report *usage.Report, days, top int) {
	if days > 0 {
		_, _ = fmt.Fprintf(w, "Usage over the last %d days\n\n", days)
	} else {
		_, _ = fmt.Fprintf(w, "Usage over full history\n\n")
	}

	renderCounts(w, "Tables", table.Row{"Table", "Queries"}, func(t table.Writer) {
		for _, tc := range report.TopTables(top) {
			t.AppendRow(table.Row{tc.Table, tc.Count})
		}
	})

	renderCounts(w, "Columns", table.Row{"Column", "Queries"}, func(t table.Writer) {
		for _, cc := range report.TopColumns(top) {
			t.AppendRow(table.Row{cc.Column, cc.Count})
		}
	})

	renderCounts(w, "Table / column pairs", table.Row{"Table", "Column", "Queries"}, func(t table.Writer) {
		for _, pc := range report.TopTableColumns(top) {
			t.AppendRow(table.Row{pc.Table, pc.Column, pc.Count})
		}
	})

	if report.Skipped > 0 {
		_, _ = fmt.Fprintf(w, "%d records skipped\n", report.Skipped)
	}
}

func renderCounts(w io.Writer, title string, header table.Row, appendRows func(table.Writer)) {
	_, _ = fmt.Fprintln(w, title)
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(header)
	appendRows(t)
	t.Render()
	_, _ = fmt.Fprintln(w)
}
