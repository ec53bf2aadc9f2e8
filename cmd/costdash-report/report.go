package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"costdash/internal/config"
	"costdash/internal/core"
	"costdash/internal/ingest"
	applog "costdash/internal/log"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"
)

type reportOptions struct {
	start      string
	end        string
	wbs        []string
	costCodes  []string
	allWindows bool
	sheet      string
	currency   string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &reportOptions{}
	cmd := &cobra.Command{
		Use:   "costdash-report FILE",
		Short: "Print the period summary and cumulative totals of a cost sheet",
		Long: `costdash-report reads a cost sheet (.xlsx or .csv with DATE, WBS,
COST CODE and AMOUNT columns) and prints the previous/current/next period
summary for the selected range, followed by the final cumulative cost of
each WBS line.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReport(cmd, args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.start, "start", "", "current period start (YYYY-MM-DD, default: earliest date)")
	cmd.Flags().StringVar(&opts.end, "end", "", "current period end (YYYY-MM-DD, default: latest date)")
	cmd.Flags().StringSliceVar(&opts.wbs, "wbs", nil, "WBS codes to chart (repeatable, default: all)")
	cmd.Flags().StringSliceVar(&opts.costCodes, "cost-code", nil, "cost codes to chart (repeatable, default: all)")
	cmd.Flags().BoolVar(&opts.allWindows, "all-windows", false, "include summary rows with costs only outside the current period")
	cmd.Flags().StringVar(&opts.sheet, "sheet", "", "workbook sheet to read (default: first sheet)")
	cmd.Flags().StringVar(&opts.currency, "currency", "Rp", "currency symbol")
	cmd.Flags().StringVar(&opts.logLevel, "log-level", "warn", "log level (debug, info, warn, error)")

	return cmd
}

func runReport(cmd *cobra.Command, path string, opts *reportOptions) error {
	logger := newLogger(cmd.ErrOrStderr(), opts.logLevel)

	params, err := opts.filterParams(cmd)
	if err != nil {
		return err
	}

	ds, err := readFile(path, opts.sheet)
	if err != nil {
		return err
	}
	logger.Info("Read cost sheet", applog.NewFields().
		WithDataset("", filepath.Base(path), len(ds.Records), ds.SkippedDates, ds.SkippedAmounts).
		ToSlice()...)

	rows := core.CurrentWindowOnly
	if opts.allWindows {
		rows = core.AnyWindow
	}
	d, err := core.Run(ds.Records, params, core.RunOptions{Rows: rows})
	if err != nil {
		return err
	}

	money := core.NewCurrencyFormat(opts.currency, language.Indonesian)
	return writeReport(cmd.OutOrStdout(), filepath.Base(path), ds, d, money)
}

// filterParams leaves unset flags unspecified so the pipeline defaults
// them; an explicitly empty --wbs or --cost-code selects nothing.
func (o *reportOptions) filterParams(cmd *cobra.Command) (core.FilterParams, error) {
	var p core.FilterParams
	var err error
	if p.Start, err = parseFlagDate("start", o.start); err != nil {
		return p, err
	}
	if p.End, err = parseFlagDate("end", o.end); err != nil {
		return p, err
	}
	if cmd.Flags().Changed("wbs") {
		p.WBS = nonEmpty(o.wbs)
	}
	if cmd.Flags().Changed("cost-code") {
		p.CostCodes = nonEmpty(o.costCodes)
	}
	return p, p.Validate()
}

func parseFlagDate(name, v string) (core.Date, error) {
	if v == "" {
		return core.Date{}, nil
	}
	t, err := time.Parse(time.DateOnly, v)
	if err != nil {
		return core.Date{}, fmt.Errorf("--%s: expected YYYY-MM-DD, got %q", name, v)
	}
	return core.DateOf(t), nil
}

func nonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

func readFile(path, sheet string) (ingest.Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return ingest.Dataset{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	if sheet != "" {
		return ingest.ReadXLSX(f, sheet)
	}
	return ingest.Read(path, f)
}

func writeReport(out io.Writer, name string, ds ingest.Dataset, d core.Dashboard, money core.CurrencyFormat) error {
	fmt.Fprintf(out, "%s: %d records", name, len(ds.Records))
	if ds.SkippedDates > 0 || ds.SkippedAmounts > 0 {
		fmt.Fprintf(out, " (%d without a date, %d with a bad amount)", ds.SkippedDates, ds.SkippedAmounts)
	}
	fmt.Fprintf(out, "\nCurrent period %s to %s\n\n", d.Filter.Start, d.Filter.End)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(w, "WBS\tCOST CODE\tPREVIOUS\tCURRENT\tNEXT\t")
	for _, r := range d.Summary.AllRows() {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t\n",
			r.WBS, r.CostCode,
			money.Format(r.Previous), money.Format(r.Current), money.Format(r.Next))
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(out, "\nCumulative by WBS")
	w = tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(w, "WBS\tLAST DATE\tCUMULATIVE\t")
	if len(d.Annotations) == 0 {
		fmt.Fprintln(w, "(none)\t\t\t")
	}
	for _, p := range d.Annotations {
		fmt.Fprintf(w, "%s\t%s\t%s\t\n", p.WBS, p.Date, money.Format(p.Cumulative))
	}
	return w.Flush()
}

func newLogger(w io.Writer, level string) *applog.Logger {
	lvl, err := config.ParseLevel(level)
	if err != nil {
		lvl = slog.LevelWarn
	}
	return applog.New(applog.Config{
		Component: applog.ComponentReport,
		Handler:   applog.NewTextHandler(w, lvl),
	})
}
