package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/goodtune/sitetime/internal/usage"
	"github.com/spf13/cobra"
)

var (
	reportDomain string
	reportLimit  int
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Show tracked time",
	Long: `Without --domain, list every domain by total time. With --domain, show
that domain's last 24 hours, 7 days and 4 weeks.`,
	Args: cobra.NoArgs,
	RunE: runReport,
}

func init() {
	reportCmd.Flags().StringVarP(&reportDomain, "domain", "d", "", "Show the recent series of one domain")
	reportCmd.Flags().IntVarP(&reportLimit, "limit", "n", 0, "Show at most this many domains (0 for all)")
	rootCmd.AddCommand(reportCmd)
}

func runReport(cmd *cobra.Command, args []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if reportDomain != "" {
		rec, err := a.tracker.Domain(cmd.Context(), reportDomain)
		if err != nil {
			return fmt.Errorf("%s: %w", reportDomain, err)
		}
		printDomainReport(os.Stdout, reportDomain, rec, time.Now(), a.tracker.Location())
		return nil
	}

	snap, err := a.tracker.Snapshot(cmd.Context())
	if err != nil {
		return err
	}
	printOverview(os.Stdout, usage.Summarize(snap), reportLimit)
	return nil
}

func printOverview(w io.Writer, overview usage.Overview, limit int) {
	cyan := color.New(color.FgCyan, color.Bold)
	green := color.New(color.FgGreen)

	_, _ = cyan.Fprintf(w, "%d site(s), %s total\n", overview.TotalSites, usage.FormatSeconds(overview.TotalTime))
	if overview.TotalSites == 0 {
		return
	}

	width := 0
	for _, s := range overview.Sites {
		width = max(width, len(s.Domain))
	}

	sites := overview.Sites
	if limit > 0 && len(sites) > limit {
		sites = sites[:limit]
	}
	for _, s := range sites {
		fmt.Fprintf(w, "  %-*s  ", width, s.Domain)
		_, _ = green.Fprintln(w, usage.FormatSeconds(s.TotalTime))
	}
	if hidden := len(overview.Sites) - len(sites); hidden > 0 {
		fmt.Fprintf(w, "  ... and %d more\n", hidden)
	}
}

func printDomainReport(w io.Writer, domain string, rec *usage.Record, now time.Time, loc *time.Location) {
	cyan := color.New(color.FgCyan, color.Bold)

	_, _ = cyan.Fprintln(w, strings.Repeat("━", 50))
	_, _ = cyan.Fprintf(w, "%s: %s total\n", domain, usage.FormatSeconds(rec.TotalTime))
	_, _ = cyan.Fprintln(w, strings.Repeat("━", 50))

	printSeries(w, "Last 24 hours", usage.RecentHours(rec, now, loc, usage.RecentHourCount), true)
	printSeries(w, "Last 7 days", usage.RecentDays(rec, now, loc, usage.RecentDayCount), false)
	printSeries(w, "Last 4 weeks", usage.RecentWeeks(rec, now, loc, usage.RecentWeekCount), false)
}

// printSeries prints one line per point. Empty hours are skipped.
func printSeries(w io.Writer, title string, points []usage.Point, skipEmpty bool) {
	yellow := color.New(color.FgYellow, color.Bold)
	faint := color.New(color.Faint)

	fmt.Fprintln(w)
	_, _ = yellow.Fprintln(w, title)
	shown := 0
	for _, p := range points {
		if skipEmpty && p.Seconds == 0 {
			continue
		}
		shown++
		if p.Seconds == 0 {
			_, _ = faint.Fprintf(w, "  %-16s %s\n", p.Key, usage.FormatSeconds(0))
			continue
		}
		fmt.Fprintf(w, "  %-16s %s\n", p.Key, usage.FormatSeconds(p.Seconds))
	}
	if shown == 0 {
		_, _ = faint.Fprintln(w, "  (no activity)")
	}
}
