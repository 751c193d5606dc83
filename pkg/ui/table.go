package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/samber/lo"

	"github.com/kopi-vm/kopi/pkg/duration"
	"github.com/kopi-vm/kopi/pkg/perf"
)

// RenderTable lays out rows under title-cased headers with a rounded border.
func RenderTable(styles Styles, headers []string, rows [][]string) string {
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(styles.Border).
		Headers(lo.Map(headers, func(h string, _ int) string { return Title(h) })...).
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return styles.Header
			}
			return lipgloss.NewStyle().Padding(0, 1)
		})
	return t.String()
}

// RenderPerfSummary renders recorded function timings, slowest total first.
func RenderPerfSummary(styles Styles, stats []perf.Stat) string {
	if len(stats) == 0 {
		return styles.Muted.Render("No timings recorded.")
	}
	rows := lo.Map(stats, func(s perf.Stat, _ int) []string {
		return []string{
			s.Name,
			fmt.Sprintf("%d", s.Count),
			duration.Format(s.Total),
			duration.Format(s.P50),
			duration.Format(s.P95),
			duration.Format(s.Max),
		}
	})
	return strings.TrimRight(RenderTable(styles, []string{"function", "calls", "total", "p50", "p95", "max"}, rows), "\n")
}
