// Package report renders aggregated metric tables for the terminal.
// Labels may be Chinese, so column alignment goes through display
// widths rather than rune counts.
package report

import (
	"fmt"
	"sort"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/mobility-bench/mobench/internal/metrics"
)

// RenderTable formats a metric table as aligned text.
func RenderTable(table *metrics.Table) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Run %s\n\n", table.RunID)

	b.WriteString("Overall")
	renderGroup(&b, table.Overall, "  ")
	b.WriteString("\n")

	if len(table.ByModel) > 1 {
		b.WriteString("By model\n")
		for _, name := range sortedGroupNames(table.ByModel) {
			fmt.Fprintf(&b, "  %s", name)
			renderGroup(&b, table.ByModel[name], "    ")
		}
		b.WriteString("\n")
	}

	if len(table.ByIntentFamily) > 0 {
		b.WriteString("By intent family\n")
		for _, name := range sortedGroupNames(table.ByIntentFamily) {
			fmt.Fprintf(&b, "  %s", name)
			renderGroup(&b, table.ByIntentFamily[name], "    ")
		}
	}

	if len(table.Excluded) > 0 {
		b.WriteString("\nExcluded from ratio metrics (invalid traces)\n")
		names := make([]string, 0, len(table.Excluded))
		for metric := range table.Excluded {
			names = append(names, metric)
		}
		sort.Strings(names)
		for _, metric := range names {
			fmt.Fprintf(&b, "  %s: %s\n", metric, strings.Join(table.Excluded[metric], ", "))
		}
	}

	return b.String()
}

func renderGroup(b *strings.Builder, group metrics.Group, indent string) {
	fmt.Fprintf(b, " (%d cases)\n", group.Cases)

	keys := make([]string, 0, len(group.Scores))
	width := 0
	for key := range group.Scores {
		keys = append(keys, key)
		if w := runewidth.StringWidth(key); w > width {
			width = w
		}
	}
	sort.Strings(keys)

	for _, key := range keys {
		pad := width - runewidth.StringWidth(key)
		score := group.Scores[key]
		if isCount(key) {
			fmt.Fprintf(b, "%s%s%s  %10.0f\n", indent, key, strings.Repeat(" ", pad), score)
		} else {
			fmt.Fprintf(b, "%s%s%s  %10.3f\n", indent, key, strings.Repeat(" ", pad), score)
		}
	}

	if ci := group.Composite; ci != nil && ci.NumBootstraps > 0 {
		fmt.Fprintf(b, "%scomposite %.3f (%.0f%% CI %.3f..%.3f)\n",
			indent, ci.Mean, ci.ConfidenceLevel*100, ci.Lower, ci.Upper)
	}
}

// isCount reports whether a sub-score is a raw count rather than a
// ratio, so it renders without decimals.
func isCount(key string) bool {
	return strings.HasPrefix(key, metrics.MetricEfficiency+".")
}

func sortedGroupNames(groups map[string]metrics.Group) []string {
	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
