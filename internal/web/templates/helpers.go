// Package templates renders the HTMX partials returned to browser clients.
//
// Components live in partials.templ; run `templ generate` after editing it.
package templates

import (
	"fmt"
	"strings"

	"github.com/JonMunkholm/automationdb/internal/core"
)

// maxListed caps how many rows of each list a partial shows.
const maxListed = 20

func limit(items []string) []string {
	if len(items) > maxListed {
		return items[:maxListed]
	}
	return items
}

func moreText(n int) string {
	return fmt.Sprintf("and %d more", n-maxListed)
}

func highRiskText(existing int) string {
	return fmt.Sprintf("This sync deletes all %d existing records.", existing)
}

func executeLabel(total int) string {
	return fmt.Sprintf("Execute %d operations", total)
}

func duplicateLines(dups []core.Duplicate) []string {
	out := make([]string, len(dups))
	for i, d := range dups {
		rows := make([]string, len(d.Rows))
		for j, r := range d.Rows {
			rows[j] = fmt.Sprint(r)
		}
		out[i] = d.AirID + ": rows " + strings.Join(rows, ", ")
	}
	return out
}

func updateLines(updates []core.PlannedUpdate) []string {
	out := make([]string, len(updates))
	for i, u := range updates {
		out[i] = u.Record.AirID + ": " + strings.Join(u.Changed, ", ")
	}
	return out
}

func deleteLines(records []core.Record) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.AirID + " " + r.Name
	}
	return out
}

func progressLabel(p core.Progress) string {
	label := fmt.Sprintf("%s %d/%d", p.Phase, p.Current, p.Total)
	if p.AirID != "" {
		label += " " + p.AirID
	}
	return label
}

func resultClass(t *core.Tally) string {
	if t.Cancelled {
		return "sync-result cancelled"
	}
	return "sync-result"
}

func tallyLine(t *core.Tally) string {
	return fmt.Sprintf("Added %d, updated %d, deleted %d.", t.Added, t.Updated, t.Deleted)
}

func cancelledText(skipped int) string {
	return fmt.Sprintf("Cancelled with %d operations not attempted.", skipped)
}
