package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/JonMunkholm/automationdb/internal/core"
)

// maxListed caps each section of a printed plan.
const maxListed = 20

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
}

func printRecords(w io.Writer, records []core.Record) {
	tw := newTable(w)
	fmt.Fprintln(tw, "AIR ID\tNAME\tTYPE\tCOMPLEXITY\tPROD DEPLOY")
	for i := range records {
		r := &records[i]
		complexity, _ := r.Field("complexity")
		deployed, _ := r.Field("prod_deploy_date")
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.AirID, r.Name, r.Type, complexity, dateOnly(deployed))
	}
	tw.Flush()
	fmt.Fprintf(w, "%d automations\n", len(records))
}

// printRecord lists every non-empty field of one record by label.
func printRecord(w io.Writer, rec *core.Record) {
	tw := newTable(w)
	for _, spec := range core.ExportSpecs() {
		v, _ := rec.Field(spec.Name)
		if v == "" {
			continue
		}
		fmt.Fprintf(tw, "%s:\t%s\n", spec.Label, v)
	}
	tw.Flush()
}

func printPlan(w io.Writer, sess *core.Session) {
	plan := sess.Plan
	s := plan.Summary

	fmt.Fprintf(w, "File: %s (%s, %d existing automations)\n", sess.FileName, sess.Mode, sess.ExistingCount)
	fmt.Fprintf(w, "Rows: %d  new: %d  update: %d  unchanged: %d", s.TotalRows, s.NewRows, s.UpdateRows, s.UnchangedRows)
	if plan.Mode == core.ModeSync {
		fmt.Fprintf(w, "  delete: %d", s.DeleteRows)
	}
	fmt.Fprintf(w, "  errors: %d\n", s.ErrorRows)

	if len(plan.Duplicates) > 0 {
		fmt.Fprintf(w, "\nDuplicate AIR IDs (last row wins):\n")
		for i, d := range plan.Duplicates {
			if i == maxListed {
				break
			}
			rows := make([]string, len(d.Rows))
			for j, n := range d.Rows {
				rows[j] = strconv.Itoa(n)
			}
			fmt.Fprintf(w, "  %s: rows %s\n", d.AirID, strings.Join(rows, ", "))
		}
		printMore(w, len(plan.Duplicates))
	}

	if len(plan.Errors) > 0 {
		fmt.Fprintf(w, "\nErrors (these rows are skipped):\n")
		for i, e := range plan.Errors {
			if i == maxListed {
				break
			}
			fmt.Fprintf(w, "  %s\n", e)
		}
		printMore(w, len(plan.Errors))
	}

	if len(plan.Update) > 0 {
		fmt.Fprintf(w, "\nUpdates:\n")
		for i, u := range plan.Update {
			if i == maxListed {
				break
			}
			fmt.Fprintf(w, "  %s: %s\n", u.Record.AirID, strings.Join(u.Changed, ", "))
		}
		printMore(w, len(plan.Update))
	}

	if len(plan.Delete) > 0 {
		fmt.Fprintf(w, "\nDeletes:\n")
		for i, r := range plan.Delete {
			if i == maxListed {
				break
			}
			fmt.Fprintf(w, "  %s %s\n", r.AirID, r.Name)
		}
		printMore(w, len(plan.Delete))
	}

	if plan.HighRisk {
		fmt.Fprintf(w, "\nWARNING: this sync deletes all %d existing automations.\n", sess.ExistingCount)
	}
}

func printMore(w io.Writer, n int) {
	if n > maxListed {
		fmt.Fprintf(w, "  and %d more\n", n-maxListed)
	}
}

func printTally(w io.Writer, t *core.Tally) {
	fmt.Fprintf(w, "Added %d, updated %d, deleted %d.\n", t.Added, t.Updated, t.Deleted)
	if t.Cancelled {
		fmt.Fprintf(w, "Cancelled with %d operations not attempted.\n", t.Skipped)
	}
	if !t.Refreshed {
		fmt.Fprintln(w, "The collection could not be reloaded afterwards; run list to check the result.")
	}
	if len(t.Errors) > 0 {
		fmt.Fprintf(w, "%d operations failed:\n", len(t.Errors))
		for _, e := range t.Errors {
			fmt.Fprintf(w, "  %s\n", e)
		}
	}
}

func printHistory(w io.Writer, runs []core.Tally) {
	tw := newTable(w)
	fmt.Fprintln(tw, "RUN ID\tMODE\tFILE\tADDED\tUPDATED\tDELETED\tERRORS\tSTARTED")
	for _, t := range runs {
		status := strconv.Itoa(len(t.Errors))
		if t.Cancelled {
			status += " (cancelled)"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%s\t%s\n",
			t.RunID, t.Mode, t.FileName, t.Added, t.Updated, t.Deleted, status,
			t.StartedAt.Local().Format(time.DateTime))
	}
	tw.Flush()
}

// dateOnly trims an ISO timestamp to its date for table display.
func dateOnly(v string) string {
	if d, _, ok := strings.Cut(v, "T"); ok {
		return d
	}
	return v
}
