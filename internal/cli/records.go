package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/JonMunkholm/automationdb/internal/core"
	"github.com/spf13/cobra"
)

// viewFlags narrow the snapshot the same way the web view does.
type viewFlags struct {
	search  string
	filters []string
	sorts   []string
}

func (v *viewFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&v.search, "search", "s", "", "free-text match on id, name, description, type and complexity")
	cmd.Flags().StringArrayVarP(&v.filters, "filter", "f", nil, "column filter as field=op:value, e.g. type=eq:Bot (repeatable)")
	cmd.Flags().StringSliceVar(&v.sorts, "sort", nil, "sort fields, prefix with - for descending")
}

func (v *viewFlags) parse() (core.FilterSet, []core.SortSpec, error) {
	fs := core.FilterSet{Search: v.search}
	for _, raw := range v.filters {
		col, expr, ok := strings.Cut(raw, "=")
		if !ok {
			return fs, nil, fmt.Errorf("%w: filter %q is not field=op:value", core.ErrInvalidField, raw)
		}
		f, err := core.ParseColumnFilter(strings.TrimSpace(col), expr)
		if err != nil {
			return fs, nil, err
		}
		fs.Filters = append(fs.Filters, f)
	}

	var sorts []core.SortSpec
	for _, s := range v.sorts {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		dir := "asc"
		if strings.HasPrefix(s, "-") {
			dir = "desc"
			s = s[1:]
		}
		sorts = append(sorts, core.SortSpec{Column: s, Dir: dir})
	}
	return fs, sorts, nil
}

func newListCmd(a *App) *cobra.Command {
	var view viewFlags
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List automations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fs, sorts, err := view.parse()
			if err != nil {
				return err
			}
			svc, err := a.Service(cmd.Context())
			if err != nil {
				return err
			}
			records, err := svc.View(cmd.Context(), fs, sorts)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(a, records)
			}
			printRecords(a.out, records)
			return nil
		},
	}
	view.register(cmd)
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func newShowCmd(a *App) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show <air-id>",
		Short: "Show one automation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.Service(cmd.Context())
			if err != nil {
				return err
			}
			rec, err := svc.GetRecord(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(a, rec)
			}
			printRecord(a.out, rec)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func newSearchCmd(a *App) *cobra.Command {
	var limit int
	var exact bool

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search automations on the backend",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.Service(cmd.Context())
			if err != nil {
				return err
			}
			res, err := svc.Search(cmd.Context(), core.SearchParams{
				Query: strings.Join(args, " "),
				Limit: limit,
				Fuzzy: !exact,
			})
			if err != nil {
				return err
			}

			printRecords(a.out, append(res.ExactMatches, res.FuzzyMatches...))
			if len(res.Suggestions) > 0 {
				fmt.Fprintf(a.out, "Did you mean: %s\n", strings.Join(res.Suggestions, ", "))
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", core.DefaultSearchLimit, "maximum results")
	cmd.Flags().BoolVar(&exact, "exact", false, "skip fuzzy matches")
	return cmd
}

func newDeleteCmd(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <air-id>...",
		Short: "Delete automations",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !a.confirm(fmt.Sprintf("Delete %s?", strings.Join(args, ", "))) {
				fmt.Fprintln(a.out, "Delete cancelled")
				return nil
			}

			svc, err := a.Service(cmd.Context())
			if err != nil {
				return err
			}
			for _, id := range args {
				if err := svc.DeleteRecord(cmd.Context(), id); err != nil {
					return fmt.Errorf("delete %s: %w", id, err)
				}
				fmt.Fprintf(a.out, "Deleted %s\n", id)
			}
			return nil
		},
	}
}

func writeJSON(a *App, v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
