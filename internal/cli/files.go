package cli

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"github.com/JonMunkholm/automationdb/internal/core"
	"github.com/JonMunkholm/automationdb/internal/fileio"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func newExportCmd(a *App) *cobra.Command {
	var view viewFlags
	var format, output string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export automations to CSV, XLSX or JSON",
		Long: `Export writes the catalog, narrowed by the same filters as list, to a
file named automations_YYYY-MM-DD with the format's extension. Use
--output - to write to stdout.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := fileio.ParseFormat(format)
			if err != nil {
				return err
			}
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

			var buf bytes.Buffer
			if err := fileio.Export(&buf, f, records); err != nil {
				return err
			}
			if output == "" {
				output = fileio.ExportFileName(f, time.Now())
			}
			if err := a.writeOutput(output, buf.Bytes()); err != nil {
				return err
			}
			if output != "-" {
				fmt.Fprintf(a.out, "Exported %d automations to %s\n", len(records), output)
			}
			return nil
		},
	}
	view.register(cmd)
	cmd.Flags().StringVar(&format, "format", "csv", "csv, xlsx or json")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file, - for stdout")
	return cmd
}

func newTemplateCmd(a *App) *cobra.Command {
	var format, output string

	cmd := &cobra.Command{
		Use:   "template",
		Short: "Write an import template with every column and one sample row",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := fileio.ParseFormat(format)
			if err != nil {
				return err
			}

			var buf bytes.Buffer
			if err := fileio.Template(&buf, f); err != nil {
				return err
			}
			if output == "" {
				output = fileio.TemplateFileName(f)
			}
			if err := a.writeOutput(output, buf.Bytes()); err != nil {
				return err
			}
			if output != "-" {
				fmt.Fprintf(a.out, "Wrote template to %s\n", output)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "csv", "csv, xlsx or json")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file, - for stdout")
	return cmd
}

func newHistoryCmd(a *App) *cobra.Command {
	var limit int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List finished sync runs, newest first",
		Long: `History reads the sync_runs table when DATABASE_URL is set. Without a
database only runs from this invocation are known.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.Service(cmd.Context())
			if err != nil {
				return err
			}
			runs, err := svc.History(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(a, runs)
			}
			printHistory(a.out, runs)
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", core.DefaultHistoryLimit, "maximum runs")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func newConfigureCmd(a *App) *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "configure",
		Short: "Save the backend URL and token to the profile file",
		Long: `Configure stores --backend-url and --token in the profile file
(default ~/.automationctl.yaml). On a terminal the token is prompted
for without echo when --token is not given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p := a.profile
			if a.backendURL != "" {
				p.BackendURL = a.backendURL
			}
			if timeout > 0 {
				p.Timeout = timeout
			}
			if a.token != "" {
				p.Token = a.token
			} else if f, ok := a.in.(*os.File); ok && a.terminal() {
				fmt.Fprint(a.out, "API token (empty keeps the current one): ")
				secret, err := term.ReadPassword(int(f.Fd()))
				fmt.Fprintln(a.out)
				if err != nil {
					return fmt.Errorf("read token: %w", err)
				}
				if len(secret) > 0 {
					p.Token = string(secret)
				}
			}

			if err := SaveProfile(a.profilePath, p); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Saved profile to %s\n", a.profilePath)
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "backend request timeout to save")
	return cmd
}

// writeOutput writes data to path, or to stdout for "-".
func (a *App) writeOutput(path string, data []byte) error {
	if path == "-" {
		_, err := a.out.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
