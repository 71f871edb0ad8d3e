package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/JonMunkholm/automationdb/internal/core"
	"github.com/JonMunkholm/automationdb/internal/fileio"
	"github.com/spf13/cobra"
)

// errOperationsFailed makes the exit status non-zero when a batch finished
// with per-record errors.
var errOperationsFailed = errors.New("some operations failed")

// syncFlags are shared by import and sync.
type syncFlags struct {
	dryRun           bool
	force            bool
	rejectDuplicates bool
}

func (f *syncFlags) register(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&f.dryRun, "dry-run", false, "show the plan without applying it")
	cmd.Flags().BoolVar(&f.rejectDuplicates, "reject-duplicates", false, "refuse files that repeat an AIR ID (overrides IMPORT_REJECT_DUPLICATES)")
}

func newImportCmd(a *App) *cobra.Command {
	var flags syncFlags

	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Add and update automations from a CSV, XLSX or JSON file",
		Long: `Import adds new automations and updates changed ones.
Automations missing from the file are left alone.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runSync(cmd.Context(), args[0], core.ModeImport, flags)
		},
	}
	flags.register(cmd)
	return cmd
}

func newSyncCmd(a *App) *cobra.Command {
	var flags syncFlags

	cmd := &cobra.Command{
		Use:   "sync <file>",
		Short: "Make the catalog match a file exactly",
		Long: `Sync adds, updates and deletes so the catalog matches the file.
Automations missing from the file are deleted.

A file that would delete every existing automation is always asked about
on the terminal. --yes does not answer that question; --force does.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runSync(cmd.Context(), args[0], core.ModeSync, flags)
		},
	}
	flags.register(cmd)
	cmd.Flags().BoolVar(&flags.force, "force", false, "allow a sync that deletes every existing automation")
	return cmd
}

func (a *App) runSync(ctx context.Context, path string, mode core.SyncMode, flags syncFlags) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if int64(len(data)) > a.cfg.Import.MaxFileSize {
		return fmt.Errorf("file too large: %d bytes, limit is %d", len(data), a.cfg.Import.MaxFileSize)
	}

	name := filepath.Base(path)
	rows, err := fileio.Decode(name, data)
	if err != nil {
		return err
	}

	if flags.rejectDuplicates {
		a.cfg.Import.RejectDuplicates = true
	}
	svc, err := a.Service(ctx)
	if err != nil {
		return err
	}

	sess, err := svc.Analyze(ctx, name, rows, mode)
	if err != nil {
		return err
	}
	printPlan(a.out, sess)

	if flags.dryRun {
		return nil
	}
	total := sess.Plan.Total()
	if total == 0 {
		fmt.Fprintln(a.out, "Nothing to do.")
		return nil
	}

	var opts core.ExecuteOptions
	if sess.Plan.NeedsAcknowledgement() {
		problems := len(sess.Plan.Errors) + len(sess.Plan.Duplicates)
		if !a.confirm(fmt.Sprintf("Continue despite %d problems?", problems)) {
			fmt.Fprintln(a.out, "Sync cancelled")
			return nil
		}
		opts.Acknowledge = true
	}
	if sess.Plan.HighRisk {
		if !flags.force && !a.ask(fmt.Sprintf("Really delete all %d existing automations?", sess.ExistingCount)) {
			fmt.Fprintln(a.out, "Sync cancelled")
			return nil
		}
		opts.Confirm = true
	}
	if !a.confirm(fmt.Sprintf("Apply %d changes?", total)) {
		fmt.Fprintln(a.out, "Sync cancelled")
		return nil
	}

	runID, err := svc.Execute(ctx, sess.ID, opts)
	if err != nil {
		return err
	}

	if a.terminal() && a.outputIsTerminal() {
		err = runProgressView(ctx, svc, runID, a.in, a.out)
	} else {
		err = a.followProgress(ctx, svc, runID)
	}
	if err != nil {
		return err
	}

	// The run has finished, so this does not block.
	tally, err := svc.Result(context.Background(), runID)
	if tally == nil {
		if err == nil {
			err = core.ErrRunNotFound
		}
		return err
	}
	if err != nil {
		a.logger.Warn("sync run finished with error", "run_id", runID, "error", err)
	}

	printTally(a.out, tally)
	if len(tally.Errors) > 0 {
		return fmt.Errorf("%w: %d of %d", errOperationsFailed, len(tally.Errors), total)
	}
	return nil
}

// followProgress prints one line per event until the run ends. An interrupt
// cancels the run, which still finishes its current operation.
func (a *App) followProgress(ctx context.Context, svc *core.Service, runID string) error {
	ch, err := svc.SubscribeProgress(runID)
	if err != nil {
		return err
	}

	done := ctx.Done()
	for {
		select {
		case p, ok := <-ch:
			if !ok {
				return nil
			}
			fmt.Fprintln(a.out, progressLine(p))
		case <-done:
			done = nil
			fmt.Fprintln(a.out, "Cancelling after the current operation...")
			if err := svc.Cancel(runID); err != nil && !errors.Is(err, core.ErrRunNotFound) {
				return err
			}
		}
	}
}

func progressLine(p core.Progress) string {
	line := fmt.Sprintf("[%3d%%] %s %d/%d", p.Percent(), p.Phase, p.Current, p.Total)
	if p.AirID != "" {
		line += " " + p.AirID
	}
	return line
}
