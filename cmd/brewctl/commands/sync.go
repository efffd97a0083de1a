package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/slimstrongarm/industrial-iot-stack-sub002/internal/printer"
	"github.com/slimstrongarm/industrial-iot-stack-sub002/internal/sheets"
	"github.com/slimstrongarm/industrial-iot-stack-sub002/pkg/taskboard"
)

var syncPull bool

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Synchronise the board with the Google Sheet",
	Long: `Synchronise the board with the Google Sheet.

By default the board is the source of truth: every Redis task is pushed
into the configured sheet tab (rows are updated in place, new tasks are
appended). With --pull the direction reverses: sheet rows whose task IDs
are not yet on the board are imported as tasks.

Examples:
  # Push the board to the sheet
  brewctl sync

  # Import sheet-only rows onto the board
  brewctl sync --pull`,
	RunE: runSync,
}

func init() {
	syncCmd.Flags().BoolVar(&syncPull, "pull", false, "Import sheet rows missing from the board")
	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := loadStack()
	if err != nil {
		return err
	}

	if cfg.Sheets == nil {
		return printer.Error(
			"sheets integration not configured",
			"stack.yml has no 'sheets:' section.",
			[]string{"Add spreadsheet_id and credentials_file under 'sheets:' in stack.yml."},
		)
	}

	mirror, err := sheets.NewClient(ctx, cfg.Sheets.CredentialsFile, cfg.Sheets.SpreadsheetID, cfg.Sheets.Tab)
	if err != nil {
		return fmt.Errorf("failed to create sheets client: %w", err)
	}

	client, err := boardClient(cfg)
	if err != nil {
		return err
	}
	defer client.Close()

	if syncPull {
		return pullFromSheet(ctx, client, mirror)
	}
	return pushToSheet(ctx, client, mirror)
}

// pushToSheet writes every board task into the sheet, row-per-task.
func pushToSheet(ctx context.Context, client *taskboard.Client, mirror *sheets.Client) error {
	if err := mirror.EnsureHeader(ctx); err != nil {
		return fmt.Errorf("failed to prepare sheet header: %w", err)
	}

	tasks, err := client.ListTasks(ctx)
	if err != nil {
		return fmt.Errorf("failed to list tasks: %w", err)
	}

	for _, t := range tasks {
		if err := mirror.UpdateTask(ctx, t); err != nil {
			return fmt.Errorf("failed to sync task %s: %w", shortTaskID(t.ID), err)
		}
	}

	printer.Success("Pushed %d tasks to the sheet\n", len(tasks))
	return nil
}

// pullFromSheet imports sheet rows whose IDs the board does not know.
// Existing board tasks are never overwritten from the sheet.
func pullFromSheet(ctx context.Context, client *taskboard.Client, mirror *sheets.Client) error {
	rows, err := mirror.ListTasks(ctx)
	if err != nil {
		return fmt.Errorf("failed to read sheet rows: %w", err)
	}

	existing, err := client.ListTasks(ctx)
	if err != nil {
		return fmt.Errorf("failed to list tasks: %w", err)
	}
	known := make(map[string]bool, len(existing))
	for _, t := range existing {
		known[t.ID] = true
	}

	imported := 0
	for _, t := range rows {
		if known[t.ID] {
			continue
		}
		if err := client.CreateTask(ctx, t); err != nil {
			printer.Warning("skipping row %s: %v\n", shortTaskID(t.ID), err)
			continue
		}
		imported++
	}

	printer.Success("Imported %d new tasks from the sheet\n", imported)
	return nil
}
