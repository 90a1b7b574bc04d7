package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"scribe/internal/journal"
)

func newJournalCommand(cmdCtx *commandContext) *cobra.Command {
	journalCmd := &cobra.Command{
		Use:   "journal",
		Short: "Inspect recorded task outcomes",
	}
	journalCmd.AddCommand(newJournalListCommand(cmdCtx))
	return journalCmd
}

func newJournalListCommand(cmdCtx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent task outcomes",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cmdCtx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := journal.Open(cfg)
			if err != nil {
				return fmt.Errorf("open journal: %w", err)
			}
			defer store.Close()

			entries, err := store.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No task outcomes recorded.")
				return nil
			}

			rows := make([][]string, 0, len(entries))
			for _, e := range entries {
				rows = append(rows, []string{
					e.CreatedAt.Local().Format(time.DateTime),
					e.TaskID,
					e.RecordingID,
					e.Status,
					strconv.Itoa(e.Attempts),
					fmt.Sprintf("%.1fs", e.DurationSeconds),
					truncate(e.Error, 60),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Time", "Task", "Recording", "Status", "Attempts", "Audio", "Error"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum number of outcomes to show")
	return cmd
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
