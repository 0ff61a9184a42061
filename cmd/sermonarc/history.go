package main

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/sermonarc/sermonarc/internal/download"
	"github.com/sermonarc/sermonarc/internal/storage"
	"github.com/sermonarc/sermonarc/internal/storage/sqlite"
)

func newHistoryCommand(cmdCtx *commandContext) *cobra.Command {
	var (
		limit int
		runID string
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded download outcomes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cfg, tel, err := cmdCtx.bootstrap(cmd.Context())
			if err != nil {
				return err
			}

			database, err := sqlite.InitDB(cfg.DatabasePath)
			if err != nil {
				return err
			}
			defer database.Close()

			repo := sqlite.NewInstrumentedRepository(database, tel)

			var records []storage.Record
			if runID != "" {
				records, err = repo.RunRecords(ctx, runID)
			} else {
				records, err = repo.RecentRecords(ctx, limit)
			}

			if err != nil {
				return err
			}

			printRecords(cmd.OutOrStdout(), records)

			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of records to show")
	cmd.Flags().StringVar(&runID, "run", "", "Show every record of one run")

	return cmd
}

func printRecords(w io.Writer, records []storage.Record) {
	if len(records) == 0 {
		fmt.Fprintln(w, "No downloads recorded")

		return
	}

	rows := make([][]string, 0, len(records))

	for _, rec := range records {
		detail := rec.Path
		if rec.Status == download.StatusFailed && rec.Reason != "" {
			detail = rec.Reason
		}

		rows = append(rows, []string{
			rec.CreatedAt.Local().Format("2006-01-02 15:04"),
			rec.Status,
			rec.Title,
			humanize.Bytes(uint64(rec.Bytes)),
			detail,
		})
	}

	fmt.Fprintln(w, renderTable(
		[]string{"When", "Status", "Title", "Size", "Path"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
	))
}
