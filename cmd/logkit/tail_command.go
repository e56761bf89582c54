package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"logkit/internal/archive"
	"logkit/internal/config"
)

func newTailCommand(configFlag *string) *cobra.Command {
	var limit int
	var since time.Duration
	var dbPath string

	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Show recent records from the event archive",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := strings.TrimSpace(dbPath)
			if path == "" {
				cfg, _, _, err := config.Load(*configFlag)
				if err != nil {
					return fmt.Errorf("load config: %w", err)
				}
				if !cfg.Archive.Enabled {
					return errors.New("the event archive is disabled; enable [archive] in the config or pass --db")
				}
				path = cfg.Archive.Path
			}

			store, err := archive.Open(path)
			if err != nil {
				return fmt.Errorf("open archive: %w", err)
			}
			defer store.Close()

			var records []archive.Record
			if since > 0 {
				records, err = store.Since(cmd.Context(), time.Now().Add(-since), limit)
			} else {
				records, err = store.Tail(cmd.Context(), limit)
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(records) == 0 {
				fmt.Fprintln(out, "No archived records")
				return nil
			}

			rows := make([][]string, 0, len(records))
			for _, rec := range records {
				rows = append(rows, []string{
					rec.Time.Local().Format("2006-01-02 15:04:05"),
					rec.Level,
					rec.Service,
					shortTrace(rec.TraceID),
					rec.Message,
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Time", "Level", "Service", "Trace", "Message"},
				rows,
			))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "Maximum number of records to show")
	cmd.Flags().DurationVar(&since, "since", 0, "Show records newer than this age (e.g. 30m, 2h)")
	cmd.Flags().StringVar(&dbPath, "db", "", "Archive database path (overrides the config)")
	return cmd
}

func shortTrace(trace string) string {
	if len(trace) > 8 {
		return trace[:8]
	}
	return trace
}
