package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/jdholdren/podwatch/internal/sqlite"
	"github.com/jdholdren/podwatch/internal/tracker"
)

func newSyncCommand(ctx *commandContext) *cobra.Command {
	var backfill bool

	cmd := &cobra.Command{
		Use:   "sync [show-id...]",
		Short: "Run an update cycle for every show, or the given ones",
		RunE: func(cmd *cobra.Command, args []string) error {
			loc, err := ctx.location()
			if err != nil {
				return err
			}
			mode := tracker.ModeIncremental
			if backfill {
				mode = tracker.ModeBackfill
			}

			return ctx.withStore(cmd.Context(), func(repo sqlite.Repo) error {
				trk := tracker.New(ctx.fetcher(), repo, nil, tracker.Config{Location: loc})

				var reports []tracker.Report
				if len(args) == 0 {
					reports, err = trk.SyncAll(cmd.Context(), mode)
					if err != nil {
						return err
					}
				}
				for _, id := range args {
					// Failures are shown in the table.
					r, _ := trk.SyncShowByID(cmd.Context(), id, mode)
					reports = append(reports, r)
				}

				failed := 0
				rows := make([][]string, 0, len(reports))
				for _, r := range reports {
					if r.Error != "" {
						failed++
					}
					rows = append(rows, []string{
						r.ShowName,
						yesNo(r.Skipped),
						strconv.Itoa(r.Fetched),
						strconv.Itoa(r.Inserted),
						strconv.Itoa(r.Unparsed),
						r.Error,
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"Show", "Skipped", "Fetched", "New", "Unparsed", "Error"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight},
				))

				if failed > 0 {
					return fmt.Errorf("%d of %d shows failed", failed, len(reports))
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&backfill, "backfill", false, "fetch every show even if it already released this week")

	return cmd
}
