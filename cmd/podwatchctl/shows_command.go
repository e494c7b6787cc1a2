package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jdholdren/podwatch/internal/freshness"
	"github.com/jdholdren/podwatch/internal/podwatch"
	"github.com/jdholdren/podwatch/internal/sqlite"
)

func newShowsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "shows",
		Short: "List shows and whether they released this week",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			loc, err := ctx.location()
			if err != nil {
				return err
			}
			evaluator := freshness.New(loc)

			return ctx.withStore(cmd.Context(), func(repo sqlite.Repo) error {
				shows, err := repo.Shows(cmd.Context())
				if err != nil {
					return err
				}
				latest, err := repo.LatestEpisodes(cmd.Context())
				if err != nil {
					return err
				}

				rows := make([][]string, 0, len(shows))
				for _, show := range shows {
					var ep *podwatch.Episode
					if l, ok := latest[show.ID]; ok {
						ep = &l
					}
					status := evaluator.Evaluate(show, ep)

					released := yesNo(status.Released)
					if status.Heuristic {
						released += " (no episodes yet)"
					}
					var number, published string
					if ep != nil {
						number = ep.Number.String()
						published = ep.PublishedAt.In(loc).Format("2006-01-02")
					}

					rows = append(rows, []string{show.ID, show.Name, show.Weekday.String(), number, published, released})
				}

				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"ID", "Show", "Day", "Latest", "Published", "This week"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight},
				))
				return nil
			})
		},
	}
}
