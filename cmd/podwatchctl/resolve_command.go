package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jdholdren/podwatch/internal/podwatch"
	"github.com/jdholdren/podwatch/internal/resolve"
	"github.com/jdholdren/podwatch/internal/sync"
)

func newResolveCommand(ctx *commandContext) *cobra.Command {
	var (
		strategy string
		label    string
		kind     string
	)

	cmd := &cobra.Command{
		Use:   "resolve <feed-url|channel-id|file>",
		Short: "Dry run a numbering strategy against a feed",
		Long: "Fetches a feed (or reads a saved one from disk) and prints the episodes a\n" +
			"strategy would produce, without touching the database.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := podwatch.ParseStrategy(strategy)
			if err != nil {
				return err
			}
			if (st == podwatch.StrategyNamedPrefix || st == podwatch.StrategyTrailingLabel) && label == "" {
				return fmt.Errorf("strategy %s needs --label", st)
			}
			sourceKind := podwatch.SourceKind(kind)
			if !sourceKind.Valid() {
				return fmt.Errorf("unknown kind %q", kind)
			}

			entries, err := readEntries(cmd, ctx, sourceKind, args[0])
			if err != nil {
				return err
			}

			res, err := resolve.Resolve(podwatch.Show{
				Name:     label,
				Kind:     sourceKind,
				Locator:  args[0],
				Strategy: st,
				Label:    label,
			}, entries)
			if err != nil {
				return err
			}

			rows := make([][]string, 0, len(res.Episodes))
			for i := len(res.Episodes) - 1; i >= 0; i-- {
				ep := res.Episodes[i]
				var published string
				if !ep.PublishedAt.IsZero() {
					published = ep.PublishedAt.Format("2006-01-02")
				}
				rows = append(rows, []string{ep.Number.String(), ep.Title, published})
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable([]string{"#", "Title", "Published"}, rows, []columnAlignment{alignRight}))
			fmt.Fprintf(out, "%d entries, %d episodes, %d unparsed, %d positional, %d duplicates\n",
				len(entries), len(res.Episodes), res.Unparsed, res.Positional, res.Duplicates)
			return nil
		},
	}

	cmd.Flags().StringVar(&strategy, "strategy", "", "numbering strategy of the show")
	cmd.Flags().StringVar(&label, "label", "", "literal label for named_prefix and trailing_label")
	cmd.Flags().StringVar(&kind, "kind", string(podwatch.SourceRSS), "rss or youtube")
	_ = cmd.MarkFlagRequired("strategy")

	return cmd
}

// A path that exists on disk is parsed directly; anything else is fetched.
func readEntries(cmd *cobra.Command, ctx *commandContext, kind podwatch.SourceKind, arg string) ([]podwatch.RawEntry, error) {
	f, err := os.Open(arg)
	if errors.Is(err, os.ErrNotExist) {
		return ctx.fetcher().Fetch(cmd.Context(), kind, arg)
	}
	if err != nil {
		return nil, fmt.Errorf("open feed file: %w", err)
	}
	defer f.Close()

	return sync.Parse(f)
}
