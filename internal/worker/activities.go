package worker

import (
	"context"
	"errors"
	"net/http"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"

	podwatcherrs "github.com/jdholdren/podwatch/internal/errors"
	"github.com/jdholdren/podwatch/internal/podwatch"
	"github.com/jdholdren/podwatch/internal/tracker"
)

type ShowLister interface {
	Shows(ctx context.Context) ([]podwatch.Show, error)
}

type activities struct {
	store   ShowLister
	tracker *tracker.Tracker
}

// Instance to make the workflow a bit more readable
var acts = activities{}

// Fetches every show we know about.
func (a activities) AllShows(ctx context.Context) ([]podwatch.Show, error) {
	shows, err := a.store.Shows(ctx)
	if err != nil {
		return nil, temporal.NewApplicationErrorWithCause("error listing shows", errTypeInternal, err)
	}

	return shows, nil
}

// SyncShow runs one show's update cycle.
//
// Feed failures are final for this attempt: the fetcher already retried, and
// the next scheduled cycle will try again.
func (a activities) SyncShow(ctx context.Context, showID string, mode tracker.Mode) (tracker.Report, error) {
	l := activity.GetLogger(ctx)

	report, err := a.tracker.SyncShowByID(ctx, showID, mode)
	switch {
	case err == nil:
		l.Info("synced show", "show_id", showID, "inserted", report.Inserted, "skipped", report.Skipped)
		return report, nil
	case errors.Is(err, podwatch.ErrNotFound):
		return report, temporal.NewNonRetryableApplicationError("show not found", errTypeNotFound, err,
			podwatcherrs.E(err, http.StatusNotFound))
	case errors.Is(err, podwatch.ErrFeedUnavailable):
		return report, temporal.NewNonRetryableApplicationError("feed unavailable", errTypeFeedUnavailable, err,
			podwatcherrs.E(err, http.StatusBadGateway))
	}

	return report, temporal.NewApplicationErrorWithCause("error syncing show", errTypeInternal, err)
}
