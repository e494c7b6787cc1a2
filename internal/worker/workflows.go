package worker

import (
	"context"
	"fmt"
	"time"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	podwatcherrs "github.com/jdholdren/podwatch/internal/errors"
	"github.com/jdholdren/podwatch/internal/podwatch"
	"github.com/jdholdren/podwatch/internal/tracker"
)

type workflows struct{}

// Summary of a full cycle.
type Summary struct {
	Shows    int `json:"shows"`
	Skipped  int `json:"skipped"`
	Failed   int `json:"failed"`
	Inserted int `json:"inserted"`
}

func syncOptions(ctx workflow.Context) workflow.Context {
	return workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		// Covers the fetcher's own retries and backoff.
		StartToCloseTimeout: time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2.0,
			MaximumAttempts:    3, // 0 is unlimited retries
		},
	})
}

// SyncAllShows runs every show's cycle in parallel. A failing show is logged
// and counted; it never fails the workflow or its siblings.
func (workflows) SyncAllShows(ctx workflow.Context, mode tracker.Mode) (Summary, error) {
	ctx = syncOptions(ctx)
	l := workflow.GetLogger(ctx)

	var shows []podwatch.Show
	if err := workflow.ExecuteActivity(ctx, acts.AllShows).Get(ctx, &shows); err != nil {
		l.Error("failed to list shows", "error", err)
		return Summary{}, err
	}

	reports := make([]tracker.Report, len(shows))
	failed := make([]bool, len(shows))

	wg := workflow.NewWaitGroup(ctx)
	wg.Add(len(shows))
	for i, show := range shows {
		workflow.Go(ctx, func(ctx workflow.Context) {
			defer wg.Done()

			if err := workflow.ExecuteActivity(ctx, acts.SyncShow, show.ID, mode).Get(ctx, &reports[i]); err != nil {
				l.Error("failed to sync show", "show_id", show.ID, "error", err)
				failed[i] = true
			}
		})
	}
	wg.Wait(ctx)

	sum := Summary{Shows: len(shows)}
	for i, r := range reports {
		switch {
		case failed[i]:
			sum.Failed++
		case r.Skipped:
			sum.Skipped++
		}
		sum.Inserted += r.Inserted
	}
	l.Info("sync cycle finished", "shows", sum.Shows, "failed", sum.Failed, "inserted", sum.Inserted)

	return sum, nil
}

// BackfillShow loads a show's whole feed into the store.
func (workflows) BackfillShow(ctx workflow.Context, showID string) (tracker.Report, error) {
	ctx = syncOptions(ctx)

	var report tracker.Report
	if err := workflow.ExecuteActivity(ctx, acts.SyncShow, showID, tracker.ModeBackfill).Get(ctx, &report); err != nil {
		workflow.GetLogger(ctx).Error("failed to backfill show", "show_id", showID, "error", err)
		return tracker.Report{}, err
	}

	return report, nil
}

// Dispatcher starts backfills on a temporal cluster and waits for them.
type Dispatcher struct {
	Client client.Client
}

func (d Dispatcher) Backfill(ctx context.Context, showID string) (tracker.Report, error) {
	return TriggerBackfillWorkflow(ctx, d.Client, showID)
}

func TriggerBackfillWorkflow(ctx context.Context, c client.Client, showID string) (tracker.Report, error) {
	options := client.StartWorkflowOptions{
		ID:        "backfill_" + showID,
		TaskQueue: TaskQueue,
	}
	we, err := c.ExecuteWorkflow(ctx, options, workflows{}.BackfillShow, showID)
	if err != nil {
		return tracker.Report{}, fmt.Errorf("unable to execute workflow: %s", err)
	}

	var report tracker.Report
	err = we.Get(ctx, &report)
	podErr := &podwatcherrs.Error{}
	if asPodwatchErr(err, &podErr) {
		return tracker.Report{}, podErr
	}
	if err != nil {
		return tracker.Report{}, fmt.Errorf("error executing workflow: %s", err)
	}

	return report, nil
}
