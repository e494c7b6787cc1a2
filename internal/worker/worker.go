package worker

import (
	"context"
	"fmt"
	"time"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	"github.com/jdholdren/podwatch/internal/tracker"
)

const TaskQueue = "podwatch"

// ScheduleID is the temporal schedule that runs the incremental cycle.
const ScheduleID = "sync_all"

// NewWorker sets up the worker with registration of workflows, activities, and schedules.
func NewWorker(ctx context.Context, store ShowLister, t *tracker.Tracker, cli client.Client, every time.Duration) (worker.Worker, error) {
	a := activities{
		store:   store,
		tracker: t,
	}

	w := worker.New(cli, TaskQueue, worker.Options{})
	register(w, a)

	if err := ensureSchedule(ctx, cli, every); err != nil {
		return nil, fmt.Errorf("error creating schedule: %T, %v", err, err)
	}

	return w, nil
}

type registry interface {
	RegisterWorkflow(w any)
	RegisterActivity(a any)
}

func register(r registry, a activities) {
	wfs := workflows{}
	r.RegisterWorkflow(wfs.SyncAllShows)
	r.RegisterWorkflow(wfs.BackfillShow)

	r.RegisterActivity(&a)
}

// ensureSchedule creates the polling schedule, or brings an existing one
// up to date with the interval.
func ensureSchedule(ctx context.Context, cli client.Client, every time.Duration) error {
	if every <= 0 {
		every = 15 * time.Minute
	}
	spec := client.ScheduleSpec{
		Intervals: []client.ScheduleIntervalSpec{{Every: every}},
	}

	handle := cli.ScheduleClient().GetHandle(ctx, ScheduleID)
	if _, err := handle.Describe(ctx); err != nil {
		_, err = cli.ScheduleClient().Create(ctx, client.ScheduleOptions{
			ID:   ScheduleID,
			Spec: spec,
			Action: &client.ScheduleWorkflowAction{
				ID:        ScheduleID,
				Workflow:  workflows{}.SyncAllShows,
				Args:      []any{tracker.ModeIncremental},
				TaskQueue: TaskQueue,
			},
			TriggerImmediately: true,
		})
		return err
	}

	return handle.Update(ctx, client.ScheduleUpdateOptions{
		DoUpdate: func(input client.ScheduleUpdateInput) (*client.ScheduleUpdate, error) {
			sched := input.Description.Schedule
			sched.Spec = &spec
			return &client.ScheduleUpdate{
				Schedule: &sched,
			}, nil
		},
	})
}

// Error types
//
// These are error types in the temporal sense, not the general "go" error types sense.
// They are used since between activities error types are marshaled and type information is lost.
const (
	errTypeInternal        = "internal"
	errTypeFeedUnavailable = "feedUnavailable"
	errTypeNotFound        = "notFound"
)
