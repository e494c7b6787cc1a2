package tracker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Poller runs incremental cycles on a cron schedule inside the process.
type Poller struct {
	cron    *cron.Cron
	tracker *Tracker
	spec    string
}

// NewPoller validates spec, a standard five field cron expression
// evaluated in loc.
func NewPoller(t *Tracker, spec string, loc *time.Location) (*Poller, error) {
	if loc == nil {
		loc = time.Local
	}
	if _, err := cron.ParseStandard(spec); err != nil {
		return nil, fmt.Errorf("invalid poll schedule %q: %w", spec, err)
	}

	return &Poller{
		cron:    cron.New(cron.WithLocation(loc)),
		tracker: t,
		spec:    spec,
	}, nil
}

// Run blocks until ctx is done, then waits for a cycle in flight to finish.
func (p *Poller) Run(ctx context.Context) error {
	// A cycle that overruns its slot is skipped rather than stacked.
	job := cron.NewChain(cron.SkipIfStillRunning(cron.DiscardLogger)).Then(cron.FuncJob(func() {
		if _, err := p.tracker.SyncAll(ctx, ModeIncremental); err != nil {
			slog.ErrorContext(ctx, "scheduled sync failed", "error", err)
		}
	}))
	if _, err := p.cron.AddJob(p.spec, job); err != nil {
		return fmt.Errorf("error scheduling sync: %w", err)
	}

	slog.InfoContext(ctx, "poller started", "schedule", p.spec)
	p.cron.Start()

	<-ctx.Done()
	<-p.cron.Stop().Done()
	slog.Info("poller stopped")

	return nil
}
