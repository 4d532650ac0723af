// Package worker runs background jobs next to the HTTP server.
package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/chemtech/maintenance-push/internal/logger"
	"github.com/chemtech/maintenance-push/internal/model"
	"github.com/robfig/cron/v3"
)

const purgeJobTimeout = 5 * time.Minute

// Purger deletes stored tokens that are no longer valid push tokens.
type Purger interface {
	PurgeInvalid(ctx context.Context) (model.PurgeResult, error)
}

// PurgeWorker runs the invalid-token sweep on a cron schedule.
type PurgeWorker struct {
	purger Purger
	cron   *cron.Cron
	log    *logger.Logger
}

// NewPurgeWorker validates spec (standard five-field cron or a descriptor
// such as @daily) and registers the sweep.
func NewPurgeWorker(spec string, purger Purger, log *logger.Logger) (*PurgeWorker, error) {
	w := &PurgeWorker{
		purger: purger,
		cron:   cron.New(cron.WithLocation(time.UTC)),
		log:    log.With("component", "purge-worker"),
	}
	if _, err := w.cron.AddFunc(spec, func() { w.RunOnce(context.Background()) }); err != nil {
		return nil, fmt.Errorf("purge schedule %q: %w", spec, err)
	}
	return w, nil
}

// Run starts the scheduler and blocks until ctx is done. A sweep already in
// progress is allowed to finish. done is called on return.
func (w *PurgeWorker) Run(ctx context.Context, done func()) {
	defer done()
	w.log.Info("purge worker started")
	w.cron.Start()
	<-ctx.Done()
	<-w.cron.Stop().Done()
	w.log.Info("purge worker stopped")
}

// RunOnce performs one sweep.
func (w *PurgeWorker) RunOnce(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, purgeJobTimeout)
	defer cancel()
	res, err := w.purger.PurgeInvalid(ctx)
	if err != nil {
		w.log.Error("scheduled purge failed", "deleted", res.DeletedCount, "error", err)
		return
	}
	w.log.Info("scheduled purge finished", "deleted", res.DeletedCount, "kept", res.KeptCount)
}
