// Package notify drains the badger-backed alert-notification outbox that
// the sweeper and correlator write to, and hands each record to a
// Notifier. This supplements the distilled spec: section 4.2 says the
// core only "emits a ... record" for the external notifier and section 1
// calls push delivery out of scope, but a complete system still needs
// somewhere for that record to go once emitted; see SPEC_FULL.md.
package notify

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/dosecore/backend/internal/store"
)

// Notifier delivers one already-serialized notification payload.
type Notifier interface {
	Notify(ctx context.Context, payload []byte) error
}

// LogNotifier is the default Notifier: it logs the payload at info level.
// Used when no webhook endpoint is configured.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier constructs a LogNotifier.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Notify logs payload and never fails.
func (n *LogNotifier) Notify(_ context.Context, payload []byte) error {
	n.logger.Info("alert notification", zap.ByteString("payload", payload))
	return nil
}

// Drainer pops notifications off the store's badger outbox and hands them
// to a Notifier, the same Start/Stop singleton-worker shape the teacher's
// tasks.Scheduler uses for its own background loop.
type Drainer struct {
	store    *store.Store
	notifier Notifier
	logger   *zap.Logger
	period   time.Duration

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewDrainer constructs a Drainer that polls the outbox every period.
func NewDrainer(st *store.Store, notifier Notifier, logger *zap.Logger, period time.Duration) *Drainer {
	return &Drainer{store: st, notifier: notifier, logger: logger, period: period}
}

// Start begins draining the outbox in a background goroutine.
func (d *Drainer) Start(ctx context.Context) {
	d.stopCh = make(chan struct{})
	d.doneCh = make(chan struct{})

	go func() {
		defer close(d.doneCh)
		ticker := time.NewTicker(d.period)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-d.stopCh:
				return
			case <-ticker.C:
				d.drainAll(ctx)
			}
		}
	}()
}

// Stop signals the drainer to exit and waits for it to finish.
func (d *Drainer) Stop() {
	if d.stopCh == nil {
		return
	}
	close(d.stopCh)
	<-d.doneCh
}

func (d *Drainer) drainAll(ctx context.Context) {
	for {
		payload, err := d.store.DequeueNotification()
		if err == store.ErrQueueEmpty {
			return
		}
		if err != nil {
			d.logger.Error("failed to dequeue notification", zap.Error(err))
			return
		}
		if err := d.notifier.Notify(ctx, payload); err != nil {
			d.logger.Warn("notifier delivery failed", zap.Error(err))
		}
	}
}
