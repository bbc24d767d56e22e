// Package sweeper implements the timeout sweeper (spec component C10): a
// process-wide singleton background worker, grounded on the teacher's
// tasks.Scheduler start/stop lifecycle, that periodically forces overdue
// dispensed_waiting doses to missed.
package sweeper

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/dosecore/backend/internal/clock"
	"github.com/dosecore/backend/internal/dose"
	"github.com/dosecore/backend/internal/metrics"
	"github.com/dosecore/backend/internal/store"
)

// MissedDoseNotification is the "missed-dose notification required" record
// emitted for every active missed_dose alert rule whose threshold is met,
// per spec section 4.2. It is an input to the notify package's drainer,
// not a delivery itself.
type MissedDoseNotification struct {
	Kind        string    `json:"kind"`
	UserID      string    `json:"user_id"`
	CaregiverID string    `json:"caregiver_id"`
	DoseID      string    `json:"dose_id"`
	Medication  string    `json:"medication_name"`
	ScheduledAt time.Time `json:"scheduled_at"`
	HoursLate   float64   `json:"hours_late"`
}

// Sweeper is a single running instance per process; Start/Stop must be
// called exactly once each, matching the singleton lifecycle spec section
// 9 requires.
type Sweeper struct {
	store   *store.Store
	clock   clock.Clock
	engine  *dose.Machine
	logger  *zap.Logger
	period  time.Duration
	metrics *metrics.Metrics

	mu      sync.Mutex
	running bool
	cronID  cron.EntryID
	c       *cron.Cron
	wg      sync.WaitGroup
}

// New constructs a Sweeper that ticks every period and enforces timeout
// transitions through engine. m may be nil in tests that don't care about
// tick/forced-missed counters.
func New(st *store.Store, c clock.Clock, engine *dose.Machine, logger *zap.Logger, period time.Duration, m *metrics.Metrics) *Sweeper {
	return &Sweeper{store: st, clock: c, engine: engine, logger: logger, period: period, metrics: m}
}

// Start begins the sweeper's periodic tick using robfig/cron's "@every"
// schedule. It runs one tick immediately before the first scheduled one,
// mirroring the teacher scheduler's "run immediately on start" behavior.
func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("sweeper already running")
	}
	s.running = true
	s.c = cron.New()
	spec := fmt.Sprintf("@every %ds", int(s.period.Seconds()))
	id, err := s.c.AddFunc(spec, func() { s.tick(ctx) })
	if err != nil {
		s.running = false
		s.mu.Unlock()
		return fmt.Errorf("failed to schedule sweeper: %w", err)
	}
	s.cronID = id
	s.mu.Unlock()

	s.tick(ctx)
	s.c.Start()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		<-ctx.Done()
		s.Stop()
	}()

	s.logger.Info("sweeper started", zap.Duration("period", s.period))
	return nil
}

// Stop halts the cron scheduler and waits for any in-flight tick to
// finish, per spec section 5's cancellation model for the sweeper.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	c := s.c
	s.mu.Unlock()

	if c != nil {
		stopCtx := c.Stop()
		<-stopCtx.Done()
	}
	s.logger.Info("sweeper stopped")
}

// IsRunning reports whether the sweeper is currently active, used by the
// /health liveness endpoint per spec section 6.
func (s *Sweeper) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Engine returns the dose.Machine the sweeper enforces timeouts through,
// so the API server can transition doses against the same per-dose lock
// striping rather than a second, independent Machine instance.
func (s *Sweeper) Engine() *dose.Machine {
	return s.engine
}

// tick is idempotent: running it twice in immediate succession produces
// the same final dose-ledger content, per spec section 8's property 6,
// because every candidate has already left dispensed_waiting by the time
// the second tick enumerates it.
func (s *Sweeper) tick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("panic in sweeper tick", zap.Any("recover", r))
		}
	}()

	if s.metrics != nil {
		s.metrics.SweeperTicks.Inc()
	}

	now := s.clock.Now()
	overdue, err := s.store.ListDosesDueForTimeout(now.Add(-dose.TimeoutDuration))
	if err != nil {
		s.logger.Error("failed to list overdue doses", zap.Error(err))
		return
	}

	for _, d := range overdue {
		select {
		case <-ctx.Done():
			return
		default:
		}
		s.forceMissed(d)
	}
}

func (s *Sweeper) forceMissed(d store.Dose) {
	timeoutAt := d.DispenseTime.Add(dose.TimeoutDuration)
	updated, err := s.engine.Transition(d.ID, store.DoseMissed, func(target *store.Dose) {
		target.TimeoutTime = &timeoutAt
		target.Reason = "timeout_not_retrieved"
	})
	if err != nil {
		s.logger.Warn("failed to force dose to missed", zap.String("dose_id", d.ID), zap.Error(err))
		return
	}
	if s.metrics != nil {
		s.metrics.DosesForcedMissed.Inc()
	}

	s.notifyCaregivers(updated)
}

func (s *Sweeper) notifyCaregivers(d *store.Dose) {
	rules, err := s.store.ListActiveAlertRulesByKind(d.UserID, store.RuleMissedDose)
	if err != nil {
		s.logger.Error("failed to list missed-dose alert rules", zap.Error(err))
		return
	}

	hoursLate := s.clock.Now().Sub(d.ScheduledTime).Hours()
	for _, rule := range rules {
		if float64(rule.Threshold) > hoursLate {
			continue
		}
		payload, err := json.Marshal(MissedDoseNotification{
			Kind:        "missed_dose",
			UserID:      d.UserID,
			CaregiverID: rule.CaregiverID,
			DoseID:      d.ID,
			Medication:  d.MedicationName,
			ScheduledAt: d.ScheduledTime,
			HoursLate:   hoursLate,
		})
		if err != nil {
			s.logger.Error("failed to marshal missed-dose notification", zap.Error(err))
			continue
		}
		if err := s.store.EnqueueNotification(payload); err != nil {
			s.logger.Error("failed to enqueue missed-dose notification", zap.Error(err))
			continue
		}
		if s.metrics != nil {
			s.metrics.NotificationsQueued.Inc()
		}
	}
}
