// Package dose implements the dose state machine (spec component C9): it
// validates transitions against the fixed table in spec section 4.1 and
// performs each one atomically with respect to a single dose record.
package dose

import (
	"sync"
	"time"

	"github.com/dosecore/backend/internal/clock"
	"github.com/dosecore/backend/internal/errs"
	"github.com/dosecore/backend/internal/metrics"
	"github.com/dosecore/backend/internal/store"
)

// TimeoutDuration is T_timeout from spec section 4.1: the maximum time a
// dose may sit in dispensed_waiting before the sweeper forces it to missed.
const TimeoutDuration = 30 * time.Minute

// legalTransitions is the fixed table from spec section 4.1. A transition
// not present here is rejected as illegal.
var legalTransitions = map[store.DoseStatus]map[store.DoseStatus]bool{
	store.DosePending: {
		store.DoseDispensedWaiting: true,
		store.DoseError:            true,
		store.DoseSkipped:          true,
	},
	store.DoseDispensedWaiting: {
		store.DoseTaken:  true,
		store.DoseMissed: true,
	},
	store.DoseError: {
		store.DosePending: true,
	},
}

// IsTerminal reports whether a status has no outgoing transitions.
func IsTerminal(s store.DoseStatus) bool {
	return s == store.DoseTaken || s == store.DoseMissed || s == store.DoseSkipped
}

// Machine performs validated, atomic transitions on dose records. Each
// dose is protected by its own exclusion region (a striped sync.Map of
// mutexes) so concurrent events on the same dose serialize while distinct
// doses proceed independently, per spec section 5's concurrency model.
type Machine struct {
	store   *store.Store
	clock   clock.Clock
	metrics *metrics.Metrics
	mu      sync.Map // dose id -> *sync.Mutex
}

// New constructs a Machine backed by store and clock. m may be nil in
// tests that don't care about transition counters.
func New(st *store.Store, c clock.Clock, m *metrics.Metrics) *Machine {
	return &Machine{store: st, clock: c, metrics: m}
}

func (m *Machine) lockFor(doseID string) *sync.Mutex {
	v, _ := m.mu.LoadOrStore(doseID, &sync.Mutex{})
	return v.(*sync.Mutex)
}

// TransitionFunc mutates a freshly-read dose in place before it is saved.
// It must not change d.Status; the caller sets it after validating the
// transition.
type TransitionFunc func(d *store.Dose)

// Transition validates and performs (d.Status -> to) for the dose
// identified by doseID, applying mutate to set any correlated fields in
// the same atomic write. It rejects illegal (from, to) pairs with
// errs.IllegalTransition and returns the updated dose on success.
func (m *Machine) Transition(doseID string, to store.DoseStatus, mutate TransitionFunc) (*store.Dose, error) {
	lock := m.lockFor(doseID)
	lock.Lock()
	defer lock.Unlock()

	d, err := m.store.GetDose(doseID)
	if err != nil {
		if store.IsNotFound(err) {
			return nil, errs.New(errs.NotFound, "dose not found")
		}
		return nil, errs.Wrap(errs.Internal, "failed to load dose", err)
	}

	if IsTerminal(d.Status) {
		return nil, errs.New(errs.IllegalTransition, string(d.Status)+" -> "+string(to)+" is not allowed: "+string(d.Status)+" is terminal")
	}
	if !legalTransitions[d.Status][to] {
		return nil, errs.New(errs.IllegalTransition, string(d.Status)+" -> "+string(to)+" is not allowed")
	}

	if mutate != nil {
		mutate(d)
	}
	d.Status = to
	d.UpdatedAt = m.clock.Now()

	if err := m.store.SaveDose(d); err != nil {
		return nil, errs.Wrap(errs.Internal, "failed to save dose", err)
	}
	if m.metrics != nil {
		m.metrics.DoseTransitions.WithLabelValues(string(to)).Inc()
	}
	return d, nil
}

// Countdown returns the client-visible countdown in whole seconds for a
// dose's current state and instant, per spec section 4.1's countdown
// contract: max(0, dispense_time + T_timeout - now) while
// dispensed_waiting, else 0.
func Countdown(d *store.Dose, now time.Time) int {
	if d.Status != store.DoseDispensedWaiting || d.DispenseTime == nil {
		return 0
	}
	remaining := d.DispenseTime.Add(TimeoutDuration).Sub(now)
	if remaining < 0 {
		return 0
	}
	return int(remaining.Seconds())
}
