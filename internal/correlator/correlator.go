package correlator

import (
	"time"

	"go.uber.org/zap"

	"github.com/dosecore/backend/internal/clock"
	"github.com/dosecore/backend/internal/dose"
	"github.com/dosecore/backend/internal/metrics"
	"github.com/dosecore/backend/internal/store"
)

// Correlator dispatches validated device events to dose, inventory, and
// event-log updates per the table in spec section 4.3.
type Correlator struct {
	store     *store.Store
	engine    *dose.Machine
	clock     clock.Clock
	logger    *zap.Logger
	tolerance time.Duration
	metrics   *metrics.Metrics
}

// New constructs a Correlator with a ±tolerance matching window. m may be
// nil in tests that don't care about the device-events counter.
func New(st *store.Store, engine *dose.Machine, c clock.Clock, logger *zap.Logger, tolerance time.Duration, m *metrics.Metrics) *Correlator {
	return &Correlator{store: st, engine: engine, clock: c, logger: logger, tolerance: tolerance, metrics: m}
}

// idempotencyWindow bounds how long a retried delivery of the same event
// id is recognized and skipped rather than double-applied.
const idempotencyWindow = 10 * time.Minute

// Handle routes one parsed event to its dispatch action, logging it to the
// append-only event log first regardless of outcome (spec section 2's data
// flow: device events are logged before they are correlated). A repeated
// delivery of an event id already seen within the idempotency window is a
// no-op, supplementing the spec's per-device ordering guarantee (section
// 5) with protection against at-least-once device retries.
func (c *Correlator) Handle(eventID string, ev *Event) error {
	seen, err := c.store.WasEventSeen(eventID)
	if err != nil {
		return err
	}
	if seen {
		return nil
	}
	if err := c.store.MarkEventSeen(eventID, idempotencyWindow); err != nil {
		return err
	}

	if err := c.store.AppendEventLog(&store.EventLogEntry{
		ID:          eventID,
		DeviceID:    ev.DeviceID,
		Kind:        string(ev.Kind),
		Payload:     "",
		ProcessedAt: c.clock.Now(),
	}); err != nil {
		return err
	}
	if c.metrics != nil {
		c.metrics.DeviceEventsTotal.WithLabelValues(string(ev.Kind)).Inc()
	}

	switch ev.Kind {
	case KindPillDispensed:
		return c.handlePillDispensed(ev)
	case KindPillRetrieved:
		return c.handlePillRetrieved(ev)
	case KindDispenseError:
		return c.handleDispenseError(ev)
	case KindLowInventory:
		return c.handleLowInventory(ev)
	case KindCartridgeInsert:
		return c.handleCartridgeInserted(ev)
	case KindCartridgeRemove:
		return c.handleCartridgeRemoved(ev)
	case KindAlertSent, KindBandRemoved, KindBandWorn:
		return nil // event log append above is the only effect
	case KindButtonPress:
		return c.handleButtonPress(ev)
	}
	return nil
}

func (c *Correlator) handlePillDispensed(ev *Event) error {
	scheduled := ev.Timestamp
	if ev.ScheduledTime != nil {
		scheduled = *ev.ScheduledTime
	}
	actual := ev.Timestamp
	if ev.ActualTime != nil {
		actual = *ev.ActualTime
	}

	existing, err := c.store.FindDoseByMedicationAndSchedule(ev.MedicationID, scheduled, store.DosePending, c.tolerance)
	if err == nil {
		_, err := c.engine.Transition(existing.ID, store.DoseDispensedWaiting, func(d *store.Dose) {
			d.DispenseTime = &actual
		})
		return err
	}
	if !store.IsNotFound(err) {
		return err
	}

	owner, name := c.medicationSnapshot(ev.MedicationID)
	synthetic := &store.Dose{
		UserID:         owner,
		MedicationID:   ev.MedicationID,
		MedicationName: name,
		ScheduledTime:  scheduled,
		Status:         store.DoseDispensedWaiting,
		DispenseTime:   &actual,
	}
	return c.store.CreateDose(synthetic)
}

// medicationSnapshot looks up the owning user and display name for
// denormalization onto a synthetic dose, per spec section 3's
// "medication name (denormalized snapshot)" invariant. Both are empty if
// the medication can't be found, which can happen for a badly-configured
// device; the dose is still recorded.
func (c *Correlator) medicationSnapshot(medicationID string) (userID, name string) {
	med, err := c.store.GetMedication(medicationID)
	if err != nil {
		return "", ""
	}
	return med.UserID, med.Name
}

func (c *Correlator) handlePillRetrieved(ev *Event) error {
	d, err := c.store.FindLatestDoseInStatus(ev.MedicationID, store.DoseDispensedWaiting)
	if err != nil {
		if store.IsNotFound(err) {
			c.logger.Warn("pill_retrieved with no matching dispensed_waiting dose", zap.String("medication_id", ev.MedicationID))
			return nil
		}
		return err
	}

	actual := ev.Timestamp
	if ev.ActualTime != nil {
		actual = *ev.ActualTime
	}

	_, err = c.engine.Transition(d.ID, store.DoseTaken, func(d *store.Dose) {
		d.ActualTime = &actual
		d.RetrievalTime = &actual
		if ev.ElapsedSecs != nil {
			d.TimeElapsedSeconds = ev.ElapsedSecs
		}
	})
	return err
}

func (c *Correlator) handleDispenseError(ev *Event) error {
	d, err := c.store.FindTodayDoseInStatus(ev.MedicationID, store.DosePending, c.clock.Now())
	if err == nil {
		_, err := c.engine.Transition(d.ID, store.DoseError, func(d *store.Dose) {
			d.ErrorMessage = ev.ErrorMessage
		})
		return err
	}
	if !store.IsNotFound(err) {
		return err
	}

	scheduled := ev.Timestamp
	if ev.ScheduledTime != nil {
		scheduled = *ev.ScheduledTime
	}
	owner, name := c.medicationSnapshot(ev.MedicationID)
	return c.store.CreateDose(&store.Dose{
		UserID:         owner,
		MedicationID:   ev.MedicationID,
		MedicationName: name,
		ScheduledTime:  scheduled,
		Status:         store.DoseError,
		ErrorMessage:   ev.ErrorMessage,
	})
}

func (c *Correlator) handleLowInventory(ev *Event) error {
	_, err := c.store.UpdateInventoryForMedication(ev.MedicationID, func(inv *store.Inventory) *store.Inventory {
		if inv == nil {
			return nil // nothing to update yet; a cartridge was never registered
		}
		if ev.PillsRemaining != nil {
			inv.PillsRemaining = *ev.PillsRemaining
		}
		inv.RefillNeeded = inv.PillsRemaining <= inv.RefillThreshold
		return inv
	})
	return err
}

func (c *Correlator) handleCartridgeInserted(ev *Event) error {
	_, err := c.store.UpdateInventoryForMedication(ev.MedicationID, func(inv *store.Inventory) *store.Inventory {
		if inv == nil {
			owner, _ := c.medicationSnapshot(ev.MedicationID)
			inv = &store.Inventory{UserID: owner, MedicationID: ev.MedicationID, RefillThreshold: 7}
		}
		if ev.PillsRemaining != nil {
			inv.PillsRemaining = *ev.PillsRemaining
		}
		if ev.InitialCount != nil {
			inv.InitialPillCount = *ev.InitialCount
		}
		inv.CartridgeSlot = ev.CartridgeSlot
		inv.CalibrationWeightGrams = ev.CalibrationG
		inv.RefillNeeded = false
		return inv
	})
	return err
}

func (c *Correlator) handleCartridgeRemoved(ev *Event) error {
	_, err := c.store.UpdateInventoryForMedication(ev.MedicationID, func(inv *store.Inventory) *store.Inventory {
		if inv == nil {
			return nil
		}
		if ev.PillsRemaining != nil {
			inv.PillsRemaining = *ev.PillsRemaining
		}
		return inv
	})
	return err
}

func (c *Correlator) handleButtonPress(ev *Event) error {
	d, err := c.store.FindTodayDoseInStatus(ev.MedicationID, store.DosePending, c.clock.Now())
	if err != nil {
		if store.IsNotFound(err) {
			return nil
		}
		return err
	}
	d.Acknowledged = true
	return c.store.SaveDose(d)
}
