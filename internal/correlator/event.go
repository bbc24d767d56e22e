// Package correlator implements the event correlator (spec component
// C11): it parses a validated device event envelope into a closed sum
// type and routes it to the right dose, inventory row, or event-log entry
// per the dispatch table in spec section 4.3.
package correlator

import (
	"encoding/json"
	"time"

	"github.com/dosecore/backend/internal/errs"
)

// Kind is one of the nine device event kinds the dispatch table knows.
type Kind string

const (
	KindPillDispensed   Kind = "pill_dispensed"
	KindPillRetrieved   Kind = "pill_retrieved"
	KindDispenseError   Kind = "dispense_error"
	KindLowInventory    Kind = "low_inventory"
	KindCartridgeInsert Kind = "cartridge_inserted"
	KindCartridgeRemove Kind = "cartridge_removed"
	KindAlertSent       Kind = "alert_sent"
	KindBandRemoved     Kind = "band_removed"
	KindBandWorn        Kind = "band_worn"
	KindButtonPress     Kind = "button_press"
)

var knownKinds = map[Kind]bool{
	KindPillDispensed: true, KindPillRetrieved: true, KindDispenseError: true,
	KindLowInventory: true, KindCartridgeInsert: true, KindCartridgeRemove: true,
	KindAlertSent: true, KindBandRemoved: true, KindBandWorn: true, KindButtonPress: true,
}

// envelope mirrors the wire shape in spec section 6: event_type,
// device_id, timestamp are always present; the rest are kind-specific.
type envelope struct {
	EventType     string     `json:"event_type"`
	DeviceID      string     `json:"device_id"`
	Timestamp     time.Time  `json:"timestamp"`
	MedicationID  string     `json:"medication_id"`
	ScheduledTime *time.Time `json:"scheduled_time"`
	ActualTime    *time.Time `json:"actual_time"`
	ElapsedSecs   *int       `json:"time_elapsed_seconds"`
	ErrorCode     string     `json:"error_code"`
	ErrorMessage  string     `json:"error_message"`
	PillsRemaining *int      `json:"pills_remaining"`
	CartridgeSlot  *int      `json:"cartridge_slot"`
	InitialCount   *int      `json:"initial_pill_count"`
	CalibrationG   *float64  `json:"calibration_weight_grams"`
}

// Event is the closed sum type the envelope validates into. Exactly one
// of the kind-specific fields groups is meaningful, discriminated by Kind.
type Event struct {
	Kind         Kind
	DeviceID     string
	Timestamp    time.Time
	MedicationID string

	ScheduledTime *time.Time
	ActualTime    *time.Time
	ElapsedSecs   *int
	ErrorCode     string
	ErrorMessage  string

	PillsRemaining *int
	CartridgeSlot  *int
	InitialCount   *int
	CalibrationG   *float64
}

// Parse validates the event_type tag before any state logic runs, per
// spec section 9's design note on the device event union, and returns a
// stable errs.InvalidInput for any unrecognized kind.
func Parse(body []byte) (*Event, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, errs.New(errs.InvalidInput, "malformed event payload")
	}
	k := Kind(env.EventType)
	if !knownKinds[k] {
		return nil, errs.New(errs.InvalidInput, "unknown event kind: "+env.EventType)
	}
	if env.DeviceID == "" {
		return nil, errs.New(errs.InvalidInput, "device_id is required")
	}

	return &Event{
		Kind:           k,
		DeviceID:       env.DeviceID,
		Timestamp:      env.Timestamp,
		MedicationID:   env.MedicationID,
		ScheduledTime:  env.ScheduledTime,
		ActualTime:     env.ActualTime,
		ElapsedSecs:    env.ElapsedSecs,
		ErrorCode:      env.ErrorCode,
		ErrorMessage:   env.ErrorMessage,
		PillsRemaining: env.PillsRemaining,
		CartridgeSlot:  env.CartridgeSlot,
		InitialCount:   env.InitialCount,
		CalibrationG:   env.CalibrationG,
	}, nil
}
