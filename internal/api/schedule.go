package api

import (
	"time"

	"github.com/dosecore/backend/internal/store"
)

// materializeDoses creates one pending dose per scheduled time, per day,
// across a medication's duration window, per spec section 3: "Initial
// state for doses materialized from the schedule." This supplements the
// distilled spec, which describes pending doses but never states where
// they come from; see SPEC_FULL.md.
func materializeDoses(s *Server, med *store.Medication) error {
	start, err := time.ParseInLocation("2006-01-02", med.StartDate, time.UTC)
	if err != nil {
		return err
	}

	for day := 0; day < med.DurationDays; day++ {
		date := start.AddDate(0, 0, day)
		for _, hhmm := range med.Times {
			t, err := time.Parse("15:04", hhmm)
			if err != nil {
				continue
			}
			scheduled := time.Date(date.Year(), date.Month(), date.Day(), t.Hour(), t.Minute(), 0, 0, time.UTC)

			d := &store.Dose{
				UserID:         med.UserID,
				MedicationID:   med.ID,
				MedicationName: med.Name,
				ScheduledTime:  scheduled,
				Status:         store.DosePending,
			}
			if err := s.store.CreateDose(d); err != nil {
				return err
			}
		}
	}
	return nil
}
