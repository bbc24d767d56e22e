package store

import "time"

// CreateDose persists a new dose record.
func (s *Store) CreateDose(d *Dose) error {
	if d.ID == "" {
		d.ID = GenerateID("dose")
	}
	return s.db.Create(d).Error
}

// GetDose retrieves a dose by ID.
func (s *Store) GetDose(id string) (*Dose, error) {
	var d Dose
	if err := s.db.First(&d, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &d, nil
}

// SaveDose persists in-place changes to an existing dose.
func (s *Store) SaveDose(d *Dose) error {
	return s.db.Save(d).Error
}

// FindDoseByMedicationAndSchedule locates a user's dose for a medication
// whose scheduled_time falls within tolerance of scheduledTime, used by
// the correlator before it decides whether to synthesize a new dose.
func (s *Store) FindDoseByMedicationAndSchedule(medicationID string, scheduledTime time.Time, status DoseStatus, tolerance time.Duration) (*Dose, error) {
	var d Dose
	err := s.db.Where("medication_id = ? AND status = ?", medicationID, status).
		Where("scheduled_time BETWEEN ? AND ?", scheduledTime.Add(-tolerance), scheduledTime.Add(tolerance)).
		Order("scheduled_time").
		First(&d).Error
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// FindLatestDoseInStatus returns the most recently scheduled dose for a
// medication currently in the given status.
func (s *Store) FindLatestDoseInStatus(medicationID string, status DoseStatus) (*Dose, error) {
	var d Dose
	err := s.db.Where("medication_id = ? AND status = ?", medicationID, status).
		Order("scheduled_time DESC").
		First(&d).Error
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// FindTodayDoseInStatus returns a medication's dose scheduled today that is
// currently in the given status, used by the button-press and
// dispense-error dispatch paths.
func (s *Store) FindTodayDoseInStatus(medicationID string, status DoseStatus, now time.Time) (*Dose, error) {
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	dayEnd := dayStart.Add(24 * time.Hour)
	var d Dose
	err := s.db.Where("medication_id = ? AND status = ?", medicationID, status).
		Where("scheduled_time >= ? AND scheduled_time < ?", dayStart, dayEnd).
		Order("scheduled_time").
		First(&d).Error
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// ListDosesDueForTimeout returns every dispensed_waiting dose whose
// dispense_time + timeout has already elapsed, for the sweeper's tick.
func (s *Store) ListDosesDueForTimeout(cutoff time.Time) ([]Dose, error) {
	var doses []Dose
	err := s.db.Where("status = ? AND dispense_time <= ?", DoseDispensedWaiting, cutoff).Find(&doses).Error
	return doses, err
}

// ListDosesInRange returns a user's doses whose scheduled_time falls within
// [from, to), ordered by scheduled_time.
func (s *Store) ListDosesInRange(userID string, from, to time.Time) ([]Dose, error) {
	var doses []Dose
	err := s.db.Where("user_id = ? AND scheduled_time >= ? AND scheduled_time < ?", userID, from, to).
		Order("scheduled_time").
		Find(&doses).Error
	return doses, err
}

// ListUpcomingDoses returns a user's pending doses within (now, now+window].
func (s *Store) ListUpcomingDoses(userID string, now time.Time, window time.Duration) ([]Dose, error) {
	var doses []Dose
	err := s.db.Where("user_id = ? AND status = ? AND scheduled_time > ? AND scheduled_time <= ?",
		userID, DosePending, now, now.Add(window)).
		Order("scheduled_time").
		Find(&doses).Error
	return doses, err
}

// ListDoseHistory returns a user's doses in [from, now], descending by
// scheduled_time, optionally filtered by status.
func (s *Store) ListDoseHistory(userID string, from, now time.Time, status DoseStatus) ([]Dose, error) {
	q := s.db.Where("user_id = ? AND scheduled_time >= ? AND scheduled_time <= ?", userID, from, now)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var doses []Dose
	err := q.Order("scheduled_time DESC").Find(&doses).Error
	return doses, err
}

// DeleteDosesForMedication removes all doses referencing a medication, used
// when the medication itself is deleted (cascade, see spec section 3).
func (s *Store) DeleteDosesForMedication(medicationID string) error {
	return s.db.Where("medication_id = ?", medicationID).Delete(&Dose{}).Error
}
