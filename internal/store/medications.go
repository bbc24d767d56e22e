package store

import "encoding/json"

// CreateMedication persists a medication, serializing its Times slice.
func (s *Store) CreateMedication(m *Medication) error {
	if m.ID == "" {
		m.ID = GenerateID("med")
	}
	if err := marshalInto(&m.TimesJSON, m.Times); err != nil {
		return err
	}
	return s.db.Create(m).Error
}

// GetMedication retrieves a medication by ID, populating Times.
func (s *Store) GetMedication(id string) (*Medication, error) {
	var m Medication
	if err := s.db.First(&m, "id = ?", id).Error; err != nil {
		return nil, err
	}
	unmarshalFrom(m.TimesJSON, &m.Times)
	return &m, nil
}

// ListMedicationsForUser returns all medications owned by a user.
func (s *Store) ListMedicationsForUser(userID string) ([]Medication, error) {
	var meds []Medication
	if err := s.db.Where("user_id = ?", userID).Order("created_at").Find(&meds).Error; err != nil {
		return nil, err
	}
	for i := range meds {
		unmarshalFrom(meds[i].TimesJSON, &meds[i].Times)
	}
	return meds, nil
}

// UpdateMedication saves changes to an existing medication.
func (s *Store) UpdateMedication(m *Medication) error {
	if err := marshalInto(&m.TimesJSON, m.Times); err != nil {
		return err
	}
	return s.db.Save(m).Error
}

// DeleteMedication removes a medication by ID.
func (s *Store) DeleteMedication(id string) error {
	return s.db.Where("id = ?", id).Delete(&Medication{}).Error
}

func marshalInto(dst *string, v interface{}) error {
	if v == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	*dst = string(b)
	return nil
}

func unmarshalFrom(src string, dst interface{}) {
	if src == "" {
		return
	}
	_ = json.Unmarshal([]byte(src), dst)
}
