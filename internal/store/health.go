package store

import "time"

// CreateSymptom persists a symptom entry, serializing its medication-id
// list. Symptom entries are immutable once stored, per spec section 3.
func (s *Store) CreateSymptom(sym *Symptom) error {
	if sym.ID == "" {
		sym.ID = GenerateID("sym")
	}
	if err := marshalInto(&sym.MedicationIDsJSON, sym.MedicationIDs); err != nil {
		return err
	}
	return s.db.Create(sym).Error
}

// ListSymptomsSince returns a user's symptom entries from `from` to now,
// newest first.
func (s *Store) ListSymptomsSince(userID string, from time.Time) ([]Symptom, error) {
	var syms []Symptom
	err := s.db.Where("user_id = ? AND created_at >= ?", userID, from).
		Order("created_at DESC").
		Find(&syms).Error
	for i := range syms {
		unmarshalFrom(syms[i].MedicationIDsJSON, &syms[i].MedicationIDs)
	}
	return syms, err
}

// CreateCaregiver persists a new caregiver, unauthorized until confirmed
// out-of-band.
func (s *Store) CreateCaregiver(c *Caregiver) error {
	if c.ID == "" {
		c.ID = GenerateID("cg")
	}
	if err := marshalInto(&c.PermissionsJSON, c.Permissions); err != nil {
		return err
	}
	return s.db.Create(c).Error
}

// ListCaregiversForUser returns a user's caregivers.
func (s *Store) ListCaregiversForUser(userID string) ([]Caregiver, error) {
	var cgs []Caregiver
	err := s.db.Where("user_id = ?", userID).Find(&cgs).Error
	for i := range cgs {
		unmarshalFrom(cgs[i].PermissionsJSON, &cgs[i].Permissions)
	}
	return cgs, err
}

// CreateAlertRule persists a new alert rule.
func (s *Store) CreateAlertRule(r *AlertRule) error {
	if r.ID == "" {
		r.ID = GenerateID("rule")
	}
	return s.db.Create(r).Error
}

// ListAlertRulesForUser returns a user's alert rules.
func (s *Store) ListAlertRulesForUser(userID string) ([]AlertRule, error) {
	var rules []AlertRule
	err := s.db.Where("user_id = ?", userID).Find(&rules).Error
	return rules, err
}

// ListActiveAlertRulesByKind returns a user's active alert rules of a given
// kind, used by the sweeper to decide which caregivers to notify.
func (s *Store) ListActiveAlertRulesByKind(userID string, kind AlertRuleKind) ([]AlertRule, error) {
	var rules []AlertRule
	err := s.db.Where("user_id = ? AND kind = ? AND active = ?", userID, kind, true).Find(&rules).Error
	return rules, err
}

// CreateAPIKey persists a new API key record (hash only).
func (s *Store) CreateAPIKey(k *APIKey) error {
	if k.ID == "" {
		k.ID = GenerateID("key")
	}
	if err := marshalInto(&k.PermissionsJSON, k.Permissions); err != nil {
		return err
	}
	return s.db.Create(k).Error
}

// GetAPIKeyByHash looks up an API key by its one-way hash.
func (s *Store) GetAPIKeyByHash(hash string) (*APIKey, error) {
	var k APIKey
	if err := s.db.First(&k, "key_hash = ?", hash).Error; err != nil {
		return nil, err
	}
	unmarshalFrom(k.PermissionsJSON, &k.Permissions)
	return &k, nil
}

// TouchAPIKeyUsed stamps an API key's last-used instant.
func (s *Store) TouchAPIKeyUsed(id string, at time.Time) error {
	return s.db.Model(&APIKey{}).Where("id = ?", id).Update("last_used_at", at).Error
}

// ListAPIKeysForUser returns a user's API keys (hashes excluded from JSON,
// but present on the Go struct for internal comparisons).
func (s *Store) ListAPIKeysForUser(userID string) ([]APIKey, error) {
	var keys []APIKey
	err := s.db.Where("user_id = ?", userID).Find(&keys).Error
	for i := range keys {
		unmarshalFrom(keys[i].PermissionsJSON, &keys[i].Permissions)
	}
	return keys, err
}

// RevokeAPIKey deletes an API key scoped to its owning user.
func (s *Store) RevokeAPIKey(id, userID string) error {
	return s.db.Where("id = ? AND user_id = ?", id, userID).Delete(&APIKey{}).Error
}
