package store

import (
	"sync"
	"time"
)

// GetInventoryForMedication retrieves the inventory row for a medication,
// or gorm.ErrRecordNotFound if none has been created yet.
func (s *Store) GetInventoryForMedication(medicationID string) (*Inventory, error) {
	var inv Inventory
	if err := s.db.First(&inv, "medication_id = ?", medicationID).Error; err != nil {
		return nil, err
	}
	return &inv, nil
}

// CreateInventory persists a new inventory row.
func (s *Store) CreateInventory(inv *Inventory) error {
	if inv.ID == "" {
		inv.ID = GenerateID("inv")
	}
	inv.UpdatedAt = time.Now().UTC()
	return s.db.Create(inv).Error
}

// SaveInventory persists in-place changes to an inventory row.
func (s *Store) SaveInventory(inv *Inventory) error {
	inv.UpdatedAt = time.Now().UTC()
	return s.db.Save(inv).Error
}

func (s *Store) inventoryLockFor(medicationID string) *sync.Mutex {
	v, _ := s.inventoryLocks.LoadOrStore(medicationID, &sync.Mutex{})
	return v.(*sync.Mutex)
}

// InventoryMutateFunc mutates an inventory row in place. inv is nil when no
// row exists yet for the medication; the function must create one (setting
// MedicationID) if it wants the update to persist.
type InventoryMutateFunc func(inv *Inventory) *Inventory

// UpdateInventoryForMedication reads, mutates, and saves the inventory row
// for a medication under that medication's own exclusion region, the same
// per-key mutex-then-transaction shape as dose.Machine.Transition, so
// concurrent cartridge/low-inventory events for one medication serialize
// while distinct medications proceed independently.
func (s *Store) UpdateInventoryForMedication(medicationID string, mutate InventoryMutateFunc) (*Inventory, error) {
	lock := s.inventoryLockFor(medicationID)
	lock.Lock()
	defer lock.Unlock()

	inv, err := s.GetInventoryForMedication(medicationID)
	if err != nil {
		if !IsNotFound(err) {
			return nil, err
		}
		inv = nil
	}

	inv = mutate(inv)
	if inv == nil {
		return nil, nil
	}

	if inv.ID == "" {
		if inv.MedicationID == "" {
			inv.MedicationID = medicationID
		}
		if err := s.CreateInventory(inv); err != nil {
			return nil, err
		}
		return inv, nil
	}
	if err := s.SaveInventory(inv); err != nil {
		return nil, err
	}
	return inv, nil
}

// ListInventoryForUser returns every inventory row across a user's
// medications, joined implicitly through the medication table.
func (s *Store) ListInventoryForUser(userID string) ([]Inventory, error) {
	var rows []Inventory
	err := s.db.Where("user_id = ?", userID).Find(&rows).Error
	return rows, err
}

// DeleteInventoryForMedication removes the inventory row tied to a
// medication, used on medication deletion cascade.
func (s *Store) DeleteInventoryForMedication(medicationID string) error {
	return s.db.Where("medication_id = ?", medicationID).Delete(&Inventory{}).Error
}
