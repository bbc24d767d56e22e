package store

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestStore(t *testing.T) *Store {
	s, err := NewInMemory("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_CreateAndGetUser(t *testing.T) {
	s := setupTestStore(t)

	u := &User{Email: "patient@example.com", DisplayName: "Pat"}
	require.NoError(t, s.CreateUser(u))
	assert.NotEmpty(t, u.ID)

	got, err := s.GetUserByEmail("patient@example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
}

func TestStore_MedicationTimesRoundTrip(t *testing.T) {
	s := setupTestStore(t)

	med := &Medication{UserID: "user_1", Name: "Lisinopril", Times: []string{"08:00", "20:00"}, DurationDays: 30, StartDate: "2026-07-01"}
	require.NoError(t, s.CreateMedication(med))

	got, err := s.GetMedication(med.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"08:00", "20:00"}, got.Times)
}

func TestStore_ListDosesDueForTimeout(t *testing.T) {
	s := setupTestStore(t)

	now := time.Date(2026, 7, 29, 9, 30, 0, 0, time.UTC)
	dispensed := now.Add(-31 * time.Minute)
	d := &Dose{UserID: "user_1", MedicationID: "med_1", ScheduledTime: now.Add(-31 * time.Minute), Status: DoseDispensedWaiting, DispenseTime: &dispensed}
	require.NoError(t, s.CreateDose(d))

	notYet := now.Add(-5 * time.Minute)
	fresh := &Dose{UserID: "user_1", MedicationID: "med_1", ScheduledTime: notYet, Status: DoseDispensedWaiting, DispenseTime: &notYet}
	require.NoError(t, s.CreateDose(fresh))

	due, err := s.ListDosesDueForTimeout(now.Add(-30 * time.Minute))
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, d.ID, due[0].ID)
}

func TestStore_NotificationQueueRoundTrip(t *testing.T) {
	s := setupTestStore(t)

	_, err := s.DequeueNotification()
	assert.ErrorIs(t, err, ErrQueueEmpty)

	require.NoError(t, s.EnqueueNotification([]byte("first")))
	require.NoError(t, s.EnqueueNotification([]byte("second")))

	got, err := s.DequeueNotification()
	require.NoError(t, err)
	assert.Equal(t, "first", string(got))

	got, err = s.DequeueNotification()
	require.NoError(t, err)
	assert.Equal(t, "second", string(got))
}

func TestStore_EventIdempotencyWindow(t *testing.T) {
	s := setupTestStore(t)

	seen, err := s.WasEventSeen("evt_1")
	require.NoError(t, err)
	assert.False(t, seen)

	require.NoError(t, s.MarkEventSeen("evt_1", time.Minute))

	seen, err = s.WasEventSeen("evt_1")
	require.NoError(t, err)
	assert.True(t, seen)
}

func TestStore_CartridgeInsertThenRemoveRoundTrip(t *testing.T) {
	s := setupTestStore(t)

	inv := &Inventory{UserID: "user_1", MedicationID: "med_1", PillsRemaining: 30, InitialPillCount: 30, RefillThreshold: 7}
	require.NoError(t, s.CreateInventory(inv))

	inv.PillsRemaining = 30
	require.NoError(t, s.SaveInventory(inv))

	got, err := s.GetInventoryForMedication("med_1")
	require.NoError(t, err)
	assert.Equal(t, 30, got.PillsRemaining)
}

func TestStore_UpdateInventoryForMedication_CreatesWhenAbsent(t *testing.T) {
	s := setupTestStore(t)

	inv, err := s.UpdateInventoryForMedication("med_1", func(inv *Inventory) *Inventory {
		assert.Nil(t, inv)
		return &Inventory{UserID: "user_1", MedicationID: "med_1", PillsRemaining: 30, RefillThreshold: 7}
	})
	require.NoError(t, err)
	assert.NotEmpty(t, inv.ID)

	got, err := s.GetInventoryForMedication("med_1")
	require.NoError(t, err)
	assert.Equal(t, 30, got.PillsRemaining)
}

func TestStore_UpdateInventoryForMedication_MutatesExisting(t *testing.T) {
	s := setupTestStore(t)
	require.NoError(t, s.CreateInventory(&Inventory{UserID: "user_1", MedicationID: "med_1", PillsRemaining: 30, RefillThreshold: 7}))

	_, err := s.UpdateInventoryForMedication("med_1", func(inv *Inventory) *Inventory {
		require.NotNil(t, inv)
		inv.PillsRemaining -= 10
		return inv
	})
	require.NoError(t, err)

	got, err := s.GetInventoryForMedication("med_1")
	require.NoError(t, err)
	assert.Equal(t, 20, got.PillsRemaining)
}

func TestStore_UpdateInventoryForMedication_SerializesConcurrentWriters(t *testing.T) {
	s := setupTestStore(t)
	require.NoError(t, s.CreateInventory(&Inventory{UserID: "user_1", MedicationID: "med_1", PillsRemaining: 0, RefillThreshold: 7}))

	const writers = 50
	var wg sync.WaitGroup
	wg.Add(writers)
	for i := 0; i < writers; i++ {
		go func() {
			defer wg.Done()
			_, err := s.UpdateInventoryForMedication("med_1", func(inv *Inventory) *Inventory {
				inv.PillsRemaining++
				return inv
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := s.GetInventoryForMedication("med_1")
	require.NoError(t, err)
	assert.Equal(t, writers, got.PillsRemaining)
}
