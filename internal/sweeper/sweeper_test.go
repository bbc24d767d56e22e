package sweeper

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dosecore/backend/internal/clock"
	"github.com/dosecore/backend/internal/dose"
	"github.com/dosecore/backend/internal/store"
)

func setup(t *testing.T) (*Sweeper, *store.Store, *clock.Fake) {
	st, err := store.NewInMemory("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	fake := clock.NewFake(time.Date(2026, 7, 29, 9, 30, 59, 0, time.UTC))
	engine := dose.New(st, fake, nil)
	logger := zap.NewNop()
	return New(st, fake, engine, logger, 30*time.Second, nil), st, fake
}

func TestTick_ForcesOverdueDoseToMissed(t *testing.T) {
	s, st, fake := setup(t)

	dispense := fake.Now().Add(-31 * time.Minute)
	d := &store.Dose{UserID: "user_1", MedicationID: "med_1", MedicationName: "Lisinopril",
		ScheduledTime: dispense, Status: store.DoseDispensedWaiting, DispenseTime: &dispense}
	require.NoError(t, st.CreateDose(d))

	s.tick(context.Background())

	got, err := st.GetDose(d.ID)
	require.NoError(t, err)
	assert.Equal(t, store.DoseMissed, got.Status)
	assert.Equal(t, "timeout_not_retrieved", got.Reason)
	require.NotNil(t, got.TimeoutTime)
}

func TestTick_IsIdempotent(t *testing.T) {
	s, st, fake := setup(t)

	dispense := fake.Now().Add(-31 * time.Minute)
	d := &store.Dose{UserID: "user_1", MedicationID: "med_1", ScheduledTime: dispense,
		Status: store.DoseDispensedWaiting, DispenseTime: &dispense}
	require.NoError(t, st.CreateDose(d))

	s.tick(context.Background())
	first, err := st.GetDose(d.ID)
	require.NoError(t, err)

	s.tick(context.Background())
	second, err := st.GetDose(d.ID)
	require.NoError(t, err)

	assert.Equal(t, first.Status, second.Status)
	assert.Equal(t, first.TimeoutTime, second.TimeoutTime)
}

func TestTick_LeavesFreshDoseAlone(t *testing.T) {
	s, st, fake := setup(t)

	dispense := fake.Now().Add(-5 * time.Minute)
	d := &store.Dose{UserID: "user_1", MedicationID: "med_1", ScheduledTime: dispense,
		Status: store.DoseDispensedWaiting, DispenseTime: &dispense}
	require.NoError(t, st.CreateDose(d))

	s.tick(context.Background())

	got, err := st.GetDose(d.ID)
	require.NoError(t, err)
	assert.Equal(t, store.DoseDispensedWaiting, got.Status)
}

func TestTick_EnqueuesMissedDoseNotificationWhenRuleThresholdMet(t *testing.T) {
	s, st, fake := setup(t)

	dispense := fake.Now().Add(-2 * time.Hour)
	d := &store.Dose{UserID: "user_1", MedicationID: "med_1", ScheduledTime: dispense,
		Status: store.DoseDispensedWaiting, DispenseTime: &dispense}
	require.NoError(t, st.CreateDose(d))

	require.NoError(t, st.CreateAlertRule(&store.AlertRule{UserID: "user_1", CaregiverID: "cg_1",
		Kind: store.RuleMissedDose, Threshold: 1, Active: true}))

	s.tick(context.Background())

	payload, err := st.DequeueNotification()
	require.NoError(t, err)
	assert.Contains(t, string(payload), "cg_1")
}
