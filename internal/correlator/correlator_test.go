package correlator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dosecore/backend/internal/clock"
	"github.com/dosecore/backend/internal/dose"
	"github.com/dosecore/backend/internal/store"
)

func setup(t *testing.T) (*Correlator, *store.Store, *clock.Fake) {
	st, err := store.NewInMemory("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	fake := clock.NewFake(time.Date(2026, 7, 29, 9, 0, 0, 0, time.UTC))
	engine := dose.New(st, fake, nil)
	return New(st, engine, fake, zap.NewNop(), 5*time.Minute, nil), st, fake
}

func TestParse_RejectsUnknownKind(t *testing.T) {
	_, err := Parse([]byte(`{"event_type":"teleport","device_id":"dev_1"}`))
	require.Error(t, err)
}

func TestHandle_PillDispensedMatchesPendingWithinTolerance(t *testing.T) {
	c, st, fake := setup(t)
	scheduled := fake.Now()
	pending := &store.Dose{UserID: "user_1", MedicationID: "med_1", ScheduledTime: scheduled, Status: store.DosePending}
	require.NoError(t, st.CreateDose(pending))

	actual := scheduled.Add(3 * time.Second)
	ev := &Event{Kind: KindPillDispensed, DeviceID: "dev_1", MedicationID: "med_1",
		ScheduledTime: &scheduled, ActualTime: &actual}
	require.NoError(t, c.Handle("evt_1", ev))

	got, err := st.GetDose(pending.ID)
	require.NoError(t, err)
	assert.Equal(t, store.DoseDispensedWaiting, got.Status)
	assert.Equal(t, actual, *got.DispenseTime)
}

func TestHandle_PillDispensedOutsideWindowSynthesizesDose(t *testing.T) {
	c, st, fake := setup(t)
	scheduled := fake.Now()
	pending := &store.Dose{UserID: "user_1", MedicationID: "med_1", ScheduledTime: scheduled, Status: store.DosePending}
	require.NoError(t, st.CreateDose(pending))

	lateSchedule := scheduled.Add(6 * time.Minute)
	ev := &Event{Kind: KindPillDispensed, DeviceID: "dev_1", MedicationID: "med_1", ScheduledTime: &lateSchedule}
	require.NoError(t, c.Handle("evt_2", ev))

	still, err := st.GetDose(pending.ID)
	require.NoError(t, err)
	assert.Equal(t, store.DosePending, still.Status)

	doses, err := st.ListDosesInRange("", time.Time{}, fake.Now().Add(24*time.Hour))
	require.NoError(t, err)
	found := false
	for _, d := range doses {
		if d.ID != pending.ID && d.Status == store.DoseDispensedWaiting {
			found = true
		}
	}
	assert.True(t, found, "expected a synthetic dispensed_waiting dose")
}

func TestHandle_PillDispensedBoundaryExactlyFiveMinutesCorrelates(t *testing.T) {
	c, st, fake := setup(t)
	scheduled := fake.Now()
	pending := &store.Dose{UserID: "user_1", MedicationID: "med_1", ScheduledTime: scheduled, Status: store.DosePending}
	require.NoError(t, st.CreateDose(pending))

	boundary := scheduled.Add(5 * time.Minute)
	require.NoError(t, c.Handle("evt_3", &Event{Kind: KindPillDispensed, DeviceID: "dev_1", MedicationID: "med_1", ScheduledTime: &boundary}))

	got, err := st.GetDose(pending.ID)
	require.NoError(t, err)
	assert.Equal(t, store.DoseDispensedWaiting, got.Status)
}

func TestHandle_DispenseErrorThenRetryToPending(t *testing.T) {
	c, st, fake := setup(t)
	scheduled := fake.Now()
	pending := &store.Dose{UserID: "user_1", MedicationID: "med_1", ScheduledTime: scheduled, Status: store.DosePending}
	require.NoError(t, st.CreateDose(pending))

	require.NoError(t, c.Handle("evt_4", &Event{Kind: KindDispenseError, DeviceID: "dev_1", MedicationID: "med_1", ErrorCode: "E102"}))

	got, err := st.GetDose(pending.ID)
	require.NoError(t, err)
	require.Equal(t, store.DoseError, got.Status)

	engine := dose.New(st, fake, nil)
	_, err = engine.Transition(got.ID, store.DosePending, nil)
	require.NoError(t, err)

	_, err = engine.Transition(got.ID, store.DoseTaken, nil)
	require.Error(t, err)
}

func TestHandle_CartridgeInsertThenRemoveRoundTrip(t *testing.T) {
	c, _, _ := setup(t)
	count := 30
	require.NoError(t, c.Handle("evt_5", &Event{Kind: KindCartridgeInsert, DeviceID: "dev_1", MedicationID: "med_1", PillsRemaining: &count, InitialCount: &count}))

	remaining := 30
	require.NoError(t, c.Handle("evt_6", &Event{Kind: KindCartridgeRemove, DeviceID: "dev_1", MedicationID: "med_1", PillsRemaining: &remaining}))
}

func TestHandle_CartridgeInsertedSetsUserIDFromMedication(t *testing.T) {
	c, st, _ := setup(t)
	med := &store.Medication{UserID: "user_1", Name: "Metformin", Times: []string{"08:00"}, DurationDays: 30, StartDate: "2026-07-01"}
	require.NoError(t, st.CreateMedication(med))

	count := 30
	require.NoError(t, c.Handle("evt_7", &Event{Kind: KindCartridgeInsert, DeviceID: "dev_1", MedicationID: med.ID, PillsRemaining: &count, InitialCount: &count}))

	inv, err := st.GetInventoryForMedication(med.ID)
	require.NoError(t, err)
	assert.Equal(t, "user_1", inv.UserID)

	rows, err := st.ListInventoryForUser("user_1")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, med.ID, rows[0].MedicationID)
}

func TestHandle_DuplicateEventIDIsNoOp(t *testing.T) {
	c, st, fake := setup(t)
	scheduled := fake.Now()
	pending := &store.Dose{UserID: "user_1", MedicationID: "med_1", ScheduledTime: scheduled, Status: store.DosePending}
	require.NoError(t, st.CreateDose(pending))

	ev := &Event{Kind: KindButtonPress, DeviceID: "dev_1", MedicationID: "med_1"}
	require.NoError(t, c.Handle("evt_dup", ev))
	require.NoError(t, c.Handle("evt_dup", ev))

	entries, err := st.ListEventLogForDevice("dev_1", 0)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
