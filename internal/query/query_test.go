package query

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dosecore/backend/internal/clock"
	"github.com/dosecore/backend/internal/store"
)

func setup(t *testing.T) (*Surface, *store.Store, *clock.Fake) {
	st, err := store.NewInMemory("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	fake := clock.NewFake(time.Date(2026, 7, 29, 12, 0, 0, 0, time.UTC))
	return New(st, fake), st, fake
}

func TestClampUpcomingHours(t *testing.T) {
	assert.Equal(t, DefaultUpcomingHours, ClampUpcomingHours(0))
	assert.Equal(t, MinUpcomingHours, ClampUpcomingHours(-5))
	assert.Equal(t, MaxUpcomingHours, ClampUpcomingHours(1000))
	assert.Equal(t, 10, ClampUpcomingHours(10))
}

func TestAdherenceOverDays_HundredPercent(t *testing.T) {
	s, st, fake := setup(t)
	require.NoError(t, st.CreateDose(&store.Dose{UserID: "user_1", MedicationID: "med_1",
		ScheduledTime: fake.Now().Add(-time.Hour), Status: store.DoseTaken}))

	a, err := s.AdherenceOverDays("user_1", 1)
	require.NoError(t, err)
	assert.Equal(t, 1, a.Total)
	assert.Equal(t, 100.0, a.RatePct)
}

func TestAdherenceOverDays_ZeroTotalGivesZeroRate(t *testing.T) {
	s, _, _ := setup(t)
	a, err := s.AdherenceOverDays("user_nobody", 1)
	require.NoError(t, err)
	assert.Equal(t, 0, a.Total)
	assert.Equal(t, 0.0, a.RatePct)
}

func TestCalendar_RejectsOutOfRangeMonth(t *testing.T) {
	s, _, _ := setup(t)
	_, err := s.Calendar("user_1", 0, 2026)
	require.Error(t, err)
	_, err = s.Calendar("user_1", 13, 2026)
	require.Error(t, err)
}

func TestCalendar_BucketsMatchScenarioS6(t *testing.T) {
	s, st, fake := setup(t)
	loc := fake.Now().Location()
	day := time.Date(2026, 7, 15, 9, 0, 0, 0, loc)

	for i := 0; i < 4; i++ {
		require.NoError(t, st.CreateDose(&store.Dose{UserID: "green", MedicationID: "med_1",
			ScheduledTime: day.Add(time.Duration(i) * time.Hour), Status: store.DoseTaken}))
	}
	for i := 0; i < 2; i++ {
		require.NoError(t, st.CreateDose(&store.Dose{UserID: "yellow", MedicationID: "med_1",
			ScheduledTime: day.Add(time.Duration(i) * time.Hour), Status: store.DoseTaken}))
	}
	for i := 0; i < 2; i++ {
		require.NoError(t, st.CreateDose(&store.Dose{UserID: "yellow", MedicationID: "med_1",
			ScheduledTime: day.Add(time.Duration(i+2) * time.Hour), Status: store.DoseMissed}))
	}
	for i := 0; i < 4; i++ {
		require.NoError(t, st.CreateDose(&store.Dose{UserID: "red", MedicationID: "med_1",
			ScheduledTime: day.Add(time.Duration(i) * time.Hour), Status: store.DoseMissed}))
	}

	green, err := s.Calendar("green", 7, 2026)
	require.NoError(t, err)
	assert.Equal(t, BucketGreen, green[14].Bucket)

	yellow, err := s.Calendar("yellow", 7, 2026)
	require.NoError(t, err)
	assert.Equal(t, BucketYellow, yellow[14].Bucket)

	red, err := s.Calendar("red", 7, 2026)
	require.NoError(t, err)
	assert.Equal(t, BucketRed, red[14].Bucket)

	gray, err := s.Calendar("nobody", 7, 2026)
	require.NoError(t, err)
	assert.Equal(t, BucketGray, gray[14].Bucket)
}

func TestDoctorVisitReport_RejectsInvalidRange(t *testing.T) {
	s, _, _ := setup(t)
	_, err := s.DoctorVisitReport("user_1", 45)
	require.Error(t, err)
}

func TestDoctorVisitReport_AcceptsValidRanges(t *testing.T) {
	s, _, _ := setup(t)
	for r := range ValidRanges {
		_, err := s.DoctorVisitReport("user_1", r)
		require.NoError(t, err)
	}
}
