// Package query implements the read-only projections of the query
// surface (spec component C13): today's schedule, upcoming doses,
// adherence, weekly breakdown, history, calendar, doctor report, and
// inventory.
package query

import (
	"math"
	"time"

	"github.com/dosecore/backend/internal/clock"
	"github.com/dosecore/backend/internal/dose"
	"github.com/dosecore/backend/internal/errs"
	"github.com/dosecore/backend/internal/store"
)

// Surface answers C13's read projections against a store and clock.
type Surface struct {
	store *store.Store
	clock clock.Clock
}

// New constructs a Surface.
func New(st *store.Store, c clock.Clock) *Surface {
	return &Surface{store: st, clock: c}
}

// DoseView is a dose record enriched with its countdown, the shape
// returned for today's-schedule and history queries.
type DoseView struct {
	store.Dose
	CountdownRemainingSeconds int `json:"countdown_remaining_seconds"`
}

func view(d store.Dose, now time.Time) DoseView {
	return DoseView{Dose: d, CountdownRemainingSeconds: dose.Countdown(&d, now)}
}

// TodaySchedule returns all of a user's doses scheduled within the
// current local day.
func (s *Surface) TodaySchedule(userID string, loc *time.Location) ([]DoseView, error) {
	now := s.clock.Now().In(loc)
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	dayEnd := dayStart.Add(24 * time.Hour)

	doses, err := s.store.ListDosesInRange(userID, dayStart, dayEnd)
	if err != nil {
		return nil, err
	}
	views := make([]DoseView, len(doses))
	for i, d := range doses {
		views[i] = view(d, s.clock.Now())
	}
	return views, nil
}

// DefaultUpcomingHours and the clamp bounds, per spec section 4.4.
const (
	DefaultUpcomingHours = 4
	MinUpcomingHours     = 1
	MaxUpcomingHours     = 72
)

// ClampUpcomingHours enforces 1 ≤ H ≤ 72, defaulting to 4 when h is 0.
func ClampUpcomingHours(h int) int {
	if h == 0 {
		h = DefaultUpcomingHours
	}
	if h < MinUpcomingHours {
		return MinUpcomingHours
	}
	if h > MaxUpcomingHours {
		return MaxUpcomingHours
	}
	return h
}

// Upcoming returns a user's pending doses within (now, now+H hours].
func (s *Surface) Upcoming(userID string, hours int) ([]store.Dose, error) {
	now := s.clock.Now()
	return s.store.ListUpcomingDoses(userID, now, time.Duration(ClampUpcomingHours(hours))*time.Hour)
}

// Adherence is the aggregate count/rate projection over N days.
type Adherence struct {
	Taken   int     `json:"taken"`
	Missed  int     `json:"missed"`
	Error   int     `json:"error"`
	Total   int     `json:"total"`
	RatePct float64 `json:"rate_pct"`
}

// AdherenceOverDays computes taken/missed/error/total counts and the
// taken/total rate over the last N days, per spec section 4.4.
func (s *Surface) AdherenceOverDays(userID string, days int) (*Adherence, error) {
	now := s.clock.Now()
	doses, err := s.store.ListDosesInRange(userID, now.AddDate(0, 0, -days), now)
	if err != nil {
		return nil, err
	}

	a := &Adherence{}
	for _, d := range doses {
		a.Total++
		switch d.Status {
		case store.DoseTaken:
			a.Taken++
		case store.DoseMissed:
			a.Missed++
		case store.DoseError:
			a.Error++
		}
	}
	a.RatePct = rate(a.Taken, a.Total)
	return a, nil
}

func rate(numerator, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(numerator)/float64(total)*100*100) / 100
}

// DayBreakdown is one day's adherence within the weekly projection.
type DayBreakdown struct {
	Date    string  `json:"date"`
	Total   int     `json:"total"`
	Taken   int     `json:"taken"`
	RatePct float64 `json:"rate_pct"`
}

// Weekly returns a per-day breakdown for the last 7 local days, oldest
// first.
func (s *Surface) Weekly(userID string, loc *time.Location) ([]DayBreakdown, error) {
	now := s.clock.Now().In(loc)
	days := make([]DayBreakdown, 7)

	for i := 6; i >= 0; i-- {
		day := now.AddDate(0, 0, -i)
		dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, loc)
		dayEnd := dayStart.Add(24 * time.Hour)

		doses, err := s.store.ListDosesInRange(userID, dayStart, dayEnd)
		if err != nil {
			return nil, err
		}
		taken := 0
		for _, d := range doses {
			if d.Status == store.DoseTaken {
				taken++
			}
		}
		days[6-i] = DayBreakdown{
			Date:    dayStart.Format("2006-01-02"),
			Total:   len(doses),
			Taken:   taken,
			RatePct: rate(taken, len(doses)),
		}
	}
	return days, nil
}

// History returns a user's doses in [now-N days, now], optionally filtered
// by status, descending by scheduled_time.
func (s *Surface) History(userID string, days int, status store.DoseStatus) ([]store.Dose, error) {
	now := s.clock.Now()
	return s.store.ListDoseHistory(userID, now.AddDate(0, 0, -days), now, status)
}

// CalendarBucket is the qualitative bucket per spec section 4.4.
type CalendarBucket string

const (
	BucketGreen  CalendarBucket = "green"
	BucketYellow CalendarBucket = "yellow"
	BucketRed    CalendarBucket = "red"
	BucketGray   CalendarBucket = "gray"
)

// CalendarDay is one day's bucketed adherence within a month grid.
type CalendarDay struct {
	Date   string         `json:"date"`
	Total  int            `json:"total"`
	Taken  int            `json:"taken"`
	Bucket CalendarBucket `json:"bucket"`
}

// Calendar buckets every day in (month, year) by adherence, per spec
// section 4.4 and the boundary scenario S6.
func (s *Surface) Calendar(userID string, month, year int) ([]CalendarDay, error) {
	if month < 1 || month > 12 {
		return nil, errs.New(errs.InvalidInput, "month must be between 1 and 12")
	}
	loc := s.clock.Now().Location()
	first := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, loc)
	next := first.AddDate(0, 1, 0)

	doses, err := s.store.ListDosesInRange(userID, first, next)
	if err != nil {
		return nil, err
	}

	byDay := map[int][]store.Dose{}
	for _, d := range doses {
		byDay[d.ScheduledTime.In(loc).Day()] = append(byDay[d.ScheduledTime.In(loc).Day()], d)
	}

	numDays := next.Add(-24 * time.Hour).Day()
	days := make([]CalendarDay, numDays)
	for day := 1; day <= numDays; day++ {
		dayDoses := byDay[day]
		taken := 0
		for _, d := range dayDoses {
			if d.Status == store.DoseTaken {
				taken++
			}
		}
		days[day-1] = CalendarDay{
			Date:   time.Date(year, time.Month(month), day, 0, 0, 0, 0, loc).Format("2006-01-02"),
			Total:  len(dayDoses),
			Taken:  taken,
			Bucket: bucketFor(len(dayDoses), taken),
		}
	}
	return days, nil
}

func bucketFor(total, taken int) CalendarBucket {
	if total == 0 {
		return BucketGray
	}
	if taken == total {
		return BucketGreen
	}
	if taken == 0 {
		return BucketRed
	}
	return BucketYellow
}

// DefaultDosesPerDay is the stub fallback for inventory's days_remaining
// projection. Preserved from the reference: the correct value derives
// from a medication's times list, but the reference never connects them;
// see DESIGN.md's open-question note and spec section 9.
const DefaultDosesPerDay = 2

// InventoryView is one medication's inventory projection.
type InventoryView struct {
	store.Inventory
	DaysRemaining int `json:"days_remaining"`
}

// Inventory returns a user's per-medication inventory projection with
// days_remaining derived from the stubbed doses-per-day constant.
func (s *Surface) Inventory(userID string) ([]InventoryView, error) {
	rows, err := s.store.ListInventoryForUser(userID)
	if err != nil {
		return nil, err
	}
	views := make([]InventoryView, len(rows))
	for i, row := range rows {
		views[i] = InventoryView{Inventory: row, DaysRemaining: row.PillsRemaining / DefaultDosesPerDay}
	}
	return views, nil
}

// DoctorReport is the aggregate report for the doctor-visit endpoint.
type DoctorReport struct {
	RangeDays      int              `json:"range_days"`
	Adherence      *Adherence       `json:"adherence"`
	Medications    []store.Medication `json:"medications"`
	SymptomCount   int              `json:"symptom_count"`
	Correlations   []SymptomCorrelation `json:"symptom_correlations"`
}

// SymptomCorrelation is a derived correlation between a symptom label and
// a medication taken around the same time.
type SymptomCorrelation struct {
	MedicationID string `json:"medication_id"`
	SymptomLabel string `json:"symptom_label"`
	Occurrences  int    `json:"occurrences"`
}

// ValidRanges are the only accepted doctor-report window sizes.
var ValidRanges = map[int]bool{30: true, 60: true, 90: true}

// DoctorVisitReport assembles the aggregate report for a range of
// 30/60/90 days, per spec section 4.4.
func (s *Surface) DoctorVisitReport(userID string, rangeDays int) (*DoctorReport, error) {
	if !ValidRanges[rangeDays] {
		return nil, errs.New(errs.InvalidInput, "range must be one of 30, 60, 90 days")
	}

	adherence, err := s.AdherenceOverDays(userID, rangeDays)
	if err != nil {
		return nil, err
	}
	meds, err := s.store.ListMedicationsForUser(userID)
	if err != nil {
		return nil, err
	}
	symptoms, err := s.store.ListSymptomsSince(userID, s.clock.Now().AddDate(0, 0, -rangeDays))
	if err != nil {
		return nil, err
	}

	return &DoctorReport{
		RangeDays:    rangeDays,
		Adherence:    adherence,
		Medications:  meds,
		SymptomCount: len(symptoms),
		Correlations: correlateSymptoms(symptoms),
	}, nil
}

// SymptomCorrelations returns symptom/medication co-occurrence counts over
// the last N days, without the rest of the doctor-visit report.
func (s *Surface) SymptomCorrelations(userID string, days int) ([]SymptomCorrelation, error) {
	symptoms, err := s.store.ListSymptomsSince(userID, s.clock.Now().AddDate(0, 0, -days))
	if err != nil {
		return nil, err
	}
	return correlateSymptoms(symptoms), nil
}

func correlateSymptoms(symptoms []store.Symptom) []SymptomCorrelation {
	counts := map[string]map[string]int{}
	for _, sym := range symptoms {
		for _, medID := range sym.MedicationIDs {
			if counts[medID] == nil {
				counts[medID] = map[string]int{}
			}
			counts[medID][sym.Label]++
		}
	}

	var out []SymptomCorrelation
	for medID, byLabel := range counts {
		for label, n := range byLabel {
			out = append(out, SymptomCorrelation{MedicationID: medID, SymptomLabel: label, Occurrences: n})
		}
	}
	return out
}
