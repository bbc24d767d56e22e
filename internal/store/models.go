package store

import "time"

// User is a patient-facing account. Owns medications, doses, inventory,
// symptoms, caregivers, and API keys.
type User struct {
	ID           string    `json:"id" gorm:"primaryKey"`
	Email        string    `json:"email" gorm:"uniqueIndex"`
	PasswordHash string    `json:"-"`
	DisplayName  string    `json:"display_name"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// DeviceKind distinguishes the two physical device classes.
type DeviceKind string

const (
	DeviceDispenser DeviceKind = "dispenser"
	DeviceBand      DeviceKind = "band"
)

// DeviceStatus is the device's last reported liveness.
type DeviceStatus string

const (
	DeviceOnline  DeviceStatus = "online"
	DeviceOffline DeviceStatus = "offline"
	DeviceError   DeviceStatus = "error"
)

// Device is a provisioned dispenser or band belonging to a user.
type Device struct {
	ID           string       `json:"id" gorm:"primaryKey"`
	UserID       string       `json:"user_id" gorm:"index"`
	Kind         DeviceKind   `json:"kind"`
	AuthTokenHash string      `json:"-"`
	Status       DeviceStatus `json:"status" gorm:"default:offline"`
	LastSeenAt   *time.Time   `json:"last_seen_at,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
}

// Medication is a patient's prescribed medication and its daily schedule.
type Medication struct {
	ID           string    `json:"id" gorm:"primaryKey"`
	UserID       string    `json:"user_id" gorm:"index"`
	Name         string    `json:"name"`
	DosageLabel  string    `json:"dosage_label,omitempty"`
	TimesJSON    string    `json:"-" gorm:"column:times_json"`
	Times        []string  `json:"times" gorm:"-"`
	DurationDays int       `json:"duration_days"`
	StartDate    string    `json:"start_date"` // YYYY-MM-DD
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// DoseStatus is one of the six dose lifecycle states in spec section 4.1.
type DoseStatus string

const (
	DosePending          DoseStatus = "pending"
	DoseDispensedWaiting DoseStatus = "dispensed_waiting"
	DoseTaken            DoseStatus = "taken"
	DoseMissed           DoseStatus = "missed"
	DoseError            DoseStatus = "error"
	DoseSkipped          DoseStatus = "skipped"
)

// Dose is a single scheduled occurrence of taking a medication.
type Dose struct {
	ID                  string     `json:"id" gorm:"primaryKey"`
	UserID              string     `json:"user_id" gorm:"index"`
	MedicationID        string     `json:"medication_id" gorm:"index"`
	MedicationName      string     `json:"medication_name"`
	ScheduledTime       time.Time  `json:"scheduled_time" gorm:"index"`
	Status              DoseStatus `json:"status" gorm:"index"`
	DispenseTime        *time.Time `json:"dispense_time,omitempty"`
	RetrievalTime       *time.Time `json:"retrieval_time,omitempty"`
	ActualTime          *time.Time `json:"actual_time,omitempty"`
	TimeElapsedSeconds  *int       `json:"time_elapsed_seconds,omitempty"`
	ErrorMessage        string     `json:"error_message,omitempty"`
	Reason              string     `json:"reason,omitempty"`
	TimeoutTime         *time.Time `json:"timeout_time,omitempty"`
	Acknowledged        bool       `json:"acknowledged"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

// Inventory tracks a cartridge's remaining pill count for one medication.
type Inventory struct {
	ID                     string    `json:"id" gorm:"primaryKey"`
	UserID                 string    `json:"user_id" gorm:"index"`
	MedicationID           string    `json:"medication_id" gorm:"index"`
	DeviceID               string    `json:"device_id,omitempty"`
	CartridgeSlot          *int      `json:"cartridge_slot,omitempty"`
	PillsRemaining         int       `json:"pills_remaining"`
	InitialPillCount       int       `json:"initial_pill_count"`
	RefillThreshold        int       `json:"refill_threshold" gorm:"default:7"`
	RefillNeeded           bool      `json:"refill_needed"`
	CalibrationWeightGrams *float64  `json:"calibration_weight_grams,omitempty"`
	UpdatedAt              time.Time `json:"updated_at"`
}

// EventLogEntry is an append-only record of an accepted device event.
type EventLogEntry struct {
	ID          string    `json:"id" gorm:"primaryKey"`
	DeviceID    string    `json:"device_id" gorm:"index"`
	Kind        string    `json:"kind"`
	Payload     string    `json:"payload"`
	ProcessedAt time.Time `json:"processed_at" gorm:"index"`
}

// Symptom is a user-submitted symptom entry, immutable once stored.
type Symptom struct {
	ID              string    `json:"id" gorm:"primaryKey"`
	UserID          string    `json:"user_id" gorm:"index"`
	Label           string    `json:"label"`
	Text            string    `json:"text,omitempty"`
	Severity        int       `json:"severity"`
	Mood            *int      `json:"mood,omitempty"`
	MedicationIDs   []string  `json:"medication_ids" gorm:"-"`
	MedicationIDsJSON string  `json:"-" gorm:"column:medication_ids_json"`
	CreatedAt       time.Time `json:"created_at"`
}

// Caregiver is a caregiver associated to a user.
type Caregiver struct {
	ID              string    `json:"id" gorm:"primaryKey"`
	UserID          string    `json:"user_id" gorm:"index"`
	Name            string    `json:"name"`
	Email           string    `json:"email"`
	Relationship    string    `json:"relationship,omitempty"`
	Permissions     []string  `json:"permissions" gorm:"-"`
	PermissionsJSON string    `json:"-" gorm:"column:permissions_json"`
	Authorized      bool      `json:"authorized"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// AlertRuleKind is one of the three rule kinds in spec section 3.
type AlertRuleKind string

const (
	RuleMissedDose      AlertRuleKind = "missed_dose"
	RuleLowInventory    AlertRuleKind = "low_inventory"
	RuleSymptomSeverity AlertRuleKind = "symptom_severity"
)

// AlertRule fires a notification when its kind-specific threshold is met.
type AlertRule struct {
	ID          string        `json:"id" gorm:"primaryKey"`
	UserID      string        `json:"user_id" gorm:"index"`
	CaregiverID string        `json:"caregiver_id" gorm:"index"`
	Kind        AlertRuleKind `json:"kind"`
	Threshold   int           `json:"threshold"`
	Active      bool          `json:"active" gorm:"default:true"`
	CreatedAt   time.Time     `json:"created_at"`
}

// APIKey authorizes third-party callers. Only the hash is ever persisted.
type APIKey struct {
	ID              string     `json:"id" gorm:"primaryKey"`
	UserID          string     `json:"user_id" gorm:"index"`
	Name            string     `json:"name"`
	KeyHash         string     `json:"-"`
	Permissions     []string   `json:"permissions" gorm:"-"`
	PermissionsJSON string     `json:"-" gorm:"column:permissions_json"`
	Active          bool       `json:"active" gorm:"default:true"`
	LastUsedAt      *time.Time `json:"last_used_at,omitempty"`
	ExpiresAt       time.Time  `json:"expires_at"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}
