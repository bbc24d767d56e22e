package api

import "github.com/go-playground/validator/v10"

var validate = validator.New()

type registerRequest struct {
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,min=8"`
	DisplayName string `json:"display_name"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type medicationRequest struct {
	Name         string   `json:"name" validate:"required"`
	DosageLabel  string   `json:"dosage_label"`
	Times        []string `json:"times" validate:"required,min=1,dive,required"`
	DurationDays int      `json:"duration_days" validate:"required,gt=0"`
	StartDate    string   `json:"start_date" validate:"required"`
}

type generateAPIKeyRequest struct {
	Name        string   `json:"name" validate:"required"`
	Permissions []string `json:"permissions"`
}

type logSymptomRequest struct {
	Label         string   `json:"label" validate:"required"`
	Text          string   `json:"text"`
	Severity      int      `json:"severity" validate:"required,min=1,max=5"`
	Mood          *int     `json:"mood" validate:"omitempty,min=1,max=5"`
	MedicationIDs []string `json:"medication_ids"`
}

type addCaregiverRequest struct {
	Name         string   `json:"name" validate:"required"`
	Email        string   `json:"email" validate:"required,email"`
	Relationship string   `json:"relationship"`
	Permissions  []string `json:"permissions"`
}

type createAlertRuleRequest struct {
	CaregiverID string `json:"caregiver_id" validate:"required"`
	Kind        string `json:"kind" validate:"required,oneof=missed_dose low_inventory symptom_severity"`
	Threshold   int    `json:"threshold" validate:"required,gt=0"`
}
