package api

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/dosecore/backend/internal/errs"
	"github.com/dosecore/backend/internal/store"
)

// handleLogSymptom records a symptom entry for the authenticated user,
// optionally tagged against one or more medications, per spec section 3.
func (s *Server) handleLogSymptom(c *fiber.Ctx) error {
	var req logSymptomRequest
	if err := c.BodyParser(&req); err != nil {
		return writeErr(c, errs.New(errs.InvalidInput, "invalid request body"))
	}
	if err := validate.Struct(req); err != nil {
		return writeErr(c, errs.New(errs.InvalidInput, err.Error()))
	}

	sym := &store.Symptom{
		UserID:        userIDFrom(c),
		Label:         req.Label,
		Text:          req.Text,
		Severity:      req.Severity,
		Mood:          req.Mood,
		MedicationIDs: req.MedicationIDs,
		CreatedAt:     s.clock.Now(),
	}
	if err := s.store.CreateSymptom(sym); err != nil {
		return writeErr(c, errs.Wrap(errs.Internal, "failed to log symptom", err))
	}
	return c.Status(fiber.StatusCreated).JSON(sym)
}

// handleListSymptoms lists the authenticated user's symptoms over the last
// N days (default 90).
func (s *Server) handleListSymptoms(c *fiber.Ctx) error {
	days, err := strconv.Atoi(c.Query("days"))
	if err != nil || days <= 0 {
		days = 90
	}
	syms, err := s.store.ListSymptomsSince(userIDFrom(c), s.clock.Now().AddDate(0, 0, -days))
	if err != nil {
		return writeErr(c, errs.Wrap(errs.Internal, "failed to list symptoms", err))
	}
	return c.JSON(fiber.Map{"symptoms": syms})
}

// handleSymptomCorrelations surfaces symptom/medication co-occurrence
// counts over the last N days (default 90), reusing the same correlation
// logic the doctor-visit report assembles.
func (s *Server) handleSymptomCorrelations(c *fiber.Ctx) error {
	days, err := strconv.Atoi(c.Query("days"))
	if err != nil || days <= 0 {
		days = 90
	}
	correlations, err := s.surface.SymptomCorrelations(userIDFrom(c), days)
	if err != nil {
		return writeErr(c, errs.Wrap(errs.Internal, "failed to correlate symptoms", err))
	}
	return c.JSON(fiber.Map{"correlations": correlations})
}

// handleDoctorVisitReport assembles the aggregate report for a 30/60/90
// day range, per spec section 4.4.
func (s *Server) handleDoctorVisitReport(c *fiber.Ctx) error {
	rangeDays, _ := strconv.Atoi(c.Query("range_days"))
	report, err := s.surface.DoctorVisitReport(userIDFrom(c), rangeDays)
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(report)
}

// handleInventory returns the authenticated user's per-medication
// inventory projection.
func (s *Server) handleInventory(c *fiber.Ctx) error {
	views, err := s.surface.Inventory(userIDFrom(c))
	if err != nil {
		return writeErr(c, errs.Wrap(errs.Internal, "failed to load inventory", err))
	}
	return c.JSON(fiber.Map{"inventory": views})
}
