package api

import (
	"github.com/gofiber/fiber/v2"

	"github.com/dosecore/backend/internal/errs"
	"github.com/dosecore/backend/internal/store"
)

// handleAddCaregiver registers a caregiver for the authenticated user, per
// spec section 3. Caregivers are unauthorized until confirmed out-of-band;
// this endpoint only records the relationship.
func (s *Server) handleAddCaregiver(c *fiber.Ctx) error {
	var req addCaregiverRequest
	if err := c.BodyParser(&req); err != nil {
		return writeErr(c, errs.New(errs.InvalidInput, "invalid request body"))
	}
	if err := validate.Struct(req); err != nil {
		return writeErr(c, errs.New(errs.InvalidInput, err.Error()))
	}

	cg := &store.Caregiver{
		UserID:       userIDFrom(c),
		Name:         req.Name,
		Email:        req.Email,
		Relationship: req.Relationship,
		Permissions:  req.Permissions,
	}
	if err := s.store.CreateCaregiver(cg); err != nil {
		return writeErr(c, errs.Wrap(errs.Internal, "failed to add caregiver", err))
	}
	return c.Status(fiber.StatusCreated).JSON(cg)
}

// recentDoseHistoryDays bounds the "recent doses" window on the caregiver
// dashboard; the dashboard is a glanceable summary, not the full history
// endpoint, so it only needs the last week regardless of ?days= on
// /api/history/doses.
const recentDoseHistoryDays = 7

// handleCaregiverDashboard returns the authenticated user's caregivers
// alongside recent doses and inventory, per spec.md's documented
// "caregiver+recent doses+inventory" dashboard response.
func (s *Server) handleCaregiverDashboard(c *fiber.Ctx) error {
	userID := userIDFrom(c)

	cgs, err := s.store.ListCaregiversForUser(userID)
	if err != nil {
		return writeErr(c, errs.Wrap(errs.Internal, "failed to list caregivers", err))
	}
	doses, err := s.surface.History(userID, recentDoseHistoryDays, "")
	if err != nil {
		return writeErr(c, errs.Wrap(errs.Internal, "failed to load recent doses", err))
	}
	inventory, err := s.surface.Inventory(userID)
	if err != nil {
		return writeErr(c, errs.Wrap(errs.Internal, "failed to load inventory", err))
	}
	return c.JSON(fiber.Map{"caregivers": cgs, "recent_doses": doses, "inventory": inventory})
}

// handleCreateAlertRule creates a threshold-based alert rule tying a
// caregiver to a missed-dose, low-inventory, or symptom-severity trigger,
// per spec section 3.
func (s *Server) handleCreateAlertRule(c *fiber.Ctx) error {
	var req createAlertRuleRequest
	if err := c.BodyParser(&req); err != nil {
		return writeErr(c, errs.New(errs.InvalidInput, "invalid request body"))
	}
	if err := validate.Struct(req); err != nil {
		return writeErr(c, errs.New(errs.InvalidInput, err.Error()))
	}

	rule := &store.AlertRule{
		UserID:      userIDFrom(c),
		CaregiverID: req.CaregiverID,
		Kind:        store.AlertRuleKind(req.Kind),
		Threshold:   req.Threshold,
		Active:      true,
	}
	if err := s.store.CreateAlertRule(rule); err != nil {
		return writeErr(c, errs.Wrap(errs.Internal, "failed to create alert rule", err))
	}
	return c.Status(fiber.StatusCreated).JSON(rule)
}

// handleListAlertRules lists the authenticated user's alert rules.
func (s *Server) handleListAlertRules(c *fiber.Ctx) error {
	rules, err := s.store.ListAlertRulesForUser(userIDFrom(c))
	if err != nil {
		return writeErr(c, errs.Wrap(errs.Internal, "failed to list alert rules", err))
	}
	return c.JSON(fiber.Map{"alert_rules": rules})
}
