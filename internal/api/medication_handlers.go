package api

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/dosecore/backend/internal/errs"
	"github.com/dosecore/backend/internal/store"
)

// handleListMedications lists medications. Unauthenticated in the
// reference; see spec section 9's open question, preserved here too, so
// it takes user_id as a query parameter rather than from a session.
func (s *Server) handleListMedications(c *fiber.Ctx) error {
	userID := c.Query("user_id")
	meds, err := s.store.ListMedicationsForUser(userID)
	if err != nil {
		return writeErr(c, errs.Wrap(errs.Internal, "failed to list medications", err))
	}
	return c.JSON(fiber.Map{"medications": meds})
}

// handleCreateMedication creates a medication and materializes its
// scheduled doses for its duration window, per spec section 3.
func (s *Server) handleCreateMedication(c *fiber.Ctx) error {
	var req medicationRequest
	if err := c.BodyParser(&req); err != nil {
		return writeErr(c, errs.New(errs.InvalidInput, "invalid request body"))
	}
	if err := validate.Struct(req); err != nil {
		return writeErr(c, errs.New(errs.InvalidInput, err.Error()))
	}

	userID := c.Query("user_id")
	med := &store.Medication{
		UserID:       userID,
		Name:         req.Name,
		DosageLabel:  req.DosageLabel,
		Times:        req.Times,
		DurationDays: req.DurationDays,
		StartDate:    req.StartDate,
	}
	if err := s.store.CreateMedication(med); err != nil {
		return writeErr(c, errs.Wrap(errs.Internal, "failed to create medication", err))
	}

	if err := materializeDoses(s, med); err != nil {
		s.logger.Error("failed to materialize doses for medication", zap.String("medication_id", med.ID), zap.Error(err))
	}

	return c.Status(fiber.StatusCreated).JSON(med)
}

func (s *Server) handleGetMedication(c *fiber.Ctx) error {
	med, err := s.store.GetMedication(c.Params("id"))
	if err != nil {
		if store.IsNotFound(err) {
			return writeErr(c, errs.New(errs.NotFound, "medication not found"))
		}
		return writeErr(c, errs.Wrap(errs.Internal, "failed to load medication", err))
	}
	return c.JSON(med)
}

func (s *Server) handleUpdateMedication(c *fiber.Ctx) error {
	var req medicationRequest
	if err := c.BodyParser(&req); err != nil {
		return writeErr(c, errs.New(errs.InvalidInput, "invalid request body"))
	}
	if err := validate.Struct(req); err != nil {
		return writeErr(c, errs.New(errs.InvalidInput, err.Error()))
	}

	med, err := s.store.GetMedication(c.Params("id"))
	if err != nil {
		if store.IsNotFound(err) {
			return writeErr(c, errs.New(errs.NotFound, "medication not found"))
		}
		return writeErr(c, errs.Wrap(errs.Internal, "failed to load medication", err))
	}

	med.Name = req.Name
	med.DosageLabel = req.DosageLabel
	med.Times = req.Times
	med.DurationDays = req.DurationDays
	med.StartDate = req.StartDate
	if err := s.store.UpdateMedication(med); err != nil {
		return writeErr(c, errs.Wrap(errs.Internal, "failed to update medication", err))
	}
	return c.JSON(med)
}

// handleDeleteMedication destroys a medication; destruction cascades to
// its dose and inventory records, per spec section 3.
func (s *Server) handleDeleteMedication(c *fiber.Ctx) error {
	id := c.Params("id")
	if err := s.store.DeleteDosesForMedication(id); err != nil {
		return writeErr(c, errs.Wrap(errs.Internal, "failed to cascade-delete doses", err))
	}
	if err := s.store.DeleteInventoryForMedication(id); err != nil {
		return writeErr(c, errs.Wrap(errs.Internal, "failed to cascade-delete inventory", err))
	}
	if err := s.store.DeleteMedication(id); err != nil {
		return writeErr(c, errs.Wrap(errs.Internal, "failed to delete medication", err))
	}
	return c.SendStatus(fiber.StatusNoContent)
}
