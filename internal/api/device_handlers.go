package api

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/dosecore/backend/internal/correlator"
	"github.com/dosecore/backend/internal/errs"
)

// handleDeviceEvent parses and correlates a single device event, per spec
// component C11. The event id is the device-supplied idempotency key from
// the X-Event-ID header, falling back to the device id plus body hash
// being unnecessary since Parse rejects malformed bodies before dispatch.
func (s *Server) handleDeviceEvent(c *fiber.Ctx) error {
	ev, err := correlator.Parse(c.Body())
	if err != nil {
		return writeErr(c, err)
	}

	eventID := c.Get("X-Event-ID")
	if eventID == "" {
		return writeErr(c, errs.New(errs.InvalidInput, "X-Event-ID header is required"))
	}

	if err := s.correlator.Handle(eventID, ev); err != nil {
		s.logger.Error("failed to correlate device event",
			zap.String("device_id", deviceIDFrom(c)), zap.String("event_id", eventID), zap.Error(err))
		return writeErr(c, errs.Wrap(errs.Internal, "failed to process event", err))
	}
	return c.SendStatus(fiber.StatusAccepted)
}
