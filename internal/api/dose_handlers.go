package api

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/dosecore/backend/internal/errs"
	"github.com/dosecore/backend/internal/store"
)

// handleHealth reports liveness per spec section 6: the sweeper singleton
// must be running for the process to consider itself healthy.
func (s *Server) handleHealth(c *fiber.Ctx) error {
	if s.sweeper != nil && !s.sweeper.IsRunning() {
		return writeErr(c, errs.New(errs.Internal, "sweeper is not running"))
	}
	return c.JSON(fiber.Map{"status": "ok"})
}

// handleDosesToday returns the authenticated user's doses scheduled within
// the current local day, per spec section 4.4.
func (s *Server) handleDosesToday(c *fiber.Ctx) error {
	views, err := s.surface.TodaySchedule(userIDFrom(c), time.UTC)
	if err != nil {
		return writeErr(c, errs.Wrap(errs.Internal, "failed to load today's schedule", err))
	}
	return c.JSON(fiber.Map{"doses": views})
}

// handleDosesUpcoming returns pending doses within the next H hours,
// clamped to [1, 72] and defaulting to 4, per spec section 4.4.
func (s *Server) handleDosesUpcoming(c *fiber.Ctx) error {
	hours, _ := strconv.Atoi(c.Query("hours"))
	doses, err := s.surface.Upcoming(userIDFrom(c), hours)
	if err != nil {
		return writeErr(c, errs.Wrap(errs.Internal, "failed to load upcoming doses", err))
	}
	return c.JSON(fiber.Map{"doses": doses})
}

// handleAdherence returns the adherence rate over the last N days
// (default 30).
func (s *Server) handleAdherence(c *fiber.Ctx) error {
	days, err := strconv.Atoi(c.Query("days"))
	if err != nil || days <= 0 {
		days = 30
	}
	a, err := s.surface.AdherenceOverDays(userIDFrom(c), days)
	if err != nil {
		return writeErr(c, errs.Wrap(errs.Internal, "failed to compute adherence", err))
	}
	return c.JSON(a)
}

// handleWeekly returns a 7-day adherence breakdown, oldest first.
func (s *Server) handleWeekly(c *fiber.Ctx) error {
	days, err := s.surface.Weekly(userIDFrom(c), time.UTC)
	if err != nil {
		return writeErr(c, errs.Wrap(errs.Internal, "failed to compute weekly breakdown", err))
	}
	return c.JSON(fiber.Map{"days": days})
}

// handleCalendar returns the bucketed adherence grid for ?month=&year=.
func (s *Server) handleCalendar(c *fiber.Ctx) error {
	month, _ := strconv.Atoi(c.Query("month"))
	year, _ := strconv.Atoi(c.Query("year"))
	if year == 0 {
		year = s.clock.Now().Year()
	}
	days, err := s.surface.Calendar(userIDFrom(c), month, year)
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(fiber.Map{"days": days})
}

// handleHistory returns dose history over the last N days (default 30),
// optionally filtered by ?status=.
func (s *Server) handleHistory(c *fiber.Ctx) error {
	days, err := strconv.Atoi(c.Query("days"))
	if err != nil || days <= 0 {
		days = 30
	}
	status := store.DoseStatus(c.Query("status"))
	doses, err := s.surface.History(userIDFrom(c), days, status)
	if err != nil {
		return writeErr(c, errs.Wrap(errs.Internal, "failed to load dose history", err))
	}
	return c.JSON(fiber.Map{"doses": doses})
}
