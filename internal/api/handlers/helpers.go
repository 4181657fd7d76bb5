package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/maheshrc27/xpilot/internal/api/middleware"
	"github.com/maheshrc27/xpilot/internal/service"
	"github.com/maheshrc27/xpilot/internal/transfer"
	"github.com/maheshrc27/xpilot/pkg/logger"
)

func GetTraceID(c *fiber.Ctx) string {
	traceID, _ := c.Locals(middleware.TraceIDKey).(string)
	return traceID
}

func respond(c *fiber.Ctx, counts map[string]int, results any) error {
	return c.Status(fiber.StatusOK).JSON(transfer.JobResponse{
		Success: true,
		Counts:  counts,
		Results: results,
		TraceID: GetTraceID(c),
	})
}

func respondError(c *fiber.Ctx, status int, err error) error {
	if status >= fiber.StatusInternalServerError {
		logger.FromContext(c.UserContext()).WithError(err).WithField("path", c.Path()).Error("job request failed")
	}
	return c.Status(status).JSON(transfer.JobResponse{
		Success: false,
		Error:   err.Error(),
		TraceID: GetTraceID(c),
	})
}

// statusFor maps service sentinels to HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrPostNotFound), errors.Is(err, service.ErrLoopNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, service.ErrAlreadyPosted), errors.Is(err, service.ErrPostInFlight),
		errors.Is(err, service.ErrLoopInactive):
		return fiber.StatusConflict
	default:
		return fiber.StatusInternalServerError
	}
}

var errMissingUserID = errors.New("user_id query parameter is required")
