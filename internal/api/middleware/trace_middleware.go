package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/maheshrc27/xpilot/pkg/logger"
	"github.com/maheshrc27/xpilot/pkg/utils"
)

const (
	TraceIDKey    = "trace_id"
	TraceIDHeader = "X-Trace-Id"
)

// Trace gives every request a trace id, reusing the caller's X-Trace-Id when present.
func Trace() fiber.Handler {
	return func(c *fiber.Ctx) error {
		traceID := c.Get(TraceIDHeader)
		if traceID == "" || len(traceID) > 64 {
			traceID = utils.NewTraceID()
		}

		c.Locals(TraceIDKey, traceID)
		c.SetUserContext(logger.WithTraceID(c.UserContext(), traceID))
		c.Set(TraceIDHeader, traceID)
		return c.Next()
	}
}
