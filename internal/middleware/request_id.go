package middleware

import (
	"SentraKTP/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"regexp"
	"time"
)

const RequestIDKey = "X-Request-ID"

// clientRequestID limits what a caller may pass as its own request id, since
// the value ends up in every log line of the request.
var clientRequestID = regexp.MustCompile(`^[A-Za-z0-9._\-]{1,64}$`)

func NewRequestIDMiddleware() fiber.Handler {
	utilsInstance := utils.New()

	return func(c *fiber.Ctx) error {
		requestID := c.Get(RequestIDKey)

		if !clientRequestID.MatchString(requestID) {
			requestID, _ = utilsInstance.NewULIDFromTimestamp(time.Now())
		}

		c.Locals(RequestIDKey, requestID)
		c.Set(RequestIDKey, requestID)

		return c.Next()
	}
}
