package middleware

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/parlance-ai/parlance/internal/observability/telemetry"
)

// PostWriteFunc is a continuation a handler leaves behind to run after
// its response has been written.
type PostWriteFunc func(status, bytes int, elapsed time.Duration)

const postWriteKey = "postWrite"

// SetPostWrite registers a continuation invoked by the Instrument
// middleware once the response is complete.
func SetPostWrite(c *fiber.Ctx, fn PostWriteFunc) {
	c.Locals(postWriteKey, fn)
}

// Instrument records final payload size and end-to-end latency for every
// route and invokes any post-write continuation the handler registered.
func Instrument() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		elapsed := time.Since(start)

		status := c.Response().StatusCode()
		size := len(c.Response().Body())
		telemetry.HTTPRequestLatency.WithLabelValues(c.Route().Path, strconv.Itoa(status)).Observe(elapsed.Seconds())
		telemetry.HTTPResponseBytes.Observe(float64(size))

		if fn, ok := c.Locals(postWriteKey).(PostWriteFunc); ok && fn != nil {
			fn(status, size, elapsed)
		}
		return err
	}
}
