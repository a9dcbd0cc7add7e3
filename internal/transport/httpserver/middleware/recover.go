package middleware

import (
	"fmt"
	"runtime/debug"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"docquery-service/internal/transport/httpserver/dto"
)

// Recover turns a panicking handler into a 500 response. The panic value
// and stack are logged with the request id.
func Recover(logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) (err error) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}

			logger.Error("panic recovered",
				zap.String("panic", fmt.Sprint(r)),
				zap.ByteString("stack", debug.Stack()),
				zap.String("method", c.Method()),
				zap.String("path", c.Path()),
				zap.String("request_id", c.GetRespHeader(fiber.HeaderXRequestID)),
			)

			err = c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
				Error: "internal server error",
				Code:  "PANIC",
			})
		}()

		return c.Next()
	}
}
