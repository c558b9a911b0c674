package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"

	"github.com/campaignforge/telemetry/internal/requestscope"
)

// Scope installs the request scope into the handler context. Traces ended
// with c.UserContext() are persisted; traces ended outside a request are not.
// It must run after RequestID.
func Scope() fiber.Handler {
	return func(c *fiber.Ctx) error {
		scope := scopeFromRequest(c.Context(), GetRequestID(c))
		c.SetUserContext(requestscope.With(c.UserContext(), scope))
		return c.Next()
	}
}

func scopeFromRequest(rc *fasthttp.RequestCtx, requestID string) *requestscope.Scope {
	return &requestscope.Scope{
		RequestID: requestID,
		Method:    string(rc.Method()),
		Path:      string(rc.Path()),
		StartedAt: rc.Time(),
	}
}
