package middleware

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/monoconsulting/medlemsregistret-crm-sub001/pkg/context"
)

const (
	// HeaderUserID identifies the CRM user behind the request
	HeaderUserID = "X-User-ID"
	// HeaderUserName is the display name recorded on import batches
	HeaderUserName = "X-User-Name"
)

func Context() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			req := c.Request()

			requestID := req.Header.Get(echo.HeaderXRequestID)
			if requestID == "" {
				requestID = uuid.New().String()
			}
			c.Response().Header().Set(echo.HeaderXRequestID, requestID)

			ctx := req.Context()
			ctx = context.SetRequestID(ctx, requestID)
			ctx = context.SetMethod(ctx, req.Method)
			ctx = context.SetRoute(ctx, req.URL.Path)
			ctx = context.SetRemoteIP(ctx, c.RealIP())
			ctx = context.SetUserID(ctx, req.Header.Get(HeaderUserID))
			ctx = context.SetUserName(ctx, req.Header.Get(HeaderUserName))

			c.SetRequest(req.WithContext(ctx))

			return next(c)
		}
	}
}
