package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	"github.com/monoconsulting/medlemsregistret-crm-sub001/pkg/context"
)

// Logger writes one line per request. Paths starting with any of quietPrefixes are only
// logged when they fail.
func Logger(logger ectologger.Logger, quietPrefixes ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			req := c.Request()
			res := c.Response()
			start := time.Now()
			if err = next(c); err != nil {
				c.Error(err)
			}
			elapsed := time.Since(start)

			if res.Status < http.StatusBadRequest && isQuiet(req.URL.Path, quietPrefixes) {
				return nil
			}

			ctx := req.Context()
			userID, _ := context.GetActor(ctx)
			log := logger.WithContext(ctx).WithFields(map[string]any{
				"request_id":    context.GetRequestID(ctx),
				"user_id":       userID,
				"method":        req.Method,
				"route":         c.Path(),
				"uri":           req.RequestURI,
				"status":        res.Status,
				"remote_ip":     c.RealIP(),
				"response_time": elapsed,
				"request_size":  req.ContentLength,
				"response_size": res.Size,
			})
			if res.Status >= http.StatusInternalServerError {
				log.Warn("request failed")
				return nil
			}
			log.Info("request")

			return nil
		}
	}
}

func isQuiet(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}
