package middleware

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/mdouchement/logger"
)

// Logger is a middleware that logs every request with its status and latency.
func Logger(log logger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			start := time.Now()

			err = next(c)
			if err != nil {
				c.Error(err)
			}

			req := c.Request()
			res := c.Response()
			log.WithPrefix("[http]").Infof("%s %s -> %d (%s)",
				req.Method, req.RequestURI, res.Status, time.Since(start))
			return nil
		}
	}
}
