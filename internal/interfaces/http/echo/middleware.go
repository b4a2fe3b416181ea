package echo

import (
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const callerKey = "caller_id"

// CallerVerifier turns a bearer token into a user id.
type CallerVerifier interface {
	Verify(token string) (int64, error)
}

// RequestObserver receives one call per finished request.
type RequestObserver interface {
	ObserveRequest(method, route string, status int, duration time.Duration)
}

// RequireCaller rejects requests without a valid bearer token.
func RequireCaller(verifier CallerVerifier) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get(echo.HeaderAuthorization)
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || strings.TrimSpace(token) == "" {
				return unauthorized(c)
			}

			userID, err := verifier.Verify(strings.TrimSpace(token))
			if err != nil {
				return unauthorized(c)
			}

			c.Set(callerKey, userID)
			return next(c)
		}
	}
}

func callerID(c echo.Context) int64 {
	id, _ := c.Get(callerKey).(int64)
	return id
}

// AccessLog logs each request and feeds the observer when one is set.
func AccessLog(logger *zap.Logger, observer RequestObserver) echo.MiddlewareFunc {
	logger = logger.With(zap.String("component", "http"))

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			elapsed := time.Since(start)
			req := c.Request()
			status := c.Response().Status
			route := c.Path()

			logger.Info("request",
				zap.String("method", req.Method),
				zap.String("route", route),
				zap.String("path", req.URL.Path),
				zap.Int("status", status),
				zap.Duration("latency", elapsed),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)
			if observer != nil {
				observer.ObserveRequest(req.Method, route, status, elapsed)
			}
			return nil
		}
	}
}
