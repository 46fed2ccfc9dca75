package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/lfhwnqe/gen-novel-gateway/internal/models"
	"github.com/lfhwnqe/gen-novel-gateway/internal/service"
	"github.com/lfhwnqe/gen-novel-gateway/internal/storage"
	"github.com/lfhwnqe/gen-novel-gateway/internal/util"
)

// RequireSession is the routing guard for protected dashboard routes. It
// resolves the session-ID cookie against the durable store and stashes the
// session in the echo context. Requests without a live session never reach
// the upstream client.
func RequireSession(sessions *service.SessionManager, log *zap.SugaredLogger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			cookie, err := c.Cookie(sessions.SIDCookieName())
			if err != nil || cookie.Value == "" {
				return redirectToLogin(c)
			}

			session, err := sessions.Load(c.Request().Context(), cookie.Value)
			if err != nil {
				if errors.Is(err, storage.ErrSessionNotFound) {
					sessions.ClearCookies(c)
					return redirectToLogin(c)
				}
				log.Errorw("failed to load session", "error", err)
				return echo.NewHTTPError(http.StatusInternalServerError, "failed to load session")
			}

			c.Set(models.CtxSessionIDKey, cookie.Value)
			c.Set(models.CtxSessionKey, session)

			return next(c)
		}
	}
}

func RateLimiterMiddleware(cfg *util.RateLimiterConfig) echo.MiddlewareFunc {
	store := echomiddleware.NewRateLimiterMemoryStoreWithConfig(echomiddleware.RateLimiterMemoryStoreConfig{
		Rate:      rate.Limit(float64(cfg.Limit) / cfg.Interval.Seconds()),
		Burst:     cfg.Limit,
		ExpiresIn: cfg.BlockTime,
	})
	return echomiddleware.RateLimiter(store)
}

func GetLoggerMiddlewareConfig(a *API) echomiddleware.RequestLoggerConfig {
	return echomiddleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogError:     true,
		LogRequestID: true,

		LogValuesFunc: func(c echo.Context, v echomiddleware.RequestLoggerValues) error {
			fields := []interface{}{
				"method", c.Request().Method,
				"uri", v.URI,
				"status", v.Status,
				"request_id", v.RequestID,
			}
			if v.Error != nil {
				fields = append(fields, zap.Error(v.Error))
				a.log.Errorw("Request", fields...)
			} else {
				a.log.Infow("Request", fields...)
			}
			return nil
		},
	}
}

func redirectToLogin(c echo.Context) error {
	if wantsHTML(c) {
		return c.Redirect(http.StatusFound, models.LoginRoute)
	}
	return c.JSON(http.StatusUnauthorized, map[string]string{
		"reason": "authentication required",
		"login":  models.LoginRoute,
	})
}

func wantsHTML(c echo.Context) bool {
	return strings.Contains(c.Request().Header.Get(echo.HeaderAccept), echo.MIMETextHTML)
}
