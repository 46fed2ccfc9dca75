package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/lfhwnqe/gen-novel-gateway/internal/models"
	"github.com/lfhwnqe/gen-novel-gateway/internal/service"
	"github.com/lfhwnqe/gen-novel-gateway/internal/util"
)

func ErrorHandler(log *zap.SugaredLogger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		// unrecoverable session: cookies are already cleared by the
		// upstream client, this is the single redirect per response
		if errors.Is(err, service.ErrSessionExpired) {
			if wantsHTML(c) {
				c.Redirect(http.StatusFound, models.LoginRoute)
				return
			}
			c.JSON(http.StatusUnauthorized, map[string]string{
				"reason": "session expired",
				"login":  models.LoginRoute,
			})
			return
		}

		var respErr util.ResponseError
		if errors.As(err, &respErr) {
			c.JSON(respErr.Status, map[string]string{"reason": respErr.Msg})
			return
		}

		he, ok := err.(*echo.HTTPError)
		if ok {
			if he.Code == http.StatusInternalServerError {
				log.Errorw("HTTP error", "error", err, "uri", c.Request().RequestURI)
			}
			if err := c.JSON(he.Code, map[string]string{"reason": fmt.Sprintf("%v", he.Message)}); err != nil {
				log.Errorw("failed to write json response", "error", err)
			}
			return
		}

		log.Errorw("unhandled error", "error", err, "uri", c.Request().RequestURI)
		c.JSON(http.StatusInternalServerError, map[string]string{"reason": "internal server error"})
	}
}
