package controller

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/lfhwnqe/gen-novel-gateway/internal/models"
	"github.com/lfhwnqe/gen-novel-gateway/internal/service"
	"github.com/lfhwnqe/gen-novel-gateway/internal/util"
)

// Login forwards credentials to the backend and, on success, mints a gateway
// session: durable record plus cookie mirror in one write.
func (ct *Controller) Login(c echo.Context) error {
	var req models.LoginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid login payload")
	}
	if req.Username == "" || req.Password == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "username and password are required")
	}

	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal login request: %w", err)
	}

	header := http.Header{}
	header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)

	resp, err := ct.upstream.DoPublic(c.Request().Context(), &service.UpstreamRequest{
		Method: http.MethodPost,
		Path:   ct.upstreamCfg.LoginPath,
		Header: header,
		Body:   body,
	})
	if err != nil {
		ct.log.Errorw("login request failed", "error", err)
		return util.NewResponseError(http.StatusBadGateway, "backend unreachable")
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return relayStatus(c, resp)
	}

	login, err := service.DecodeLoginPayload(resp.Body)
	if err != nil {
		return util.NewResponseError(http.StatusBadGateway, "unexpected login response: %v", err)
	}

	session := models.Session{
		AccessToken:  login.AccessToken,
		RefreshToken: login.RefreshToken,
		User:         login.User,
	}
	sid, err := ct.sessions.Create(c.Request().Context(), session, c)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}

	expiry, _ := service.AccessTokenExpiry(login.AccessToken)
	ct.log.Infow("user logged in", "sid", sid, "userID", login.User.UserID)

	return c.JSON(http.StatusOK, models.MeResponse{User: login.User, AccessTokenExpiresAt: expiry})
}

// Logout revokes the current session; ?all=true revokes every session of the
// user. The backend revocation is best effort.
func (ct *Controller) Logout(c echo.Context) error {
	sid := c.Get(models.CtxSessionIDKey).(string)
	session := c.Get(models.CtxSessionKey).(*models.Session)
	ctx := c.Request().Context()

	if resp, err := ct.upstream.Do(ctx, sid, &service.UpstreamRequest{
		Method: http.MethodPost,
		Path:   ct.upstreamCfg.LogoutPath,
	}); err == nil {
		resp.Body.Close()
	}

	if c.QueryParam("all") == "true" {
		if err := ct.sessions.ClearAllForUser(ctx, session.User.UserID); err != nil {
			return fmt.Errorf("revoke user sessions: %w", err)
		}
	}

	if err := ct.sessions.Clear(ctx, sid, c); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}

	return c.NoContent(http.StatusNoContent)
}

// Me returns the resolved user and the access-token expiry the dashboard
// uses to schedule proactive refreshes.
func (ct *Controller) Me(c echo.Context) error {
	session := c.Get(models.CtxSessionKey).(*models.Session)

	expiry, _ := service.AccessTokenExpiry(session.AccessToken)
	return c.JSON(http.StatusOK, models.MeResponse{User: session.User, AccessTokenExpiresAt: expiry})
}

func relayStatus(c echo.Context, resp *http.Response) error {
	contentType := resp.Header.Get(echo.HeaderContentType)
	if contentType == "" {
		contentType = echo.MIMEApplicationJSON
	}
	return c.Stream(resp.StatusCode, contentType, resp.Body)
}
