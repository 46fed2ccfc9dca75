package controller

import (
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/oapi-codegen/runtime"

	"github.com/lfhwnqe/gen-novel-gateway/internal/models"
	"github.com/lfhwnqe/gen-novel-gateway/internal/service"
	"github.com/lfhwnqe/gen-novel-gateway/internal/util"
)

// Forward proxies the request as-is through the authenticated upstream
// client. Token refresh and replay happen below; the handler only moves
// bytes.
func (ct *Controller) Forward(c echo.Context) error {
	return ct.forward(c, c.QueryParams())
}

// List validates the pagination triple before forwarding, so malformed
// paging never reaches the backend.
func (ct *Controller) List(c echo.Context) error {
	page, err := bindPageQuery(c)
	if err != nil {
		return err
	}

	query := c.QueryParams()
	query.Set("page", strconv.Itoa(page.Page))
	query.Set("pageSize", strconv.Itoa(page.PageSize))
	if page.Search != "" {
		query.Set("search", page.Search)
	}

	return ct.forward(c, query)
}

func (ct *Controller) forward(c echo.Context, query url.Values) error {
	sid := c.Get(models.CtxSessionIDKey).(string)

	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "failed to read request body")
	}

	resp, err := ct.upstream.Do(c.Request().Context(), sid, &service.UpstreamRequest{
		Method:  c.Request().Method,
		Path:    c.Request().URL.Path,
		Query:   query,
		Header:  forwardableHeader(c.Request().Header),
		Body:    body,
		Cookies: c,
	})
	if err != nil {
		if errors.Is(err, service.ErrSessionExpired) {
			return err
		}
		ct.log.Errorw("upstream request failed", "error", err, "uri", c.Request().RequestURI)
		return util.NewResponseError(http.StatusBadGateway, "backend unreachable")
	}
	defer resp.Body.Close()

	header := c.Response().Header()
	for name, values := range resp.Header {
		if skipResponseHeader(name) {
			continue
		}
		for _, v := range values {
			header.Add(name, v)
		}
	}
	c.Response().WriteHeader(resp.StatusCode)
	if _, err := io.Copy(c.Response(), resp.Body); err != nil {
		ct.log.Errorw("failed to stream backend response", "error", err)
	}
	return nil
}

func bindPageQuery(c echo.Context) (*models.PageQuery, error) {
	page := models.PageQuery{Page: models.DefaultPage, PageSize: models.DefaultPageSize}
	params := c.QueryParams()

	if err := runtime.BindQueryParameter("form", true, false, "page", params, &page.Page); err != nil {
		return nil, util.NewResponseError(http.StatusBadRequest, "invalid page: %v", err)
	}
	if err := runtime.BindQueryParameter("form", true, false, "pageSize", params, &page.PageSize); err != nil {
		return nil, util.NewResponseError(http.StatusBadRequest, "invalid pageSize: %v", err)
	}
	if err := runtime.BindQueryParameter("form", true, false, "search", params, &page.Search); err != nil {
		return nil, util.NewResponseError(http.StatusBadRequest, "invalid search: %v", err)
	}

	if page.Page < models.DefaultPage {
		return nil, util.NewResponseError(http.StatusBadRequest, "page must be >= 1")
	}
	if page.PageSize < 1 || page.PageSize > models.MaxPageSize {
		return nil, util.NewResponseError(http.StatusBadRequest, "pageSize must be between 1 and %d", models.MaxPageSize)
	}

	return &page, nil
}

// gateway-owned and hop-by-hop headers never cross the proxy
var skipRequestHeaders = map[string]struct{}{
	"Cookie":              {},
	"Connection":          {},
	"Keep-Alive":          {},
	"Proxy-Authenticate":  {},
	"Proxy-Authorization": {},
	"Te":                  {},
	"Trailer":             {},
	"Transfer-Encoding":   {},
	"Upgrade":             {},
	"Content-Length":      {},
	"Accept-Encoding":     {},
}

func forwardableHeader(src http.Header) http.Header {
	dst := http.Header{}
	for name, values := range src {
		if _, skip := skipRequestHeaders[http.CanonicalHeaderKey(name)]; skip {
			continue
		}
		for _, v := range values {
			dst.Add(name, v)
		}
	}
	return dst
}

func skipResponseHeader(name string) bool {
	switch http.CanonicalHeaderKey(name) {
	case "Set-Cookie", "Connection", "Keep-Alive", "Transfer-Encoding", "Trailer", "Upgrade", "Content-Length":
		return true
	}
	return false
}
