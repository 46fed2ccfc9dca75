package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/lfhwnqe/gen-novel-gateway/internal/metrics"
	"github.com/lfhwnqe/gen-novel-gateway/internal/models"
	"github.com/lfhwnqe/gen-novel-gateway/internal/storage"
	"github.com/lfhwnqe/gen-novel-gateway/internal/util"
)

// ErrSessionExpired means the session could not be recovered: the refresh
// endpoint rejected the stored refresh token, returned garbage, or a freshly
// replayed request came back 401 again. Both storage locations are already
// cleared when Do returns this error; the HTTP layer turns it into a login
// redirect.
var ErrSessionExpired = errors.New("session expired")

const authorizationHeader = "Authorization"

// UpstreamRequest describes one request to the novels backend. The body is
// held in memory so the request can be re-issued once after a token refresh.
type UpstreamRequest struct {
	Method string
	Path   string
	Query  url.Values
	Header http.Header
	Body   []byte

	// Cookies, when set, receives the refreshed (or cleared) credential
	// mirror for the browser response this request belongs to.
	Cookies CookieSink
}

// UpstreamClient issues requests with the session's bearer token attached
// and transparently recovers from an expired access token: on 401 it runs a
// single-flight refresh per session, replays the original request exactly
// once, and on unrecoverable failure clears the session.
type UpstreamClient struct {
	httpClient  *http.Client
	baseURL     *url.URL
	refreshPath string
	timeout     time.Duration
	sessions    *SessionManager
	webhooks    *WebhookService
	metrics     *metrics.Metrics
	refresh     singleflight.Group
	log         *zap.SugaredLogger
}

func NewUpstreamClient(
	cfg *util.UpstreamConfig,
	sessions *SessionManager,
	webhooks *WebhookService,
	m *metrics.Metrics,
	log *zap.SugaredLogger,
) (*UpstreamClient, error) {
	baseURL, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse backend base url: %w", err)
	}

	return &UpstreamClient{
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		baseURL:     baseURL,
		refreshPath: cfg.RefreshPath,
		timeout:     cfg.Timeout,
		sessions:    sessions,
		webhooks:    webhooks,
		metrics:     m,
		log:         log,
	}, nil
}

// Do sends req on behalf of the session sid.
//
// Responses other than 401 pass through verbatim; the client has no opinion
// on business-level errors and never retries transport failures. A 401
// triggers the refresh-and-replay protocol. The caller gets either the
// original response, the replay's response, or ErrSessionExpired.
func (c *UpstreamClient) Do(ctx context.Context, sid string, req *UpstreamRequest) (*http.Response, error) {
	session, err := c.sessions.Load(ctx, sid)
	if err != nil {
		if errors.Is(err, storage.ErrSessionNotFound) {
			return nil, ErrSessionExpired
		}
		return nil, err
	}

	resp, err := c.send(ctx, req, session.AccessToken)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}
	if req.Header.Get(authorizationHeader) != "" {
		// caller-managed credential, not ours to refresh
		return resp, nil
	}
	resp.Body.Close()

	refreshed, err := c.refreshSession(ctx, sid)
	if err != nil {
		if req.Cookies != nil {
			c.sessions.ClearCookies(req.Cookies)
		}
		return nil, err
	}
	if req.Cookies != nil {
		c.sessions.WriteCookies(req.Cookies, sid, refreshed)
	}

	replay, err := c.send(ctx, req, refreshed.AccessToken)
	if err != nil {
		return nil, err
	}
	if replay.StatusCode == http.StatusUnauthorized {
		// a second 401 right after a successful refresh is terminal;
		// re-entering the refresh path here would loop forever against
		// a backend that always rejects
		replay.Body.Close()
		c.forceLogout(ctx, sid, refreshed, "replayed request unauthorized")
		if req.Cookies != nil {
			c.sessions.ClearCookies(req.Cookies)
		}
		return nil, ErrSessionExpired
	}
	return replay, nil
}

// DoPublic forwards a request without attaching credentials. Used for login.
func (c *UpstreamClient) DoPublic(ctx context.Context, req *UpstreamRequest) (*http.Response, error) {
	return c.send(ctx, req, "")
}

func (c *UpstreamClient) send(ctx context.Context, req *UpstreamRequest, token string) (*http.Response, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	u := c.baseURL.JoinPath(req.Path)
	if len(req.Query) > 0 {
		u.RawQuery = req.Query.Encode()
	}

	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("build upstream request: %w", err)
	}
	for name, values := range req.Header {
		for _, v := range values {
			httpReq.Header.Add(name, v)
		}
	}
	if httpReq.Header.Get(authorizationHeader) == "" && token != "" {
		httpReq.Header.Set(authorizationHeader, "Bearer "+token)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	c.metrics.ObserveUpstream(method, resp.StatusCode)
	return resp, nil
}

// refreshSession funnels all concurrently failing requests of one session
// into a single refresh call. Waiters share the settled result; the
// singleflight key is dropped once the episode settles, so a later 401
// starts a fresh episode.
func (c *UpstreamClient) refreshSession(ctx context.Context, sid string) (*models.Session, error) {
	v, err, _ := c.refresh.Do(sid, func() (interface{}, error) {
		// the episode outlives any single caller; detach from its context
		refreshCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		defer cancel()
		return c.doRefresh(refreshCtx, sid)
	})
	if err != nil {
		return nil, err
	}
	return v.(*models.Session), nil
}

func (c *UpstreamClient) doRefresh(ctx context.Context, sid string) (*models.Session, error) {
	session, err := c.sessions.Load(ctx, sid)
	if err != nil {
		if errors.Is(err, storage.ErrSessionNotFound) {
			return nil, ErrSessionExpired
		}
		return nil, err
	}
	if session.RefreshToken == "" {
		c.metrics.RefreshFailed()
		c.forceLogout(ctx, sid, session, "no refresh token stored")
		return nil, ErrSessionExpired
	}

	payload, err := json.Marshal(models.RefreshRequest{RefreshToken: session.RefreshToken})
	if err != nil {
		return nil, fmt.Errorf("marshal refresh request: %w", err)
	}

	u := c.baseURL.JoinPath(c.refreshPath)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build refresh request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	// the refresh endpoint is never retried: one failed call ends the episode
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.metrics.RefreshFailed()
		c.forceLogout(ctx, sid, session, "refresh request failed")
		return nil, fmt.Errorf("refresh request: %v: %w", err, ErrSessionExpired)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		c.metrics.RefreshFailed()
		c.forceLogout(ctx, sid, session, fmt.Sprintf("refresh rejected with status %d", resp.StatusCode))
		return nil, fmt.Errorf("refresh rejected with status %d: %w", resp.StatusCode, ErrSessionExpired)
	}

	pair, err := DecodeTokenPair(resp.Body)
	if err != nil {
		c.metrics.RefreshFailed()
		c.forceLogout(ctx, sid, session, "refresh payload malformed")
		return nil, fmt.Errorf("refresh payload: %v: %w", err, ErrSessionExpired)
	}

	updated := *session
	updated.AccessToken = pair.AccessToken
	if pair.RefreshToken != "" {
		updated.RefreshToken = pair.RefreshToken
	}
	updated.UpdatedAt = time.Now()

	// durable write only; every waiting caller mirrors its own cookies
	if err := c.sessions.Save(ctx, sid, updated, nil); err != nil {
		return nil, err
	}

	c.metrics.RefreshSucceeded()
	c.log.Debugw("access token refreshed", "sid", sid, "userID", updated.User.UserID)
	return &updated, nil
}

// forceLogout ends a refresh episode: the durable session is removed
// (idempotently) and the ops webhook is notified. Cookie clearing happens
// per-response in the callers holding a sink.
func (c *UpstreamClient) forceLogout(ctx context.Context, sid string, session *models.Session, reason string) {
	if err := c.sessions.Clear(ctx, sid, nil); err != nil {
		c.log.Errorw("failed to clear session", "sid", sid, "error", err)
	}
	c.metrics.ForcedLogout()
	c.log.Warnw("session revoked", "sid", sid, "userID", session.User.UserID, "reason", reason)

	if c.webhooks != nil {
		c.webhooks.NotifySessionRevoked(context.WithoutCancel(ctx), map[string]interface{}{
			"user_id":    session.User.UserID,
			"username":   session.User.Username,
			"reason":     reason,
			"revoked_at": time.Now().UTC().Format(time.RFC3339),
		})
	}
}
