package controller_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lfhwnqe/gen-novel-gateway/internal/api"
	"github.com/lfhwnqe/gen-novel-gateway/internal/controller"
	"github.com/lfhwnqe/gen-novel-gateway/internal/models"
	"github.com/lfhwnqe/gen-novel-gateway/internal/service"
	"github.com/lfhwnqe/gen-novel-gateway/internal/storage"
	"github.com/lfhwnqe/gen-novel-gateway/internal/storage/memory"
	"github.com/lfhwnqe/gen-novel-gateway/internal/util"
)

func newGateway(t *testing.T, backend http.Handler) (*echo.Echo, *service.SessionManager) {
	t.Helper()

	srv := httptest.NewServer(backend)
	t.Cleanup(srv.Close)

	log := zap.NewNop().Sugar()
	sessions := service.NewSessionManager(memory.NewSessionRepository(log), &util.SessionConfig{
		Backend:         "memory",
		SessionTTL:      time.Hour,
		AccessCookieTTL: 15 * time.Minute,
		SIDCookieName:   "ng_sid",
		TokenCookieName: "ng_access_token",
	}, log)

	upstreamCfg := &util.UpstreamConfig{
		BaseURL:     srv.URL,
		LoginPath:   "/api/v1/auth/login",
		LogoutPath:  "/api/v1/auth/logout",
		RefreshPath: "/api/v1/auth/refresh",
		Timeout:     5 * time.Second,
	}
	upstream, err := service.NewUpstreamClient(upstreamCfg, sessions, nil, nil, log)
	require.NoError(t, err)

	ct := controller.NewController(log, sessions, upstream, upstreamCfg)

	e := echo.New()
	e.HTTPErrorHandler = api.ErrorHandler(log)
	ct.RegisterRoutes(e, api.RequireSession(sessions, log), nil)

	return e, sessions
}

func seedSession(t *testing.T, sessions *service.SessionManager) string {
	t.Helper()
	sid, err := sessions.Create(context.Background(), models.Session{
		AccessToken:  "T1",
		RefreshToken: "R1",
		User:         models.User{UserID: "u1", Username: "author", Email: "author@example.com", Role: "admin"},
	}, nil)
	require.NoError(t, err)
	return sid
}

func writeLoginEnvelope(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"code":    0,
		"message": "ok",
		"data": map[string]interface{}{
			"accessToken":  "T1",
			"refreshToken": "R1",
			"user": map[string]string{
				"userId":   "u1",
				"username": "author",
				"email":    "author@example.com",
				"role":     "admin",
			},
		},
	})
}

func TestLoginCreatesSession(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/auth/login", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)

		var creds models.LoginRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&creds))
		assert.Equal(t, "author", creds.Username)
		assert.Equal(t, "secret", creds.Password)

		writeLoginEnvelope(w)
	})
	e, sessions := newGateway(t, mux)

	req := httptest.NewRequest(http.MethodPost, "/auth/v1/login",
		strings.NewReader(`{"username":"author","password":"secret"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var me models.MeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &me))
	assert.Equal(t, "u1", me.User.UserID)

	var sid, token string
	for _, cookie := range rec.Result().Cookies() {
		switch cookie.Name {
		case "ng_sid":
			sid = cookie.Value
		case "ng_access_token":
			token = cookie.Value
		}
	}
	require.NotEmpty(t, sid)
	assert.Equal(t, "T1", token)

	stored, err := sessions.Load(context.Background(), sid)
	require.NoError(t, err)
	assert.Equal(t, "T1", stored.AccessToken)
	assert.Equal(t, "R1", stored.RefreshToken)
	assert.Equal(t, "u1", stored.User.UserID)
}

func TestLoginRequiresCredentials(t *testing.T) {
	var backendCalls int32
	e, _ := newGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&backendCalls, 1)
	}))

	req := httptest.NewRequest(http.MethodPost, "/auth/v1/login",
		strings.NewReader(`{"username":"author"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.EqualValues(t, 0, atomic.LoadInt32(&backendCalls))
}

func TestLoginRelaysBackendRejection(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/auth/login", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"code":401,"message":"invalid credentials"}`))
	})
	e, _ := newGateway(t, mux)

	req := httptest.NewRequest(http.MethodPost, "/auth/v1/login",
		strings.NewReader(`{"username":"author","password":"wrong"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid credentials")

	// no session is minted on a rejected login
	for _, cookie := range rec.Result().Cookies() {
		assert.NotEqual(t, "ng_sid", cookie.Name)
	}
}

func TestListForwardsNormalizedPaging(t *testing.T) {
	var gotQuery, gotAuth string
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/novels/works", func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Total-Count", "42")
		w.Write([]byte(`{"code":0,"data":{"items":[]}}`))
	})
	e, sessions := newGateway(t, mux)
	sid := seedSession(t, sessions)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/novels/works?page=2&search=dragon", nil)
	req.AddCookie(&http.Cookie{Name: "ng_sid", Value: sid})
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Bearer T1", gotAuth)
	assert.Equal(t, "42", rec.Header().Get("X-Total-Count"))

	query := parseQuery(t, gotQuery)
	assert.Equal(t, "2", query.Get("page"))
	assert.Equal(t, "20", query.Get("pageSize"))
	assert.Equal(t, "dragon", query.Get("search"))
}

func TestListRejectsOversizedPageSize(t *testing.T) {
	var backendCalls int32
	e, sessions := newGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&backendCalls, 1)
	}))
	sid := seedSession(t, sessions)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/novels/works?pageSize=500", nil)
	req.AddCookie(&http.Cookie{Name: "ng_sid", Value: sid})
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.EqualValues(t, 0, atomic.LoadInt32(&backendCalls))
}

func TestForwardProxiesSubpaths(t *testing.T) {
	var gotPath, gotMethod, gotBody string
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/novels/characters/", func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotMethod = r.Method
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"code":0}`))
	})
	e, sessions := newGateway(t, mux)
	sid := seedSession(t, sessions)

	req := httptest.NewRequest(http.MethodPut, "/api/v1/novels/characters/abc123",
		strings.NewReader(`{"name":"Mira"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.AddCookie(&http.Cookie{Name: "ng_sid", Value: sid})
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "/api/v1/novels/characters/abc123", gotPath)
	assert.Equal(t, http.MethodPut, gotMethod)
	assert.Equal(t, `{"name":"Mira"}`, gotBody)
}

func TestForwardRequiresSession(t *testing.T) {
	e, _ := newGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("backend must not be reached without a session")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/novels/works", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogoutClearsSession(t *testing.T) {
	var backendLogout int32
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/auth/logout", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&backendLogout, 1)
		w.WriteHeader(http.StatusNoContent)
	})
	e, sessions := newGateway(t, mux)
	sid := seedSession(t, sessions)

	req := httptest.NewRequest(http.MethodPost, "/auth/v1/logout", nil)
	req.AddCookie(&http.Cookie{Name: "ng_sid", Value: sid})
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.EqualValues(t, 1, atomic.LoadInt32(&backendLogout))

	_, err := sessions.Load(context.Background(), sid)
	require.ErrorIs(t, err, storage.ErrSessionNotFound)

	cleared := map[string]bool{}
	for _, cookie := range rec.Result().Cookies() {
		if cookie.MaxAge < 0 {
			cleared[cookie.Name] = true
		}
	}
	assert.True(t, cleared["ng_sid"])
	assert.True(t, cleared["ng_access_token"])
}

func TestLogoutAllRevokesEverySession(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/auth/logout", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	e, sessions := newGateway(t, mux)
	sid := seedSession(t, sessions)
	other := seedSession(t, sessions)

	req := httptest.NewRequest(http.MethodPost, "/auth/v1/logout?all=true", nil)
	req.AddCookie(&http.Cookie{Name: "ng_sid", Value: sid})
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)

	_, err := sessions.Load(context.Background(), sid)
	require.ErrorIs(t, err, storage.ErrSessionNotFound)
	_, err = sessions.Load(context.Background(), other)
	require.ErrorIs(t, err, storage.ErrSessionNotFound)
}

func TestMeReturnsSessionUser(t *testing.T) {
	e, sessions := newGateway(t, http.NewServeMux())
	sid := seedSession(t, sessions)

	req := httptest.NewRequest(http.MethodGet, "/auth/v1/me", nil)
	req.AddCookie(&http.Cookie{Name: "ng_sid", Value: sid})
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var me models.MeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &me))
	assert.Equal(t, "u1", me.User.UserID)
	assert.Equal(t, "admin", me.User.Role)
}

func parseQuery(t *testing.T, raw string) url.Values {
	t.Helper()
	values, err := url.ParseQuery(raw)
	require.NoError(t, err)
	return values
}

func TestGetSwagger(t *testing.T) {
	doc, err := controller.GetSwagger()
	require.NoError(t, err)
	require.NotNil(t, doc.Paths.Find("/auth/v1/login"))
	require.NotNil(t, doc.Paths.Find("/auth/v1/logout"))
	require.NotNil(t, doc.Paths.Find("/auth/v1/me"))
}
