package controller

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/lfhwnqe/gen-novel-gateway/internal/service"
	"github.com/lfhwnqe/gen-novel-gateway/internal/util"
)

type Controller struct {
	log         *zap.SugaredLogger
	sessions    *service.SessionManager
	upstream    *service.UpstreamClient
	upstreamCfg *util.UpstreamConfig
}

func NewController(
	log *zap.SugaredLogger,
	sessions *service.SessionManager,
	upstream *service.UpstreamClient,
	upstreamCfg *util.UpstreamConfig,
) *Controller {
	return &Controller{
		log:         log,
		sessions:    sessions,
		upstream:    upstream,
		upstreamCfg: upstreamCfg,
	}
}

// novelResources are the dashboard collections proxied to the backend.
var novelResources = []string{
	"works",
	"characters",
	"relationships",
	"outlines",
	"worldbuilding",
	"generation-tasks",
}

// RegisterRoutes wires the auth surface and the proxied resource groups.
// The guard is the session middleware; the validator checks auth-route
// bodies against the embedded OpenAPI document.
func (ct *Controller) RegisterRoutes(e *echo.Echo, guard echo.MiddlewareFunc, authValidator echo.MiddlewareFunc) {
	auth := e.Group("/auth/v1")
	if authValidator != nil {
		auth.Use(authValidator)
	}
	auth.POST("/login", ct.Login)
	auth.POST("/logout", ct.Logout, guard)
	auth.GET("/me", ct.Me, guard)

	api := e.Group("/api/v1", guard)
	for _, resource := range novelResources {
		g := api.Group("/novels/" + resource)
		g.GET("", ct.List)
		g.POST("", ct.Forward)
		g.Any("/*", ct.Forward)
	}
	api.POST("/novels/import", ct.Forward)
}

// (GET /healthz).
func (ct *Controller) CheckServer(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, "ok")
}
