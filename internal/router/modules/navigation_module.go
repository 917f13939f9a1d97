package modules

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rakaadit/go-rbac-navigation/internal/container"
	handlers "github.com/rakaadit/go-rbac-navigation/internal/interface/http"
	"github.com/rakaadit/go-rbac-navigation/internal/interface/middleware"
	"github.com/rakaadit/go-rbac-navigation/pkg/helpers"
)

// NavigationModule wires the navigation routes.
// Read path: GET /api/navigation (per-user, cache-checked).
// Admin paths: entry CRUD, the sort tree, the reorder batch and
// per-entry role grants.

type NavigationModule struct {
	Handler *handlers.NavigationHandler
	JWT     *helpers.JWTManager
}

func NewNavigationModule(h *handlers.NavigationHandler, jwt *helpers.JWTManager) *NavigationModule {
	return &NavigationModule{Handler: h, JWT: jwt}
}

func (m *NavigationModule) Register(rg *gin.RouterGroup) {
	auth := rg.Group("/")
	auth.Use(middleware.Auth(container.GetRedis(), m.JWT))
	auth.Use(
		middleware.RateLimit(container.GetRedis(), 300, time.Minute, middleware.KeyByIP(), nil),
		middleware.RateLimit(container.GetRedis(), 120, time.Minute, middleware.KeyByUserID(), nil),
	)
	{
		auth.GET("/navigation", m.Handler.Render)
		auth.GET("/navigation/entries", m.Handler.List)
		auth.GET("/navigation/tree", m.Handler.Tree)
		auth.GET("/navigation/search", m.Handler.Search)
		auth.POST("/navigation/entries", m.Handler.Create)
		auth.PUT("/navigation/entries/:id", m.Handler.Update)
		auth.DELETE("/navigation/entries/:id", m.Handler.Delete)
		auth.PUT("/navigation/entries/:id/roles", m.Handler.AssignRoles)
		auth.PUT("/navigation/order", m.Handler.ApplyOrder)
	}
}
