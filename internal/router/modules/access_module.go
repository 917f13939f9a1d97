package modules

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rakaadit/go-rbac-navigation/internal/container"
	handlers "github.com/rakaadit/go-rbac-navigation/internal/interface/http"
	"github.com/rakaadit/go-rbac-navigation/internal/interface/middleware"
	"github.com/rakaadit/go-rbac-navigation/pkg/helpers"
)

// AccessModule wires role management and user-role assignment routes.

type AccessModule struct {
	Handler *handlers.AccessHandler
	JWT     *helpers.JWTManager
}

func NewAccessModule(h *handlers.AccessHandler, jwt *helpers.JWTManager) *AccessModule {
	return &AccessModule{Handler: h, JWT: jwt}
}

func (m *AccessModule) Register(rg *gin.RouterGroup) {
	auth := rg.Group("/")
	auth.Use(middleware.Auth(container.GetRedis(), m.JWT))
	auth.Use(middleware.RateLimit(container.GetRedis(), 120, time.Minute, middleware.KeyByUserID(), nil))
	{
		auth.GET("/roles", m.Handler.ListRoles)
		auth.POST("/roles", m.Handler.CreateRole)
		auth.PUT("/roles/:id", m.Handler.UpdateRole)
		auth.DELETE("/roles/:id", m.Handler.DeleteRole)
		auth.PUT("/users/:id/roles", m.Handler.AssignUserRoles)
	}
}
