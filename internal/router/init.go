package router

import (
	"github.com/rakaadit/go-rbac-navigation/internal/application"
	"github.com/rakaadit/go-rbac-navigation/internal/container"
	infracache "github.com/rakaadit/go-rbac-navigation/internal/infrastructure/cache"
	pginfra "github.com/rakaadit/go-rbac-navigation/internal/infrastructure/postgres"
	handlers "github.com/rakaadit/go-rbac-navigation/internal/interface/http"
	"github.com/rakaadit/go-rbac-navigation/internal/router/modules"
)

// InitModules builds the dependency graph from the container singletons
// and registers every feature module with the router registry. Called
// once during startup.
func InitModules(r *Registry) {
	cfg := container.GetConfig()
	logger := container.GetLogger()
	pool := container.GetPGPool()

	entries := pginfra.NewEntryRepository(pool)
	roles := pginfra.NewRoleRepository(pool)
	users := pginfra.NewUserRepository(pool)
	viewCache := infracache.NewViewCache(container.GetRedis())
	invalidator := application.NewInvalidator(viewCache, users, roles, logger)

	var events application.EventPublisher
	if pub := container.GetRabbitPub(); pub != nil {
		events = pub
	}

	navSvc := application.NewNavigationService(
		entries, roles, viewCache, invalidator, events, logger,
		container.GetES(), cfg.ESEntriesIndex, cfg.NavViewTTL,
	)
	accessSvc := application.NewAccessService(roles, users, entries, invalidator, events, logger)
	authSvc := application.NewAuthService(users, container.GetJWT(), container.GetRedis(), logger)

	navHandler := handlers.NewNavigationHandler(navSvc, logger)
	accessHandler := handlers.NewAccessHandler(accessSvc, logger)
	authHandler := handlers.NewAuthHandler(authSvc, logger, cfg.CookieDomain, cfg.CookieSecure)

	r.Add(modules.NewAuthModule(authHandler, container.GetJWT()))
	r.Add(modules.NewNavigationModule(navHandler, container.GetJWT()))
	r.Add(modules.NewAccessModule(accessHandler, container.GetJWT()))
	if cfg.DebugMetricsEnabled {
		r.Add(modules.NewDebugModule())
	}
}
