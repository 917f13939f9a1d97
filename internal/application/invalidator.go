package application

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rakaadit/go-rbac-navigation/internal/domain/entity"
	repo "github.com/rakaadit/go-rbac-navigation/internal/domain/repository"
)

// ViewCache is the per-user rendered-view cache. Implementations must
// guarantee that Evict wins any race with a concurrent Put: a Put
// carrying a generation older than the current one is discarded.
type ViewCache interface {
	Get(ctx context.Context, userID string) (entity.RenderedView, int64, bool, error)
	Generation(ctx context.Context, userID string) (int64, error)
	Put(ctx context.Context, userID string, view entity.RenderedView, gen int64, ttl time.Duration) error
	Evict(ctx context.Context, userID string) error
	EvictAll(ctx context.Context, userIDs []string) error
}

// Invalidator maps a committed mutation to the set of users whose
// cached view it may have changed, and evicts them. It is only called
// after the underlying write commits; a failed write evicts nothing.
type Invalidator struct {
	Cache  ViewCache
	Users  repo.UserRepository
	Roles  repo.RoleRepository
	Logger *logrus.Logger
}

func NewInvalidator(cache ViewCache, users repo.UserRepository, roles repo.RoleRepository, logger *logrus.Logger) *Invalidator {
	return &Invalidator{Cache: cache, Users: users, Roles: roles, Logger: logger}
}

// EvictEveryone drops every known user's view. Entry-level mutations
// can alter tree topology shared across roles, so the coarse strategy
// is used rather than joining through entry_roles.
func (i *Invalidator) EvictEveryone(ctx context.Context) error {
	ids, err := i.Users.ListIDs(ctx)
	if err != nil {
		return err
	}
	if err := i.Cache.EvictAll(ctx, ids); err != nil {
		if i.Logger != nil {
			i.Logger.WithError(err).Error("cache evict-all failed")
		}
		return err
	}
	return nil
}

// EvictRoleHolders drops the view of every user holding any of the
// given roles.
func (i *Invalidator) EvictRoleHolders(ctx context.Context, roleIDs []string) error {
	if len(roleIDs) == 0 {
		return nil
	}
	ids, err := i.Roles.UserIDsWithRoles(ctx, roleIDs)
	if err != nil {
		return err
	}
	if err := i.Cache.EvictAll(ctx, ids); err != nil {
		if i.Logger != nil {
			i.Logger.WithError(err).WithField("roles", roleIDs).Error("cache evict failed")
		}
		return err
	}
	return nil
}

// EvictUsers drops the views of an explicit user set, typically one
// captured before a cascading delete removed the relation rows.
func (i *Invalidator) EvictUsers(ctx context.Context, userIDs []string) error {
	if err := i.Cache.EvictAll(ctx, userIDs); err != nil {
		if i.Logger != nil {
			i.Logger.WithError(err).Error("cache evict failed")
		}
		return err
	}
	return nil
}

// EvictUser drops a single user's view.
func (i *Invalidator) EvictUser(ctx context.Context, userID string) error {
	if err := i.Cache.Evict(ctx, userID); err != nil {
		if i.Logger != nil {
			i.Logger.WithError(err).WithField("user_id", userID).Error("cache evict failed")
		}
		return err
	}
	return nil
}
