package application

import (
	"context"
	"errors"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/rakaadit/go-rbac-navigation/internal/domain/entity"
	repo "github.com/rakaadit/go-rbac-navigation/internal/domain/repository"
)

// AccessService manages roles and the user↔role relation, with the
// precise invalidation fan-out each mutation requires.
type AccessService struct {
	Roles       repo.RoleRepository
	Users       repo.UserRepository
	Entries     repo.EntryRepository
	Invalidator *Invalidator
	Events      EventPublisher
	Logger      *logrus.Logger
}

func NewAccessService(roles repo.RoleRepository, users repo.UserRepository, entries repo.EntryRepository, inv *Invalidator, events EventPublisher, logger *logrus.Logger) *AccessService {
	return &AccessService{Roles: roles, Users: users, Entries: entries, Invalidator: inv, Events: events, Logger: logger}
}

// RoleInput carries the writable attributes of a role plus the entries
// it should grant.
type RoleInput struct {
	Name     string
	Color    string
	EntryIDs []string
}

func (s *AccessService) ListRoles(ctx context.Context, search string) ([]*entity.Role, error) {
	return s.Roles.List(ctx, search)
}

func (s *AccessService) CreateRole(ctx context.Context, in RoleInput) (*entity.Role, error) {
	if err := s.validateRole(ctx, in); err != nil {
		return nil, err
	}
	r := &entity.Role{Name: strings.TrimSpace(in.Name), Color: in.Color}
	if err := s.Roles.Create(ctx, r); err != nil {
		if errors.Is(err, repo.ErrConflict) {
			return nil, ErrConflict
		}
		return nil, err
	}
	if len(in.EntryIDs) > 0 {
		if err := s.Roles.SyncRoleEntries(ctx, r.ID, in.EntryIDs); err != nil {
			// Don't leave a half-created role behind when the grant
			// sync fails.
			if delErr := s.Roles.Delete(ctx, r.ID); delErr != nil && s.Logger != nil {
				s.Logger.WithError(delErr).WithField("role_id", r.ID).Error("rollback of role create failed")
			}
			return nil, err
		}
	}
	// A brand new role has no holders yet, so no views can be stale.
	publishAudit(ctx, s.Events, s.Logger, AuditEvent{Action: "role.created", EntityID: r.ID, Detail: r.Name})
	return r, nil
}

func (s *AccessService) UpdateRole(ctx context.Context, id string, in RoleInput) (*entity.Role, error) {
	r, err := s.Roles.GetByID(ctx, id)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrRoleNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := s.validateRole(ctx, in); err != nil {
		return nil, err
	}
	r.Name = strings.TrimSpace(in.Name)
	r.Color = in.Color
	if err := s.Roles.Update(ctx, r); err != nil {
		if errors.Is(err, repo.ErrConflict) {
			return nil, ErrConflict
		}
		return nil, err
	}
	if err := s.Roles.SyncRoleEntries(ctx, id, in.EntryIDs); err != nil {
		return nil, err
	}
	if err := s.Invalidator.EvictRoleHolders(ctx, []string{id}); err != nil {
		return nil, err
	}
	publishAudit(ctx, s.Events, s.Logger, AuditEvent{Action: "role.updated", EntityID: id, Detail: r.Name})
	return r, nil
}

// DeleteRole removes a role and evicts every user who held it. The
// holder set is captured before the delete cascades through user_roles.
func (s *AccessService) DeleteRole(ctx context.Context, id string) error {
	holders, err := s.Roles.UserIDsWithRoles(ctx, []string{id})
	if err != nil {
		return err
	}
	if err := s.Roles.Delete(ctx, id); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrRoleNotFound
		}
		return err
	}
	if err := s.Invalidator.EvictUsers(ctx, holders); err != nil {
		return err
	}
	publishAudit(ctx, s.Events, s.Logger, AuditEvent{Action: "role.deleted", EntityID: id})
	return nil
}

// AssignUserRoles replaces one user's role set and evicts exactly that
// user's cached view.
func (s *AccessService) AssignUserRoles(ctx context.Context, userID string, roleIDs []string) error {
	if _, err := s.Users.GetByID(ctx, userID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrUserNotFound
		}
		return err
	}
	existing, err := s.Roles.ExistingIDs(ctx, roleIDs)
	if err != nil {
		return err
	}
	for _, id := range roleIDs {
		if !existing[id] {
			return ErrRoleNotFound
		}
	}
	if err := s.Roles.SyncUserRoles(ctx, userID, roleIDs); err != nil {
		return err
	}
	if err := s.Invalidator.EvictUser(ctx, userID); err != nil {
		return err
	}
	publishAudit(ctx, s.Events, s.Logger, AuditEvent{Action: "user.roles_assigned", EntityID: userID})
	return nil
}

func (s *AccessService) validateRole(ctx context.Context, in RoleInput) error {
	if strings.TrimSpace(in.Name) == "" {
		return invalid("name", "is required")
	}
	if len(in.EntryIDs) == 0 {
		return nil
	}
	existing, err := s.Entries.ExistingIDs(ctx, in.EntryIDs)
	if err != nil {
		return err
	}
	for _, id := range in.EntryIDs {
		if !existing[id] {
			return invalid("entries", "references an unknown entry")
		}
	}
	return nil
}
