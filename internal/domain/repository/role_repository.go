package repository

import (
	"context"

	"github.com/rakaadit/go-rbac-navigation/internal/domain/entity"
)

// RoleRepository owns roles plus the entry_roles and user_roles
// relations that drive visibility and invalidation fan-out.
type RoleRepository interface {
	Create(ctx context.Context, r *entity.Role) error
	GetByID(ctx context.Context, id string) (*entity.Role, error)
	Update(ctx context.Context, r *entity.Role) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, nameSearch string) ([]*entity.Role, error)

	// EntryRoleIDs returns the role ids currently granted an entry.
	EntryRoleIDs(ctx context.Context, entryID string) ([]string, error)
	// SyncEntryRoles replaces the role set of an entry.
	SyncEntryRoles(ctx context.Context, entryID string, roleIDs []string) error
	// SyncRoleEntries replaces the entry set of a role.
	SyncRoleEntries(ctx context.Context, roleID string, entryIDs []string) error

	// UserRoleIDs returns the role ids held by a user.
	UserRoleIDs(ctx context.Context, userID string) ([]string, error)
	// SyncUserRoles replaces the role set of a user.
	SyncUserRoles(ctx context.Context, userID string, roleIDs []string) error
	// UserIDsWithRoles returns the distinct users holding any of the
	// given roles (the invalidation fan-out of a role-level change).
	UserIDsWithRoles(ctx context.Context, roleIDs []string) ([]string, error)

	// ExistingIDs filters role ids down to those present in the store.
	ExistingIDs(ctx context.Context, ids []string) (map[string]bool, error)
}
