package repository

import (
	"context"

	"github.com/rakaadit/go-rbac-navigation/internal/domain/entity"
)

// UserRepository supplies the identities the cache fans out over.
type UserRepository interface {
	Create(ctx context.Context, u *entity.User) error
	GetByID(ctx context.Context, id string) (*entity.User, error)
	GetByEmail(ctx context.Context, email string) (*entity.User, error)
	// ListIDs returns every known user id; used for coarse invalidation
	// of entry-level mutations.
	ListIDs(ctx context.Context) ([]string, error)
}
