package repository

import (
	"context"

	"github.com/rakaadit/go-rbac-navigation/internal/domain/entity"
)

// EntryFilter narrows List results. Label is a case-insensitive
// substring match; IsActive is a tri-state activity filter.
type EntryFilter struct {
	Label    string
	IsActive *bool
}

// EntryRepository is the tree store: it owns entry rows, parent links
// and sibling order.
type EntryRepository interface {
	Create(ctx context.Context, e *entity.Entry) error
	GetByID(ctx context.Context, id string) (*entity.Entry, error)
	Update(ctx context.Context, e *entity.Entry) error
	// Delete removes the entry, its children and all role links.
	Delete(ctx context.Context, id string) error
	// List returns matching entries ordered by sort_num with children
	// nested under their parent.
	List(ctx context.Context, f EntryFilter) ([]*entity.EntryNode, error)
	// Forest returns the full forest, each node carrying its granting
	// role ids, ordered by sort_num at both levels.
	Forest(ctx context.Context) ([]*entity.EntryNode, error)
	// HasChildren reports whether any entry points at id as parent.
	HasChildren(ctx context.Context, id string) (bool, error)
	// SiblingSortTaken reports whether sortNum is already used by a
	// sibling under parentID, ignoring excludeID.
	SiblingSortTaken(ctx context.Context, parentID *string, sortNum int, excludeID string) (bool, error)
	// NextSortNum returns the next free sort key under parentID.
	NextSortNum(ctx context.Context, parentID *string) (int, error)
	// ApplyOrder persists a submitted forest in one transaction:
	// sort_num becomes the sibling index, parent_id the submitted
	// parent. An unknown id fails the whole call with ErrNotFound.
	ApplyOrder(ctx context.Context, forest []entity.OrderNode) error
	// ExistingIDs filters ids down to those present in the store.
	ExistingIDs(ctx context.Context, ids []string) (map[string]bool, error)
}
