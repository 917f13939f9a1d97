package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rakaadit/go-rbac-navigation/internal/domain/entity"
	"github.com/rakaadit/go-rbac-navigation/internal/domain/repository"
)

const uniqueViolation = "23505"

// mapError translates driver errors to repository sentinels.
func mapError(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return repository.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return repository.ErrConflict
	}
	return err
}

type EntryRepository struct {
	pool *pgxpool.Pool
}

func NewEntryRepository(pool *pgxpool.Pool) *EntryRepository {
	return &EntryRepository{pool: pool}
}

func (r *EntryRepository) Create(ctx context.Context, e *entity.Entry) error {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO entries (parent_id, sort_num, label, icon, target, is_active, is_divider)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at
	`, e.ParentID, e.SortNum, e.Label, e.Icon, e.Target, e.IsActive, e.IsDivider)

	if err := row.Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return mapError(err)
	}
	return nil
}

func (r *EntryRepository) GetByID(ctx context.Context, id string) (*entity.Entry, error) {
	e := &entity.Entry{}
	row := r.pool.QueryRow(ctx, `
		SELECT id, parent_id, sort_num, label, icon, target, is_active, is_divider, created_at, updated_at
		FROM entries
		WHERE id = $1
	`, id)
	if err := row.Scan(&e.ID, &e.ParentID, &e.SortNum, &e.Label, &e.Icon, &e.Target,
		&e.IsActive, &e.IsDivider, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return nil, mapError(err)
	}
	return e, nil
}

func (r *EntryRepository) Update(ctx context.Context, e *entity.Entry) error {
	e.UpdatedAt = time.Now()
	res, err := r.pool.Exec(ctx, `
		UPDATE entries
		SET parent_id = $1, sort_num = $2, label = $3, icon = $4, target = $5,
		    is_active = $6, is_divider = $7, updated_at = $8
		WHERE id = $9
	`, e.ParentID, e.SortNum, e.Label, e.Icon, e.Target, e.IsActive, e.IsDivider, e.UpdatedAt, e.ID)
	if err != nil {
		return mapError(err)
	}
	if res.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// Delete removes the entry; children and entry_roles rows go with it
// via ON DELETE CASCADE.
func (r *EntryRepository) Delete(ctx context.Context, id string) error {
	res, err := r.pool.Exec(ctx, `DELETE FROM entries WHERE id = $1`, id)
	if err != nil {
		return mapError(err)
	}
	if res.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *EntryRepository) List(ctx context.Context, f repository.EntryFilter) ([]*entity.EntryNode, error) {
	q := `
		SELECT id, parent_id, sort_num, label, icon, target, is_active, is_divider, created_at, updated_at
		FROM entries
		WHERE 1=1`
	args := []any{}
	if f.Label != "" {
		args = append(args, "%"+f.Label+"%")
		q += ` AND label ILIKE $1`
	}
	if f.IsActive != nil {
		args = append(args, *f.IsActive)
		if len(args) == 1 {
			q += ` AND is_active = $1`
		} else {
			q += ` AND is_active = $2`
		}
	}
	q += ` ORDER BY parent_id NULLS FIRST, sort_num ASC`

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	nodes, err := scanNodes(rows)
	if err != nil {
		return nil, err
	}
	// A child can match the filter while its parent does not; the
	// filtered grouping keeps such children as top-level results.
	return entity.BuildFilteredForest(nodes), nil
}

// Forest loads every entry with its granting role ids in one joined
// query, then groups children under parents in a single pass.
func (r *EntryRepository) Forest(ctx context.Context) ([]*entity.EntryNode, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT e.id, e.parent_id, e.sort_num, e.label, e.icon, e.target,
		       e.is_active, e.is_divider, e.created_at, e.updated_at,
		       COALESCE(array_agg(er.role_id) FILTER (WHERE er.role_id IS NOT NULL), '{}')
		FROM entries e
		LEFT JOIN entry_roles er ON er.entry_id = e.id
		GROUP BY e.id
		ORDER BY e.parent_id NULLS FIRST, e.sort_num ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var nodes []*entity.EntryNode
	for rows.Next() {
		n := &entity.EntryNode{}
		if err := rows.Scan(&n.ID, &n.ParentID, &n.SortNum, &n.Label, &n.Icon, &n.Target,
			&n.IsActive, &n.IsDivider, &n.CreatedAt, &n.UpdatedAt, &n.RoleIDs); err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entity.BuildForest(nodes), nil
}

func (r *EntryRepository) HasChildren(ctx context.Context, id string) (bool, error) {
	var has bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM entries WHERE parent_id = $1)
	`, id).Scan(&has)
	return has, err
}

func (r *EntryRepository) SiblingSortTaken(ctx context.Context, parentID *string, sortNum int, excludeID string) (bool, error) {
	var taken bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM entries
			WHERE parent_id IS NOT DISTINCT FROM $1 AND sort_num = $2 AND id::text <> $3
		)
	`, parentID, sortNum, excludeID).Scan(&taken)
	return taken, err
}

func (r *EntryRepository) NextSortNum(ctx context.Context, parentID *string) (int, error) {
	var next int
	err := r.pool.QueryRow(ctx, `
		SELECT COALESCE(MAX(sort_num), -1) + 1 FROM entries
		WHERE parent_id IS NOT DISTINCT FROM $1
	`, parentID).Scan(&next)
	return next, err
}

// ApplyOrder walks the submitted forest pre-order inside one
// transaction: sibling index becomes sort_num, the enclosing node
// becomes parent_id. Entries absent from the submission keep their
// current position. Any unknown id rolls the whole batch back.
func (r *EntryRepository) ApplyOrder(ctx context.Context, forest []entity.OrderNode) error {
	if len(forest) == 0 {
		return nil
	}
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := applyLevel(ctx, tx, forest, nil); err != nil {
		return err
	}
	// The sibling-sort constraint is deferred, so a collision with an
	// entry outside the submission only surfaces at commit.
	return mapError(tx.Commit(ctx))
}

func applyLevel(ctx context.Context, tx pgx.Tx, nodes []entity.OrderNode, parentID *string) error {
	for i, n := range nodes {
		res, err := tx.Exec(ctx, `
			UPDATE entries SET sort_num = $1, parent_id = $2, updated_at = now()
			WHERE id = $3
		`, i, parentID, n.ID)
		if err != nil {
			return mapError(err)
		}
		if res.RowsAffected() == 0 {
			return repository.ErrNotFound
		}
		if len(n.Children) > 0 {
			id := n.ID
			if err := applyLevel(ctx, tx, n.Children, &id); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *EntryRepository) ExistingIDs(ctx context.Context, ids []string) (map[string]bool, error) {
	found := make(map[string]bool, len(ids))
	if len(ids) == 0 {
		return found, nil
	}
	rows, err := r.pool.Query(ctx, `SELECT id FROM entries WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		found[id] = true
	}
	return found, rows.Err()
}

func scanNodes(rows pgx.Rows) ([]*entity.EntryNode, error) {
	var nodes []*entity.EntryNode
	for rows.Next() {
		n := &entity.EntryNode{}
		if err := rows.Scan(&n.ID, &n.ParentID, &n.SortNum, &n.Label, &n.Icon, &n.Target,
			&n.IsActive, &n.IsDivider, &n.CreatedAt, &n.UpdatedAt); err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	return nodes, rows.Err()
}

var _ repository.EntryRepository = (*EntryRepository)(nil)
