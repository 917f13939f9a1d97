package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rakaadit/go-rbac-navigation/internal/domain/entity"
	"github.com/rakaadit/go-rbac-navigation/internal/domain/repository"
)

type RoleRepository struct {
	pool *pgxpool.Pool
}

func NewRoleRepository(pool *pgxpool.Pool) *RoleRepository {
	return &RoleRepository{pool: pool}
}

func (r *RoleRepository) Create(ctx context.Context, role *entity.Role) error {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO roles (name, color)
		VALUES ($1, $2)
		RETURNING id, created_at, updated_at
	`, role.Name, role.Color)
	if err := row.Scan(&role.ID, &role.CreatedAt, &role.UpdatedAt); err != nil {
		return mapError(err)
	}
	return nil
}

func (r *RoleRepository) GetByID(ctx context.Context, id string) (*entity.Role, error) {
	role := &entity.Role{}
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, color, created_at, updated_at FROM roles WHERE id = $1
	`, id)
	if err := row.Scan(&role.ID, &role.Name, &role.Color, &role.CreatedAt, &role.UpdatedAt); err != nil {
		return nil, mapError(err)
	}
	return role, nil
}

func (r *RoleRepository) Update(ctx context.Context, role *entity.Role) error {
	role.UpdatedAt = time.Now()
	res, err := r.pool.Exec(ctx, `
		UPDATE roles SET name = $1, color = $2, updated_at = $3 WHERE id = $4
	`, role.Name, role.Color, role.UpdatedAt, role.ID)
	if err != nil {
		return mapError(err)
	}
	if res.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// Delete removes the role; entry_roles and user_roles rows cascade.
func (r *RoleRepository) Delete(ctx context.Context, id string) error {
	res, err := r.pool.Exec(ctx, `DELETE FROM roles WHERE id = $1`, id)
	if err != nil {
		return mapError(err)
	}
	if res.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *RoleRepository) List(ctx context.Context, nameSearch string) ([]*entity.Role, error) {
	q := `SELECT id, name, color, created_at, updated_at FROM roles`
	args := []any{}
	if nameSearch != "" {
		q += ` WHERE name ILIKE $1`
		args = append(args, "%"+nameSearch+"%")
	}
	q += ` ORDER BY name ASC`

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []*entity.Role
	for rows.Next() {
		role := &entity.Role{}
		if err := rows.Scan(&role.ID, &role.Name, &role.Color, &role.CreatedAt, &role.UpdatedAt); err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

func (r *RoleRepository) EntryRoleIDs(ctx context.Context, entryID string) ([]string, error) {
	return r.ids(ctx, `SELECT role_id FROM entry_roles WHERE entry_id = $1`, entryID)
}

func (r *RoleRepository) SyncEntryRoles(ctx context.Context, entryID string, roleIDs []string) error {
	return r.sync(ctx, `DELETE FROM entry_roles WHERE entry_id = $1`,
		`INSERT INTO entry_roles (entry_id, role_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		entryID, roleIDs)
}

func (r *RoleRepository) SyncRoleEntries(ctx context.Context, roleID string, entryIDs []string) error {
	return r.sync(ctx, `DELETE FROM entry_roles WHERE role_id = $1`,
		`INSERT INTO entry_roles (entry_id, role_id) VALUES ($2, $1) ON CONFLICT DO NOTHING`,
		roleID, entryIDs)
}

func (r *RoleRepository) UserRoleIDs(ctx context.Context, userID string) ([]string, error) {
	return r.ids(ctx, `SELECT role_id FROM user_roles WHERE user_id = $1`, userID)
}

func (r *RoleRepository) SyncUserRoles(ctx context.Context, userID string, roleIDs []string) error {
	return r.sync(ctx, `DELETE FROM user_roles WHERE user_id = $1`,
		`INSERT INTO user_roles (user_id, role_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		userID, roleIDs)
}

func (r *RoleRepository) UserIDsWithRoles(ctx context.Context, roleIDs []string) ([]string, error) {
	if len(roleIDs) == 0 {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx, `
		SELECT DISTINCT user_id FROM user_roles WHERE role_id = ANY($1)
	`, roleIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectIDs(rows)
}

func (r *RoleRepository) ExistingIDs(ctx context.Context, ids []string) (map[string]bool, error) {
	found := make(map[string]bool, len(ids))
	if len(ids) == 0 {
		return found, nil
	}
	rows, err := r.pool.Query(ctx, `SELECT id FROM roles WHERE id = ANY($1)`, ids)
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

// sync replaces one side of a many-to-many relation transactionally.
func (r *RoleRepository) sync(ctx context.Context, delQ, insQ, ownerID string, otherIDs []string) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, delQ, ownerID); err != nil {
		return mapError(err)
	}
	for _, other := range otherIDs {
		if _, err := tx.Exec(ctx, insQ, ownerID, other); err != nil {
			return mapError(err)
		}
	}
	return mapError(tx.Commit(ctx))
}

func (r *RoleRepository) ids(ctx context.Context, q string, arg string) ([]string, error) {
	rows, err := r.pool.Query(ctx, q, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectIDs(rows)
}

func collectIDs(rows pgx.Rows) ([]string, error) {
	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

var _ repository.RoleRepository = (*RoleRepository)(nil)
