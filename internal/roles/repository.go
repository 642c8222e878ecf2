package roles

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/gatehouse-io/gatehouse/internal/listing"
	"github.com/gatehouse-io/gatehouse/internal/platform/db"
	"github.com/gatehouse-io/gatehouse/internal/platform/httpx"
)

// Repository defines persistence operations for roles.
type Repository interface {
	List(ctx context.Context, params listing.Params) ([]Role, int, error)
	Get(ctx context.Context, id string) (Role, error)
	Create(ctx context.Context, role Role) (Role, error)
	Update(ctx context.Context, id string, name *string, permissions []string) (Role, error)
	Delete(ctx context.Context, id string) error
}

var sortColumns = map[string]string{
	"name":      "name",
	"createdAt": "created_at",
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// List returns one page of roles plus the total count for the same search
// predicate. The page and count queries share the predicate so that summing
// page sizes over all pages equals the total.
func (r *PGRepository) List(ctx context.Context, params listing.Params) ([]Role, int, error) {
	where := ""
	args := []any{}
	if params.Search != "" {
		where = ` WHERE name ILIKE $1`
		args = append(args, "%"+params.Search+"%")
	}

	query := `SELECT id, name, permissions, created_at, updated_at FROM roles` + where +
		` ORDER BY ` + listing.OrderClause(sortColumns[params.SortBy], params.SortOrder) +
		fmt.Sprintf(` LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	countQuery := `SELECT COUNT(*) FROM roles` + where

	var (
		roles []Role
		total int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rows, err := r.pool.Query(gctx, query, append(args, params.PageSize, params.Offset())...)
		if err != nil {
			return fmt.Errorf("roles: list: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			role, err := scanRole(rows)
			if err != nil {
				return err
			}
			roles = append(roles, role)
		}
		return rows.Err()
	})
	g.Go(func() error {
		if err := r.pool.QueryRow(gctx, countQuery, args...).Scan(&total); err != nil {
			return fmt.Errorf("roles: count: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}
	return roles, total, nil
}

// Get fetches a role by ID.
func (r *PGRepository) Get(ctx context.Context, id string) (Role, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, name, permissions, created_at, updated_at FROM roles WHERE id = $1`, id)
	role, err := scanRole(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Role{}, httpx.ErrNotFound
		}
		return Role{}, err
	}
	return role, nil
}

// Create inserts a new role. Name uniqueness is enforced by the database
// constraint and surfaced as a conflict.
func (r *PGRepository) Create(ctx context.Context, role Role) (Role, error) {
	perms, err := json.Marshal(role.Permissions)
	if err != nil {
		return Role{}, fmt.Errorf("roles: encode permissions: %w", err)
	}
	_, err = r.pool.Exec(ctx,
		`INSERT INTO roles (id, name, permissions, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`,
		role.ID, role.Name, perms, role.CreatedAt, role.UpdatedAt)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return Role{}, fmt.Errorf("%w: role name already exists", httpx.ErrConflict)
		}
		return Role{}, fmt.Errorf("roles: insert: %w", err)
	}
	return role, nil
}

// Update patches a role in place. Nil name and nil permissions leave the
// stored values unchanged; a non-nil permissions slice fully replaces them.
func (r *PGRepository) Update(ctx context.Context, id string, name *string, permissions []string) (Role, error) {
	var perms []byte
	if permissions != nil {
		encoded, err := json.Marshal(permissions)
		if err != nil {
			return Role{}, fmt.Errorf("roles: encode permissions: %w", err)
		}
		perms = encoded
	}

	row := r.pool.QueryRow(ctx,
		`UPDATE roles
		 SET name = COALESCE($2, name), permissions = COALESCE($3, permissions), updated_at = NOW()
		 WHERE id = $1
		 RETURNING id, name, permissions, created_at, updated_at`,
		id, name, perms)
	role, err := scanRole(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Role{}, httpx.ErrNotFound
		}
		if db.IsUniqueViolation(err) {
			return Role{}, fmt.Errorf("%w: role name already exists", httpx.ErrConflict)
		}
		return Role{}, fmt.Errorf("roles: update: %w", err)
	}
	return role, nil
}

// Delete removes a role; assignments referencing it are removed by the
// storage cascade.
func (r *PGRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM roles WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("roles: delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return httpx.ErrNotFound
	}
	return nil
}

func scanRole(row pgx.Row) (Role, error) {
	var (
		role Role
		raw  []byte
	)
	if err := row.Scan(&role.ID, &role.Name, &raw, &role.CreatedAt, &role.UpdatedAt); err != nil {
		return Role{}, err
	}
	if err := json.Unmarshal(raw, &role.Permissions); err != nil {
		return Role{}, fmt.Errorf("roles: decode permissions: %w", err)
	}
	return role, nil
}

var _ Repository = (*PGRepository)(nil)
