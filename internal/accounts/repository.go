package accounts

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/gatehouse-io/gatehouse/internal/listing"
	"github.com/gatehouse-io/gatehouse/internal/platform/db"
	"github.com/gatehouse-io/gatehouse/internal/platform/httpx"
)

// Repository defines persistence operations for accounts. Methods taking a
// db.Querier participate in a transaction owned by the caller.
type Repository interface {
	List(ctx context.Context, params listing.Params) ([]Account, int, error)
	Get(ctx context.Context, id string) (Account, error)
	RoleIDsFor(ctx context.Context, accountIDs []string) (map[string][]string, error)
	UpdateProfile(ctx context.Context, q db.Querier, id string, name, email *string) error
	DeleteAssignments(ctx context.Context, q db.Querier, accountID string) error
	InsertAssignments(ctx context.Context, q db.Querier, accountID string, roleIDs []string) error
	Delete(ctx context.Context, id string) error
}

var sortColumns = map[string]string{
	"name":      "name",
	"email":     "email",
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

// List returns one page of accounts plus the total count. The search
// predicate matches email substrings and is shared by both queries.
func (r *PGRepository) List(ctx context.Context, params listing.Params) ([]Account, int, error) {
	where := ""
	args := []any{}
	if params.Search != "" {
		where = ` WHERE email ILIKE $1`
		args = append(args, "%"+params.Search+"%")
	}

	query := `SELECT id, name, email, email_verified, image, created_at, updated_at FROM accounts` + where +
		` ORDER BY ` + listing.OrderClause(sortColumns[params.SortBy], params.SortOrder) +
		fmt.Sprintf(` LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	countQuery := `SELECT COUNT(*) FROM accounts` + where

	var (
		accounts []Account
		total    int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rows, err := r.pool.Query(gctx, query, append(args, params.PageSize, params.Offset())...)
		if err != nil {
			return fmt.Errorf("accounts: list: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			account, err := scanAccount(rows)
			if err != nil {
				return err
			}
			accounts = append(accounts, account)
		}
		return rows.Err()
	})
	g.Go(func() error {
		if err := r.pool.QueryRow(gctx, countQuery, args...).Scan(&total); err != nil {
			return fmt.Errorf("accounts: count: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}
	return accounts, total, nil
}

// Get fetches an account by ID, without its role assignments.
func (r *PGRepository) Get(ctx context.Context, id string) (Account, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, name, email, email_verified, image, created_at, updated_at FROM accounts WHERE id = $1`, id)
	account, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, httpx.ErrNotFound
		}
		return Account{}, err
	}
	return account, nil
}

// RoleIDsFor returns role assignments grouped by account for the given page.
func (r *PGRepository) RoleIDsFor(ctx context.Context, accountIDs []string) (map[string][]string, error) {
	byAccount := make(map[string][]string, len(accountIDs))
	if len(accountIDs) == 0 {
		return byAccount, nil
	}

	rows, err := r.pool.Query(ctx,
		`SELECT account_id, role_id FROM account_roles WHERE account_id = ANY($1)`, accountIDs)
	if err != nil {
		return nil, fmt.Errorf("accounts: list assignments: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var accountID, roleID string
		if err := rows.Scan(&accountID, &roleID); err != nil {
			return nil, fmt.Errorf("accounts: scan assignment: %w", err)
		}
		byAccount[accountID] = append(byAccount[accountID], roleID)
	}
	return byAccount, rows.Err()
}

// UpdateProfile patches name and email; nil fields are left unchanged.
// The update timestamp always advances.
func (r *PGRepository) UpdateProfile(ctx context.Context, q db.Querier, id string, name, email *string) error {
	tag, err := q.Exec(ctx,
		`UPDATE accounts SET name = COALESCE($2, name), email = COALESCE($3, email), updated_at = NOW() WHERE id = $1`,
		id, name, email)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return fmt.Errorf("%w: email already registered", httpx.ErrConflict)
		}
		return fmt.Errorf("accounts: update profile: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return httpx.ErrNotFound
	}
	return nil
}

// DeleteAssignments removes every role assignment for the account.
func (r *PGRepository) DeleteAssignments(ctx context.Context, q db.Querier, accountID string) error {
	if _, err := q.Exec(ctx, `DELETE FROM account_roles WHERE account_id = $1`, accountID); err != nil {
		return fmt.Errorf("accounts: delete assignments: %w", err)
	}
	return nil
}

// InsertAssignments grants the given roles to the account. A duplicate grant
// is redundant, not an error.
func (r *PGRepository) InsertAssignments(ctx context.Context, q db.Querier, accountID string, roleIDs []string) error {
	for _, roleID := range roleIDs {
		_, err := q.Exec(ctx,
			`INSERT INTO account_roles (id, account_id, role_id) VALUES ($1, $2, $3)
			 ON CONFLICT (account_id, role_id) DO NOTHING`,
			uuid.NewString(), accountID, roleID)
		if err != nil {
			if db.IsForeignKeyViolation(err) {
				return httpx.NewValidationError(map[string]string{"roleIds": "unknown role: " + roleID})
			}
			return fmt.Errorf("accounts: insert assignment: %w", err)
		}
	}
	return nil
}

// Delete removes an account; assignments and credentials follow by cascade.
func (r *PGRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM accounts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("accounts: delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return httpx.ErrNotFound
	}
	return nil
}

func scanAccount(row pgx.Row) (Account, error) {
	var account Account
	err := row.Scan(&account.ID, &account.Name, &account.Email, &account.EmailVerified,
		&account.Image, &account.CreatedAt, &account.UpdatedAt)
	if err != nil {
		return Account{}, err
	}
	return account, nil
}

var _ Repository = (*PGRepository)(nil)
