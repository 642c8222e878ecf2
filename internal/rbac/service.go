package rbac

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gatehouse-io/gatehouse/internal/platform/db"
)

// Checker resolves effective permissions for an account. Every check re-reads
// the current assignments; there is no cache to invalidate.
type Checker struct {
	q db.Querier
}

// NewChecker constructs a Checker over the given store.
func NewChecker(q db.Querier) *Checker {
	return &Checker{q: q}
}

// EffectivePermissions returns the union of the permission sets of all roles
// assigned to the account. An account with no roles has the empty set.
func (c *Checker) EffectivePermissions(ctx context.Context, accountID string) (PermissionSet, error) {
	rows, err := c.q.Query(ctx,
		`SELECT r.permissions
		 FROM account_roles ar
		 JOIN roles r ON r.id = ar.role_id
		 WHERE ar.account_id = $1`, accountID)
	if err != nil {
		return nil, fmt.Errorf("rbac: query role permissions: %w", err)
	}
	defer rows.Close()

	granted := NewPermissionSet()
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("rbac: scan permissions: %w", err)
		}
		var perms []string
		if err := json.Unmarshal(raw, &perms); err != nil {
			return nil, fmt.Errorf("rbac: decode permissions: %w", err)
		}
		for _, p := range perms {
			granted.Add(p)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rbac: iterate permissions: %w", err)
	}
	return granted, nil
}

// HasPermission reports whether the account holds the exact permission string.
func (c *Checker) HasPermission(ctx context.Context, accountID, permission string) (bool, error) {
	granted, err := c.EffectivePermissions(ctx, accountID)
	if err != nil {
		return false, err
	}
	return granted.Has(permission), nil
}
