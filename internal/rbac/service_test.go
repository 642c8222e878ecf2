package rbac

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAssignments answers the checker's join query from an in-memory map of
// account ID to the permission lists of its assigned roles.
type fakeAssignments struct {
	perRole map[string][][]string
}

func newFakeAssignments() *fakeAssignments {
	return &fakeAssignments{perRole: make(map[string][][]string)}
}

func (f *fakeAssignments) assign(t *testing.T, accountID string, perms ...string) {
	t.Helper()
	if perms == nil {
		perms = []string{}
	}
	f.perRole[accountID] = append(f.perRole[accountID], perms)
}

func (f *fakeAssignments) revokeAll(accountID string) {
	delete(f.perRole, accountID)
}

func (f *fakeAssignments) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	panic("unexpected Exec: " + sql)
}

func (f *fakeAssignments) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	rows := &fakeRows{}
	for _, perms := range f.perRole[args[0].(string)] {
		raw, err := json.Marshal(perms)
		if err != nil {
			return nil, err
		}
		rows.rows = append(rows.rows, raw)
	}
	return rows, nil
}

func (f *fakeAssignments) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	panic("unexpected QueryRow: " + sql)
}

// fakeRows yields one jsonb permissions blob per assigned role.
type fakeRows struct {
	rows [][]byte
	idx  int
}

func (r *fakeRows) Close()                                       {}
func (r *fakeRows) Err() error                                   { return nil }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) RawValues() [][]byte                          { return nil }
func (r *fakeRows) Values() ([]any, error)                       { return nil, nil }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }

func (r *fakeRows) Next() bool {
	if r.idx >= len(r.rows) {
		return false
	}
	r.idx++
	return true
}

func (r *fakeRows) Scan(dest ...any) error {
	*(dest[0].(*[]byte)) = r.rows[r.idx-1]
	return nil
}

func TestHasPermissionUnionsAcrossRoles(t *testing.T) {
	store := newFakeAssignments()
	store.assign(t, "acct-1", "users:read", "users:write")
	store.assign(t, "acct-1", "users:read")
	checker := NewChecker(store)

	for _, perm := range []string{"users:read", "users:write"} {
		ok, err := checker.HasPermission(context.Background(), "acct-1", perm)
		require.NoError(t, err)
		assert.True(t, ok, perm)
	}

	ok, err := checker.HasPermission(context.Background(), "acct-1", "users:delete")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHasPermissionViewerLacksWrite(t *testing.T) {
	store := newFakeAssignments()
	store.assign(t, "acct-viewer", "users:read")
	checker := NewChecker(store)

	ok, err := checker.HasPermission(context.Background(), "acct-viewer", "users:write")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEffectivePermissionsNoAssignments(t *testing.T) {
	checker := NewChecker(newFakeAssignments())

	granted, err := checker.EffectivePermissions(context.Background(), "acct-roleless")
	require.NoError(t, err)
	assert.Empty(t, granted)

	for _, perm := range AllPermissions() {
		ok, err := checker.HasPermission(context.Background(), "acct-roleless", perm)
		require.NoError(t, err)
		assert.False(t, ok, perm)
	}
}

func TestEffectivePermissionsDeduplicated(t *testing.T) {
	store := newFakeAssignments()
	store.assign(t, "acct-1", "users:read", "users:write")
	store.assign(t, "acct-1", "users:read", "roles:read")
	checker := NewChecker(store)

	granted, err := checker.EffectivePermissions(context.Background(), "acct-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"roles:read", "users:read", "users:write"}, granted.Strings())
}

func TestHasPermissionRevokedAfterAssignmentRemoval(t *testing.T) {
	store := newFakeAssignments()
	store.assign(t, "acct-1", "users:read")
	checker := NewChecker(store)

	ok, err := checker.HasPermission(context.Background(), "acct-1", "users:read")
	require.NoError(t, err)
	require.True(t, ok)

	// Every check re-reads assignments, so removal is visible immediately.
	store.revokeAll("acct-1")

	ok, err = checker.HasPermission(context.Background(), "acct-1", "users:read")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHasPermissionRoleWithEmptySet(t *testing.T) {
	store := newFakeAssignments()
	store.assign(t, "acct-1")
	checker := NewChecker(store)

	ok, err := checker.HasPermission(context.Background(), "acct-1", "users:read")
	require.NoError(t, err)
	assert.False(t, ok)
}
