package identity

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/gatehouse-io/gatehouse/internal/platform/httpx"
	_ "github.com/gatehouse-io/gatehouse/testing"
)

type storedAccount struct {
	id    string
	name  string
	email string
	hash  string
}

// fakeStore answers the small set of statements the provider issues against
// an in-memory account table.
type fakeStore struct {
	byEmail map[string]storedAccount
	byID    map[string]storedAccount

	insertedAccounts    int
	insertedCredentials int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		byEmail: make(map[string]storedAccount),
		byID:    make(map[string]storedAccount),
	}
}

func (s *fakeStore) add(t *testing.T, id, name, email, password string) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	account := storedAccount{id: id, name: name, email: email, hash: string(hash)}
	s.byEmail[email] = account
	s.byID[id] = account
}

func (s *fakeStore) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	switch {
	case strings.Contains(sql, "INSERT INTO accounts"):
		email := args[2].(string)
		if _, exists := s.byEmail[email]; exists {
			return pgconn.CommandTag{}, &pgconn.PgError{Code: "23505", ConstraintName: "accounts_email_key"}
		}
		account := storedAccount{id: args[0].(string), name: args[1].(string), email: email}
		s.byEmail[email] = account
		s.byID[account.id] = account
		s.insertedAccounts++
	case strings.Contains(sql, "INSERT INTO credentials"):
		account := s.byID[args[0].(string)]
		account.hash = args[1].(string)
		s.byEmail[account.email] = account
		s.byID[account.id] = account
		s.insertedCredentials++
	}
	return pgconn.CommandTag{}, nil
}

func (s *fakeStore) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	panic("unexpected Query: " + sql)
}

func (s *fakeStore) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if strings.Contains(sql, "JOIN credentials") {
		account, ok := s.byEmail[args[0].(string)]
		if !ok || account.hash == "" {
			return fakeRow{err: pgx.ErrNoRows}
		}
		return fakeRow{vals: []string{account.id, account.name, account.email, account.hash}}
	}
	account, ok := s.byID[args[0].(string)]
	if !ok {
		return fakeRow{err: pgx.ErrNoRows}
	}
	return fakeRow{vals: []string{account.id, account.name, account.email}}
}

type fakeRow struct {
	vals []string
	err  error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	for i, d := range dest {
		*(d.(*string)) = r.vals[i]
	}
	return nil
}

func newTestProvider(t *testing.T, store *fakeStore) (*Provider, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewProvider(store, client, time.Hour), mr
}

func TestAuthenticateIssuesSession(t *testing.T) {
	store := newFakeStore()
	store.add(t, "acct-1", "Ada", "ada@example.com", "correct-horse")
	provider, mr := newTestProvider(t, store)

	caller, token, err := provider.Authenticate(context.Background(), "ada@example.com", "correct-horse")
	require.NoError(t, err)
	require.NotNil(t, caller)

	assert.Equal(t, "acct-1", caller.ID)
	assert.Equal(t, "Ada", caller.Name)
	assert.NotEmpty(t, token)

	stored, err := mr.Get("session:" + token)
	require.NoError(t, err)
	assert.Equal(t, "acct-1", stored)
	assert.Greater(t, mr.TTL("session:"+token), time.Duration(0))
}

func TestAuthenticateWrongPassword(t *testing.T) {
	store := newFakeStore()
	store.add(t, "acct-1", "Ada", "ada@example.com", "correct-horse")
	provider, _ := newTestProvider(t, store)

	_, _, err := provider.Authenticate(context.Background(), "ada@example.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuthenticateUnknownEmail(t *testing.T) {
	provider, _ := newTestProvider(t, newFakeStore())

	_, _, err := provider.Authenticate(context.Background(), "nobody@example.com", "whatever")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestResolveCallerRoundTrip(t *testing.T) {
	store := newFakeStore()
	store.add(t, "acct-1", "Ada", "ada@example.com", "correct-horse")
	provider, _ := newTestProvider(t, store)

	_, token, err := provider.Authenticate(context.Background(), "ada@example.com", "correct-horse")
	require.NoError(t, err)

	caller, err := provider.ResolveCaller(context.Background(), token)
	require.NoError(t, err)
	require.NotNil(t, caller)
	assert.Equal(t, "acct-1", caller.ID)
	assert.Equal(t, "ada@example.com", caller.Email)
}

func TestResolveCallerEmptyToken(t *testing.T) {
	provider, _ := newTestProvider(t, newFakeStore())

	caller, err := provider.ResolveCaller(context.Background(), "")
	require.NoError(t, err)
	assert.Nil(t, caller)
}

func TestResolveCallerUnknownToken(t *testing.T) {
	provider, _ := newTestProvider(t, newFakeStore())

	caller, err := provider.ResolveCaller(context.Background(), "bogus")
	require.NoError(t, err)
	assert.Nil(t, caller)
}

func TestResolveCallerDropsOrphanedSession(t *testing.T) {
	store := newFakeStore()
	provider, mr := newTestProvider(t, store)

	// Session points at an account that no longer exists.
	require.NoError(t, mr.Set("session:stale", "acct-gone"))

	caller, err := provider.ResolveCaller(context.Background(), "stale")
	require.NoError(t, err)
	assert.Nil(t, caller)
	assert.False(t, mr.Exists("session:stale"))
}

func TestRevoke(t *testing.T) {
	store := newFakeStore()
	store.add(t, "acct-1", "Ada", "ada@example.com", "correct-horse")
	provider, _ := newTestProvider(t, store)

	_, token, err := provider.Authenticate(context.Background(), "ada@example.com", "correct-horse")
	require.NoError(t, err)

	require.NoError(t, provider.Revoke(context.Background(), token))

	caller, err := provider.ResolveCaller(context.Background(), token)
	require.NoError(t, err)
	assert.Nil(t, caller)
}

func TestCreateIdentityStoresHashedCredentials(t *testing.T) {
	store := newFakeStore()
	provider, _ := newTestProvider(t, store)

	ident, err := provider.CreateIdentity(context.Background(), store, "Ada", "ada@example.com", "correct-horse")
	require.NoError(t, err)

	assert.NotEmpty(t, ident.ID)
	assert.Equal(t, "Ada", ident.Name)
	assert.Equal(t, 1, store.insertedAccounts)
	assert.Equal(t, 1, store.insertedCredentials)

	stored := store.byID[ident.ID]
	assert.NotEqual(t, "correct-horse", stored.hash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.hash), []byte("correct-horse")))
}

func TestCreateIdentityDuplicateEmail(t *testing.T) {
	store := newFakeStore()
	store.add(t, "acct-1", "Ada", "ada@example.com", "correct-horse")
	provider, _ := newTestProvider(t, store)

	_, err := provider.CreateIdentity(context.Background(), store, "Imposter", "ada@example.com", "whatever")
	assert.ErrorIs(t, err, httpx.ErrConflict)
}

func TestBearerToken(t *testing.T) {
	req := newRequestWithAuth("Bearer abc123")
	assert.Equal(t, "abc123", BearerToken(req))

	assert.Empty(t, BearerToken(newRequestWithAuth("")))
	assert.Empty(t, BearerToken(newRequestWithAuth("Basic abc123")))
}

func newRequestWithAuth(header string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/auth/sign-out", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	return req
}
