package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"github.com/gatehouse-io/gatehouse/internal/platform/db"
	"github.com/gatehouse-io/gatehouse/internal/platform/httpx"
)

// ErrInvalidCredentials indicates a failed email/password check.
var ErrInvalidCredentials = errors.New("identity: invalid credentials")

// Provider owns account identities, credentials, and session tokens.
// The rest of the application consumes it as an opaque caller lookup.
type Provider struct {
	q        db.Querier
	sessions *redis.Client
	ttl      time.Duration
}

// NewProvider constructs a Provider over the given store and session backend.
func NewProvider(q db.Querier, sessions *redis.Client, ttl time.Duration) *Provider {
	return &Provider{q: q, sessions: sessions, ttl: ttl}
}

// CreateIdentity registers a new account with hashed credentials. The querier
// argument lets callers scope the two inserts into an enclosing transaction.
func (p *Provider) CreateIdentity(ctx context.Context, q db.Querier, name, email, password string) (Identity, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return Identity{}, fmt.Errorf("identity: hash password: %w", err)
	}

	now := time.Now().UTC()
	ident := Identity{
		ID:        uuid.NewString(),
		Name:      name,
		Email:     email,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err = q.Exec(ctx,
		`INSERT INTO accounts (id, name, email, email_verified, created_at, updated_at) VALUES ($1, $2, $3, FALSE, $4, $5)`,
		ident.ID, ident.Name, ident.Email, now, now)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return Identity{}, fmt.Errorf("%w: email already registered", httpx.ErrConflict)
		}
		return Identity{}, fmt.Errorf("identity: insert account: %w", err)
	}

	_, err = q.Exec(ctx,
		`INSERT INTO credentials (account_id, password_hash) VALUES ($1, $2)`,
		ident.ID, string(hash))
	if err != nil {
		return Identity{}, fmt.Errorf("identity: insert credentials: %w", err)
	}

	return ident, nil
}

// Authenticate checks credentials and issues a session token on success.
func (p *Provider) Authenticate(ctx context.Context, email, password string) (*Caller, string, error) {
	var (
		caller Caller
		hash   string
	)
	err := p.q.QueryRow(ctx,
		`SELECT a.id, a.name, a.email, c.password_hash
		 FROM accounts a JOIN credentials c ON c.account_id = a.id
		 WHERE a.email = $1`, email).
		Scan(&caller.ID, &caller.Name, &caller.Email, &hash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", fmt.Errorf("identity: find account: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return nil, "", ErrInvalidCredentials
	}

	token := uuid.NewString()
	if err := p.sessions.Set(ctx, sessionKey(token), caller.ID, p.ttl).Err(); err != nil {
		return nil, "", fmt.Errorf("identity: store session: %w", err)
	}
	return &caller, token, nil
}

// ResolveCaller maps a session token to the current account. A missing or
// expired session resolves to a nil caller, not an error; the account row is
// re-read on every call so renames are visible immediately.
func (p *Provider) ResolveCaller(ctx context.Context, token string) (*Caller, error) {
	if token == "" {
		return nil, nil
	}

	accountID, err := p.sessions.Get(ctx, sessionKey(token)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("identity: load session: %w", err)
	}

	var caller Caller
	err = p.q.QueryRow(ctx,
		`SELECT id, name, email FROM accounts WHERE id = $1`, accountID).
		Scan(&caller.ID, &caller.Name, &caller.Email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Account deleted since sign-in; drop the orphaned session.
			_ = p.sessions.Del(ctx, sessionKey(token)).Err()
			return nil, nil
		}
		return nil, fmt.Errorf("identity: load caller: %w", err)
	}
	return &caller, nil
}

// Revoke deletes a session token.
func (p *Provider) Revoke(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := p.sessions.Del(ctx, sessionKey(token)).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("identity: revoke session: %w", err)
	}
	return nil
}

func sessionKey(token string) string {
	return "session:" + token
}
