package rbac

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gatehouse-io/gatehouse/internal/identity"
	"github.com/gatehouse-io/gatehouse/internal/platform/httpx"
)

// PermissionChecker is the permission lookup consumed by guards.
type PermissionChecker interface {
	HasPermission(ctx context.Context, accountID, permission string) (bool, error)
}

// Guard decides whether the resolved caller may proceed. A nil return allows;
// any error short-circuits the chain and is mapped to an HTTP response.
type Guard func(ctx context.Context, caller *identity.Caller) error

// Require runs the guards in order before the wrapped handler. All must pass;
// there is no OR semantics across a chain.
func Require(guards ...Guard) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			caller := identity.CallerFromContext(r.Context())
			for _, guard := range guards {
				if err := guard(r.Context(), caller); err != nil {
					httpx.RespondError(w, err)
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Authenticated rejects requests without a resolved caller.
func Authenticated() Guard {
	return func(ctx context.Context, caller *identity.Caller) error {
		if caller == nil {
			return httpx.ErrUnauthorized
		}
		return nil
	}
}

// Middleware builds permission guards backed by a Checker.
type Middleware struct {
	Checker PermissionChecker
	Logger  *slog.Logger
}

// Permission requires the caller to hold the given permission. An absent
// caller is rejected as unauthorized before any permission lookup runs.
func (m Middleware) Permission(permission string) Guard {
	return func(ctx context.Context, caller *identity.Caller) error {
		if caller == nil {
			return httpx.ErrUnauthorized
		}
		ok, err := m.Checker.HasPermission(ctx, caller.ID, permission)
		if err != nil {
			if m.Logger != nil {
				m.Logger.Error("permission check failed", slog.String("permission", permission), slog.Any("error", err))
			}
			return err
		}
		if !ok {
			return httpx.ErrForbidden
		}
		return nil
	}
}
