package rbac

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatehouse-io/gatehouse/internal/identity"
	"github.com/gatehouse-io/gatehouse/internal/platform/httpx"
)

type stubChecker struct {
	granted map[string]bool
	err     error
	calls   int
}

func (s *stubChecker) HasPermission(ctx context.Context, accountID, permission string) (bool, error) {
	s.calls++
	if s.err != nil {
		return false, s.err
	}
	return s.granted[permission], nil
}

func serveGuarded(t *testing.T, caller *identity.Caller, guards ...Guard) *httptest.ResponseRecorder {
	t.Helper()

	handler := Require(guards...)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if caller != nil {
		req = req.WithContext(identity.ContextWithCaller(req.Context(), caller))
	}
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	return res
}

func TestAuthenticatedRejectsAnonymous(t *testing.T) {
	res := serveGuarded(t, nil, Authenticated())

	assert.Equal(t, http.StatusUnauthorized, res.Code)

	var body httpx.ErrorBody
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &body))
	assert.Equal(t, httpx.ErrUnauthorized.Error(), body.Error)
}

func TestAuthenticatedAllowsCaller(t *testing.T) {
	res := serveGuarded(t, &identity.Caller{ID: "acct-1"}, Authenticated())
	assert.Equal(t, http.StatusNoContent, res.Code)
}

func TestPermissionGuardForbidsMissingGrant(t *testing.T) {
	checker := &stubChecker{granted: map[string]bool{PermRolesRead: true}}
	mw := Middleware{Checker: checker}

	res := serveGuarded(t, &identity.Caller{ID: "acct-1"}, mw.Permission(PermRolesWrite))
	assert.Equal(t, http.StatusForbidden, res.Code)
}

func TestPermissionGuardAllowsGrant(t *testing.T) {
	checker := &stubChecker{granted: map[string]bool{PermRolesRead: true}}
	mw := Middleware{Checker: checker}

	res := serveGuarded(t, &identity.Caller{ID: "acct-1"}, mw.Permission(PermRolesRead))
	assert.Equal(t, http.StatusNoContent, res.Code)
}

func TestPermissionGuardRejectsAnonymousBeforeLookup(t *testing.T) {
	checker := &stubChecker{granted: map[string]bool{PermRolesRead: true}}
	mw := Middleware{Checker: checker}

	res := serveGuarded(t, nil, mw.Permission(PermRolesRead))
	assert.Equal(t, http.StatusUnauthorized, res.Code)
	assert.Zero(t, checker.calls)
}

func TestGuardChainStopsAtFirstFailure(t *testing.T) {
	checker := &stubChecker{granted: map[string]bool{}}
	mw := Middleware{Checker: checker}

	res := serveGuarded(t, &identity.Caller{ID: "acct-1"},
		Authenticated(),
		mw.Permission(PermRolesRead),
		mw.Permission(PermRolesWrite),
	)
	assert.Equal(t, http.StatusForbidden, res.Code)
	assert.Equal(t, 1, checker.calls)
}
