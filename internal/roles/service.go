package roles

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/gatehouse-io/gatehouse/internal/listing"
	"github.com/gatehouse-io/gatehouse/internal/platform/httpx"
	"github.com/gatehouse-io/gatehouse/internal/rbac"
)

// SortFields enumerates the accepted sortBy values for the role collection.
var SortFields = []string{"createdAt", "name"}

// UpdateRoleInput is a partial patch; nil fields are left unchanged.
// A non-nil Permissions slice fully replaces the stored set.
type UpdateRoleInput struct {
	Name        *string
	Permissions *[]string
}

// Service handles role business logic.
type Service struct {
	repo Repository
}

// NewService builds Service instance.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// List returns one page of roles and the total matching the search predicate.
func (s *Service) List(ctx context.Context, params listing.Params) ([]Role, int, error) {
	return s.repo.List(ctx, params)
}

// Get fetches a role by ID.
func (s *Service) Get(ctx context.Context, id string) (Role, error) {
	return s.repo.Get(ctx, id)
}

// Create stores a new role with a freshly generated identifier.
func (s *Service) Create(ctx context.Context, name string, permissions []string) (Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Role{}, httpx.NewValidationError(map[string]string{"name": "must not be empty"})
	}
	now := time.Now().UTC()
	return s.repo.Create(ctx, Role{
		ID:          uuid.NewString(),
		Name:        name,
		Permissions: normalizePermissions(permissions),
		CreatedAt:   now,
		UpdatedAt:   now,
	})
}

// Update applies a partial patch to an existing role.
func (s *Service) Update(ctx context.Context, id string, in UpdateRoleInput) (Role, error) {
	if in.Name != nil {
		trimmed := strings.TrimSpace(*in.Name)
		if trimmed == "" {
			return Role{}, httpx.NewValidationError(map[string]string{"name": "must not be empty"})
		}
		in.Name = &trimmed
	}
	var permissions []string
	if in.Permissions != nil {
		permissions = normalizePermissions(*in.Permissions)
	}
	return s.repo.Update(ctx, id, in.Name, permissions)
}

// Delete removes a role and, via the storage cascade, all its assignments.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}

// normalizePermissions collapses the incoming list into a deduplicated,
// deterministically ordered set. Never nil so an empty set serializes as [].
func normalizePermissions(perms []string) []string {
	return rbac.NewPermissionSet(perms...).Strings()
}
