package accounts

import (
	"context"
	"fmt"

	"github.com/gatehouse-io/gatehouse/internal/identity"
	"github.com/gatehouse-io/gatehouse/internal/listing"
	"github.com/gatehouse-io/gatehouse/internal/platform/db"
)

// SortFields enumerates the accepted sortBy values for the account collection.
var SortFields = []string{"createdAt", "name", "email"}

// IdentityCreator is the slice of the identity provider the service needs.
// The querier argument scopes identity creation into the service's transaction.
type IdentityCreator interface {
	CreateIdentity(ctx context.Context, q db.Querier, name, email, password string) (identity.Identity, error)
}

// CreateAccountInput carries a new account plus its initial role set.
type CreateAccountInput struct {
	Name     string
	Email    string
	Password string
	RoleIDs  []string
}

// UpdateAccountInput is a partial patch. A non-nil RoleIDs slice fully
// replaces the account's assignments, even when empty.
type UpdateAccountInput struct {
	Name    *string
	Email   *string
	RoleIDs *[]string
}

// Service handles account business logic.
type Service struct {
	repo Repository
	ids  IdentityCreator
	tx   db.TxRunner
}

// NewService builds Service instance.
func NewService(repo Repository, ids IdentityCreator, tx db.TxRunner) *Service {
	return &Service{repo: repo, ids: ids, tx: tx}
}

// List returns one page of accounts, each carrying its assigned role IDs.
func (s *Service) List(ctx context.Context, params listing.Params) ([]Account, int, error) {
	accounts, total, err := s.repo.List(ctx, params)
	if err != nil {
		return nil, 0, err
	}

	ids := make([]string, len(accounts))
	for i, account := range accounts {
		ids[i] = account.ID
	}
	byAccount, err := s.repo.RoleIDsFor(ctx, ids)
	if err != nil {
		return nil, 0, err
	}
	for i := range accounts {
		accounts[i].RoleIDs = byAccount[accounts[i].ID]
	}
	return accounts, total, nil
}

// Get fetches an account with its assigned role IDs.
func (s *Service) Get(ctx context.Context, id string) (Account, error) {
	account, err := s.repo.Get(ctx, id)
	if err != nil {
		return Account{}, err
	}
	byAccount, err := s.repo.RoleIDsFor(ctx, []string{id})
	if err != nil {
		return Account{}, err
	}
	account.RoleIDs = byAccount[id]
	return account, nil
}

// Create registers the identity and grants the initial role set inside one
// transaction, so a failed grant never leaves a roleless account behind.
// The role set is deduplicated up front so the response matches what storage
// keeps.
func (s *Service) Create(ctx context.Context, in CreateAccountInput) (Account, error) {
	roleIDs := dedupeRoleIDs(in.RoleIDs)

	var ident identity.Identity
	err := s.tx.InTx(ctx, func(q db.Querier) error {
		var err error
		ident, err = s.ids.CreateIdentity(ctx, q, in.Name, in.Email, in.Password)
		if err != nil {
			return err
		}
		if len(roleIDs) > 0 {
			if err := s.repo.InsertAssignments(ctx, q, ident.ID, roleIDs); err != nil {
				return fmt.Errorf("assign roles: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return Account{}, err
	}

	return Account{
		ID:            ident.ID,
		Name:          ident.Name,
		Email:         ident.Email,
		EmailVerified: ident.EmailVerified,
		Image:         ident.Image,
		CreatedAt:     ident.CreatedAt,
		UpdatedAt:     ident.UpdatedAt,
		RoleIDs:       roleIDs,
	}, nil
}

// Update patches profile fields and, when RoleIDs is present, atomically
// replaces the whole assignment set.
func (s *Service) Update(ctx context.Context, id string, in UpdateAccountInput) (Account, error) {
	err := s.tx.InTx(ctx, func(q db.Querier) error {
		if err := s.repo.UpdateProfile(ctx, q, id, in.Name, in.Email); err != nil {
			return err
		}
		if in.RoleIDs != nil {
			if err := s.repo.DeleteAssignments(ctx, q, id); err != nil {
				return err
			}
			if len(*in.RoleIDs) > 0 {
				if err := s.repo.InsertAssignments(ctx, q, id, *in.RoleIDs); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return Account{}, err
	}
	return s.Get(ctx, id)
}

// Delete removes the account; assignments and credentials are cascaded away
// by storage.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}

// dedupeRoleIDs drops repeated IDs, keeping first-seen order. Never nil.
func dedupeRoleIDs(roleIDs []string) []string {
	out := make([]string, 0, len(roleIDs))
	seen := make(map[string]struct{}, len(roleIDs))
	for _, id := range roleIDs {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
