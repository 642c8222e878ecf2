package accounts

import "time"

// Account is a managed identity plus its derived role assignments. The
// email-verified flag is owned by the identity provider and only surfaced here.
type Account struct {
	ID            string
	Name          string
	Email         string
	EmailVerified bool
	Image         *string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	RoleIDs       []string
}
