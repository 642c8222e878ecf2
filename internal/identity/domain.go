package identity

import "time"

// Caller is the authenticated actor resolved from a session token.
type Caller struct {
	ID    string
	Name  string
	Email string
}

// Identity is the account record owned by the identity provider.
type Identity struct {
	ID            string
	Name          string
	Email         string
	EmailVerified bool
	Image         *string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
