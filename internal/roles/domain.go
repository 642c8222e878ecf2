package roles

import "time"

// Role is a named bundle of permission strings assignable to accounts.
type Role struct {
	ID          string
	Name        string
	Permissions []string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
