package domain

import "context"

// UserRepository defines access methods for accounts.
type UserRepository interface {
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	TouchLastLogin(ctx context.Context, id string) error
}

// JobRepository defines persistence for job records. The pipeline executor
// is the sole writer of stage/status/progress for a running job; other
// callers only read.
type JobRepository interface {
	Create(ctx context.Context, job *Job) error
	// GetByID is owner-scoped: a job that exists but belongs to another
	// account reports ErrNotFound, never a permission error.
	GetByID(ctx context.Context, jobID, ownerID string) (*Job, error)
	Update(ctx context.Context, jobID string, patch JobPatch) error
	// ListByOwner returns the owner's jobs most-recent-first.
	ListByOwner(ctx context.Context, ownerID string) ([]Job, error)
}

// CreditLedger holds one integer balance per account. The balance never
// goes negative: Reserve is an atomic check-and-decrement, so two
// concurrent reservations can never both succeed when only one fits.
type CreditLedger interface {
	Reserve(ctx context.Context, accountID string, amount int) error
	Refund(ctx context.Context, accountID string, amount int) error
	// Grant adds purchased credits. Identical semantics to Refund; kept
	// separate so call sites read as what they are.
	Grant(ctx context.Context, accountID string, amount int) error
	Balance(ctx context.Context, accountID string) (int, error)
}
