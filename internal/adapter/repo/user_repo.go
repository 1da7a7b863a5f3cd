package repo

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"cgigen/internal/domain"
)

// UserRepositoryPG implements domain.UserRepository and domain.CreditLedger
// backed by PostgreSQL. The ledger operations lean on row-level atomicity:
// a reservation is a single conditional UPDATE, so concurrent reserves on
// one account serialize inside the database.
type UserRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewUserRepository creates a new UserRepositoryPG.
func NewUserRepository(pool *pgxpool.Pool) *UserRepositoryPG {
	return &UserRepositoryPG{pool: pool}
}

// Create inserts a new account.
func (r *UserRepositoryPG) Create(ctx context.Context, user *domain.User) error {
	query := `
INSERT INTO users (id, name, email, password_hash, credits)
VALUES ($1, $2, lower($3), $4, $5);
`
	_, err := r.pool.Exec(ctx, query, user.ID, user.Name, user.Email, user.PasswordHash, user.Credits)
	if err != nil && isUniqueViolation(err) {
		return domain.ErrDuplicateEmail
	}
	return err
}

// GetByID fetches an account by id.
func (r *UserRepositoryPG) GetByID(ctx context.Context, id string) (*domain.User, error) {
	row := r.pool.QueryRow(ctx, `SELECT id, name, email, password_hash, credits, created_at, last_login_at FROM users WHERE id = $1`, id)
	return scanUser(row)
}

// GetByEmail fetches an account by email.
func (r *UserRepositoryPG) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	row := r.pool.QueryRow(ctx, `SELECT id, name, email, password_hash, credits, created_at, last_login_at FROM users WHERE email = lower($1)`, email)
	return scanUser(row)
}

// TouchLastLogin stamps the account's last login time.
func (r *UserRepositoryPG) TouchLastLogin(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `UPDATE users SET last_login_at = NOW() WHERE id = $1`, id)
	return err
}

// Reserve atomically checks the balance and decrements it. The conditional
// UPDATE guarantees the balance never goes negative.
func (r *UserRepositoryPG) Reserve(ctx context.Context, accountID string, amount int) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE users SET credits = credits - $2 WHERE id = $1 AND credits >= $2`,
		accountID, amount)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		if _, err := r.GetByID(ctx, accountID); err != nil {
			return err
		}
		return domain.ErrInsufficientCredits
	}
	return nil
}

// Refund atomically increments the balance.
func (r *UserRepositoryPG) Refund(ctx context.Context, accountID string, amount int) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE users SET credits = credits + $2 WHERE id = $1`,
		accountID, amount)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Grant adds purchased credits. Same semantics as Refund.
func (r *UserRepositoryPG) Grant(ctx context.Context, accountID string, amount int) error {
	return r.Refund(ctx, accountID, amount)
}

// Balance reads the current credit balance.
func (r *UserRepositoryPG) Balance(ctx context.Context, accountID string) (int, error) {
	var credits int
	err := r.pool.QueryRow(ctx, `SELECT credits FROM users WHERE id = $1`, accountID).Scan(&credits)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, domain.ErrNotFound
	}
	return credits, err
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Credits, &u.CreatedAt, &u.LastLoginAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

func isUniqueViolation(err error) bool {
	var pgErr interface{ SQLState() string }
	if errors.As(err, &pgErr) {
		return pgErr.SQLState() == "23505"
	}
	return false
}

var (
	_ domain.UserRepository = (*UserRepositoryPG)(nil)
	_ domain.CreditLedger   = (*UserRepositoryPG)(nil)
)
