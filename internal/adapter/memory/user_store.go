package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"cgigen/internal/domain"
)

// UserStore is an in-memory account store. It doubles as the credit ledger:
// the single mutex makes Reserve an atomic check-and-decrement, so two
// concurrent reservations can never both drain a balance that only covers one.
type UserStore struct {
	mu    sync.Mutex
	users map[string]*domain.User
}

// NewUserStore creates an empty in-memory user store.
func NewUserStore() *UserStore {
	return &UserStore{users: make(map[string]*domain.User)}
}

// Create inserts a new account. Emails are unique.
func (s *UserStore) Create(ctx context.Context, user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, user.Email) {
			return domain.ErrDuplicateEmail
		}
	}
	cp := *user
	s.users[user.ID] = &cp
	return nil
}

// GetByID fetches an account by id.
func (s *UserStore) GetByID(ctx context.Context, id string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

// GetByEmail fetches an account by email, case-insensitively.
func (s *UserStore) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

// TouchLastLogin stamps the account's last login time.
func (s *UserStore) TouchLastLogin(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return domain.ErrNotFound
	}
	u.LastLoginAt = time.Now()
	return nil
}

// Reserve atomically checks the balance and decrements it.
func (s *UserStore) Reserve(ctx context.Context, accountID string, amount int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[accountID]
	if !ok {
		return domain.ErrNotFound
	}
	if u.Credits < amount {
		return domain.ErrInsufficientCredits
	}
	u.Credits -= amount
	return nil
}

// Refund atomically increments the balance.
func (s *UserStore) Refund(ctx context.Context, accountID string, amount int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[accountID]
	if !ok {
		return domain.ErrNotFound
	}
	u.Credits += amount
	return nil
}

// Grant adds purchased credits. Same semantics as Refund.
func (s *UserStore) Grant(ctx context.Context, accountID string, amount int) error {
	return s.Refund(ctx, accountID, amount)
}

// Balance reads the current credit balance.
func (s *UserStore) Balance(ctx context.Context, accountID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[accountID]
	if !ok {
		return 0, domain.ErrNotFound
	}
	return u.Credits, nil
}

var (
	_ domain.UserRepository = (*UserStore)(nil)
	_ domain.CreditLedger   = (*UserStore)(nil)
)
