package domain

import "time"

// SignupCreditGrant is the free credit balance every new account starts with.
const SignupCreditGrant = 5

// User represents an authenticated account within the platform.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Credits      int
	CreatedAt    time.Time
	LastLoginAt  time.Time
}
