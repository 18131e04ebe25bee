package models

import "time"

// User is a back-office operator. Non-admin users are scoped to a branch
// and cannot print for accounts belonging to other branches.
type User struct {
	ID                  int        `json:"id" db:"id"`
	Username            string     `json:"username" db:"username"`
	BranchID            *int       `json:"branch_id,omitempty" db:"branch_id"`
	IsAdmin             bool       `json:"is_admin" db:"is_admin"`
	IsActive            bool       `json:"is_active" db:"is_active"`
	FailedLoginAttempts int        `json:"-" db:"failed_login_attempts"`
	LastLogin           *time.Time `json:"last_login,omitempty" db:"last_login"`
	CreatedAt           time.Time  `json:"created_at" db:"created_at"`
}

// Actor identifies who performed an audited operation
type Actor struct {
	UserID   int    `json:"userId"`
	UserName string `json:"userName"`
	BranchID *int   `json:"branchId,omitempty"`
	IsAdmin  bool   `json:"isAdmin"`
}
