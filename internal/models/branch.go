package models

import "time"

// Branch represents a bank branch that issues checkbooks
type Branch struct {
	ID               int       `json:"id" db:"id"`
	BranchName       string    `json:"branch_name" db:"branch_name"`
	BranchLocation   string    `json:"branch_location" db:"branch_location"`
	RoutingNumber    string    `json:"routing_number" db:"routing_number"`
	AccountingNumber string    `json:"accounting_number,omitempty" db:"accounting_number"`
	BranchCode       string    `json:"branch_code,omitempty" db:"branch_code"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time `json:"updated_at" db:"updated_at"`
}

// CreateBranchRequest represents branch creation payload
type CreateBranchRequest struct {
	BranchName       string `json:"branchName" validate:"required,min=2,max=100"`
	BranchLocation   string `json:"branchLocation" validate:"max=200"`
	RoutingNumber    string `json:"routingNumber" validate:"required,numeric,min=6,max=10"`
	AccountingNumber string `json:"accountingNumber" validate:"omitempty,numeric,max=20"`
	BranchCode       string `json:"branchCode" validate:"omitempty,alphanum,max=6"`
}

// UpdateBranchRequest represents branch update payload
type UpdateBranchRequest struct {
	BranchName       string `json:"branchName" validate:"omitempty,min=2,max=100"`
	BranchLocation   string `json:"branchLocation" validate:"omitempty,max=200"`
	RoutingNumber    string `json:"routingNumber" validate:"omitempty,numeric,min=6,max=10"`
	AccountingNumber string `json:"accountingNumber" validate:"omitempty,numeric,max=20"`
	BranchCode       string `json:"branchCode" validate:"omitempty,alphanum,max=6"`
}
