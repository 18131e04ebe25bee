package models

import "time"

// Account types as reported by the core-banking system
const (
	AccountTypeIndividual = 1
	AccountTypeCorporate  = 2
)

// Account is the local cache of a core-banking account. Rows are created
// lazily on first query/print; last_printed_serial is advanced only by the
// allocation engine inside its transaction.
type Account struct {
	ID                int       `json:"id" db:"id"`
	AccountNumber     string    `json:"account_number" db:"account_number"`
	AccountHolderName string    `json:"account_holder_name" db:"account_holder_name"`
	AccountType       int       `json:"account_type" db:"account_type"`
	BranchID          *int      `json:"branch_id,omitempty" db:"branch_id"`
	LastPrintedSerial int       `json:"last_printed_serial" db:"last_printed_serial"`
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time `json:"updated_at" db:"updated_at"`
}

// SerialLedger tracks the highest serial issued for one entity. Entity is
// an account for standard checkbooks and a branch for certified checks.
type SerialLedger struct {
	EntityType        string    `json:"entity_type" db:"entity_type"`
	EntityID          string    `json:"entity_id" db:"entity_id"`
	LastSerial        int       `json:"last_serial" db:"last_serial"`
	CustomStartSerial *int      `json:"custom_start_serial,omitempty" db:"custom_start_serial"`
	UpdatedAt         time.Time `json:"updated_at" db:"updated_at"`
}

// Serial ledger entity types
const (
	EntityAccount = "account"
	EntityBranch  = "branch"
)
