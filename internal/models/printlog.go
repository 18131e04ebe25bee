package models

import "time"

// Print operation types
const (
	OperationPrint   = "print"
	OperationReprint = "reprint"
)

// Reprint reasons. A damaged reprint consumed fresh paper and re-debits
// inventory; not_printed means nothing physical was consumed.
const (
	ReprintReasonDamaged    = "damaged"
	ReprintReasonNotPrinted = "not_printed"
)

// PrintLog is one immutable entry in the print audit trail. Entries are
// never updated or deleted; reprints append new rows referencing the same
// serial range.
type PrintLog struct {
	ID                int64     `json:"id" db:"id"`
	EntityType        string    `json:"entity_type" db:"entity_type"`
	EntityID          string    `json:"entity_id" db:"entity_id"`
	BranchID          int       `json:"branch_id" db:"branch_id"`
	BranchName        string    `json:"branch_name" db:"branch_name"`
	RoutingNumber     string    `json:"routing_number" db:"routing_number"`
	AccountingNumber  string    `json:"accounting_number,omitempty" db:"accounting_number"`
	AccountNumber     string    `json:"account_number,omitempty" db:"account_number"`
	AccountHolderName string    `json:"account_holder_name,omitempty" db:"account_holder_name"`
	StockClass        string    `json:"stock_class" db:"stock_class"`
	FirstSerial       int       `json:"first_serial" db:"first_serial"`
	LastSerial        int       `json:"last_serial" db:"last_serial"`
	TotalCount        int       `json:"total_count" db:"total_count"`
	NumberOfBooks     int       `json:"number_of_books" db:"number_of_books"`
	CustomStartSerial *int      `json:"custom_start_serial,omitempty" db:"custom_start_serial"`
	OperationType     string    `json:"operation_type" db:"operation_type"`
	ReprintReason     *string   `json:"reprint_reason,omitempty" db:"reprint_reason"`
	PrintedBy         int       `json:"printed_by" db:"printed_by"`
	PrintedByName     string    `json:"printed_by_name" db:"printed_by_name"`
	Notes             string    `json:"notes,omitempty" db:"notes"`
	Reference         string    `json:"reference" db:"reference"`
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
}

// PrintLogFilter narrows print log listings
type PrintLogFilter struct {
	EntityType    string
	EntityID      string
	BranchID      int
	AccountNumber string
	OperationType string
	StartDate     *time.Time
	EndDate       *time.Time
	Page          int
	Limit         int
}

// PrintStatistics aggregates the print log for reporting
type PrintStatistics struct {
	TotalBooks    int            `json:"totalBooks"`
	TotalSheets   int            `json:"totalSheets"`
	PrintCount    int            `json:"printCount"`
	ReprintCount  int            `json:"reprintCount"`
	LastPrintDate *time.Time     `json:"lastPrintDate,omitempty"`
	EntitySerials []EntitySerial `json:"entitySerials"`
}

// EntitySerial reports the last issued serial for one ledger entity
type EntitySerial struct {
	EntityType string `json:"entityType"`
	EntityID   string `json:"entityId"`
	BranchName string `json:"branchName,omitempty"`
	LastSerial int    `json:"lastSerial"`
}
