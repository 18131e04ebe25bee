package models

import "time"

// Stock classes of blank check paper. Each class has its own quantity and
// per-book sheet count; inventory is counted in books, not sheets.
const (
	StockIndividual = "individual"
	StockCorporate  = "corporate"
	StockCertified  = "certified"
)

// Inventory transaction types
const (
	InventoryAdd    = "ADD"
	InventoryDeduct = "DEDUCT"
)

// InventoryRecord is the current book count for one stock class
type InventoryRecord struct {
	StockClass string    `json:"stock_class" db:"stock_class"`
	Quantity   int       `json:"quantity" db:"quantity"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
}

// InventoryTransaction is one append-only stock movement record
type InventoryTransaction struct {
	ID         int64     `json:"id" db:"id"`
	StockClass string    `json:"stock_class" db:"stock_class"`
	Delta      int       `json:"delta" db:"delta"`
	TxType     string    `json:"tx_type" db:"tx_type"`
	UserID     int       `json:"user_id" db:"user_id"`
	UserName   string    `json:"user_name" db:"user_name"`
	Notes      string    `json:"notes,omitempty" db:"notes"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// AddStockRequest represents an administrative restock
type AddStockRequest struct {
	StockClass string `json:"stockClass" validate:"required,oneof=individual corporate certified"`
	Quantity   int    `json:"quantity" validate:"required,gt=0,lte=100000"`
	Notes      string `json:"notes" validate:"max=200"`
}

// ValidStockClass reports whether s names a known stock class
func ValidStockClass(s string) bool {
	switch s {
	case StockIndividual, StockCorporate, StockCertified:
		return true
	}
	return false
}
