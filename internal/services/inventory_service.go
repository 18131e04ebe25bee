package services

import (
	"database/sql"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"os"
	"strconv"

	"github.com/chequeops/backend/internal/audit"
	"github.com/chequeops/backend/internal/middleware"
	"github.com/chequeops/backend/internal/models"
)

// InventoryService manages blank check paper stock. Stock only ever moves
// through recorded transactions: administrative restocks here, debits in
// the allocation engine.
type InventoryService struct {
	db                *sql.DB
	audit             *audit.Logger
	validator         *ValidationHelper
	lowStockThreshold int
}

func NewInventoryService(db *sql.DB) *InventoryService {
	lowStockThreshold := 10
	if env := os.Getenv("INVENTORY_LOW_STOCK_THRESHOLD"); env != "" {
		if val, err := strconv.Atoi(env); err == nil {
			lowStockThreshold = val
		}
	}
	return &InventoryService{
		db:                db,
		audit:             audit.NewLogger(),
		validator:         NewValidationHelper(),
		lowStockThreshold: lowStockThreshold,
	}
}

// GetInventory reports current stock levels
// @Summary Get inventory levels
// @Description Report the book count per stock class, flagging classes below the low-stock threshold
// @Tags inventory
// @Produce json
// @Success 200 {object} object{inventory=[]object,lowStock=[]string}
// @Failure 500 {object} ErrorResponse
// @Router /inventory [get]
func (is *InventoryService) GetInventory(w http.ResponseWriter, r *http.Request) {
	rows, err := is.db.Query(`
		SELECT stock_class, quantity, updated_at FROM inventory ORDER BY stock_class
	`)
	if err != nil {
		log.Printf("[INVENTORY] Failed to fetch inventory: %v", err)
		SendErrorResponse(w, "Failed to fetch inventory", http.StatusInternalServerError, nil)
		return
	}
	defer rows.Close()

	records := []models.InventoryRecord{}
	lowStock := []string{}
	for rows.Next() {
		var rec models.InventoryRecord
		if err := rows.Scan(&rec.StockClass, &rec.Quantity, &rec.UpdatedAt); err != nil {
			SendErrorResponse(w, "Failed to fetch inventory", http.StatusInternalServerError, nil)
			return
		}
		if rec.Quantity < is.lowStockThreshold {
			lowStock = append(lowStock, rec.StockClass)
		}
		records = append(records, rec)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"inventory": records,
		"lowStock":  lowStock,
	})
}

// AddStock records an administrative restock
// @Summary Add stock
// @Description Increase the book count for a stock class and record the movement (admin only)
// @Tags inventory
// @Accept json
// @Produce json
// @Param request body models.AddStockRequest true "Restock request"
// @Success 200 {object} object{stockClass=string,quantity=int}
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /inventory/add [post]
func (is *InventoryService) AddStock(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	maxBytes := 1_048_576 // 1 MB
	r.Body = http.MaxBytesReader(w, r.Body, int64(maxBytes))

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var req models.AddStockRequest
	if err := dec.Decode(&req); err != nil {
		SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}

	if err := dec.Decode(&struct{}{}); err != io.EOF {
		SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return
	}

	if err := is.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	tx, err := is.db.Begin()
	if err != nil {
		log.Printf("[INVENTORY] Failed to begin transaction: %v", err)
		SendErrorResponse(w, "Failed to add stock", http.StatusInternalServerError, nil)
		return
	}
	defer tx.Rollback()

	var newQuantity int
	err = tx.QueryRow(`
		UPDATE inventory
		SET quantity = quantity + $1, updated_at = NOW()
		WHERE stock_class = $2
		RETURNING quantity
	`, req.Quantity, req.StockClass).Scan(&newQuantity)
	if err != nil {
		log.Printf("[INVENTORY] Failed to add stock for %s: %v", req.StockClass, err)
		SendErrorResponse(w, "Failed to add stock", http.StatusInternalServerError, nil)
		return
	}

	_, err = tx.Exec(`
		INSERT INTO inventory_transactions (stock_class, delta, tx_type, user_id, user_name, notes)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, req.StockClass, req.Quantity, models.InventoryAdd, actor.UserID, actor.UserName, req.Notes)
	if err != nil {
		log.Printf("[INVENTORY] Failed to record stock transaction: %v", err)
		SendErrorResponse(w, "Failed to add stock", http.StatusInternalServerError, nil)
		return
	}

	if err := tx.Commit(); err != nil {
		log.Printf("[INVENTORY] Failed to commit restock: %v", err)
		SendErrorResponse(w, "Failed to add stock", http.StatusInternalServerError, nil)
		return
	}

	is.audit.LogStockChange(req.StockClass, models.InventoryAdd, req.Quantity, actor.UserName)
	log.Printf("[INVENTORY] Added %d books of %s stock (now %d) by user %d",
		req.Quantity, req.StockClass, newQuantity, actor.UserID)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"stockClass": req.StockClass,
		"quantity":   newQuantity,
	})
}

// ListTransactions lists stock movements, newest first
// @Summary List inventory transactions
// @Description List recorded stock movements with optional stock class filter
// @Tags inventory
// @Produce json
// @Param stockClass query string false "Filter by stock class"
// @Param limit query int false "Number of rows (default 50, max 200)"
// @Success 200 {object} object{transactions=[]models.InventoryTransaction,count=int}
// @Failure 500 {object} ErrorResponse
// @Router /inventory/transactions [get]
func (is *InventoryService) ListTransactions(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 1 && n <= 200 {
			limit = n
		}
	}

	stockClass := r.URL.Query().Get("stockClass")
	if stockClass != "" && !models.ValidStockClass(stockClass) {
		SendErrorResponse(w, "Unknown stock class", http.StatusBadRequest, nil)
		return
	}

	query := `
		SELECT id, stock_class, delta, tx_type, user_id, user_name, COALESCE(notes, ''), created_at
		FROM inventory_transactions
	`
	var args []interface{}
	if stockClass != "" {
		query += " WHERE stock_class = $1 ORDER BY created_at DESC LIMIT $2"
		args = append(args, stockClass, limit)
	} else {
		query += " ORDER BY created_at DESC LIMIT $1"
		args = append(args, limit)
	}

	rows, err := is.db.Query(query, args...)
	if err != nil {
		log.Printf("[INVENTORY] Failed to fetch transactions: %v", err)
		SendErrorResponse(w, "Failed to fetch inventory transactions", http.StatusInternalServerError, nil)
		return
	}
	defer rows.Close()

	transactions := []models.InventoryTransaction{}
	for rows.Next() {
		var it models.InventoryTransaction
		err := rows.Scan(&it.ID, &it.StockClass, &it.Delta, &it.TxType,
			&it.UserID, &it.UserName, &it.Notes, &it.CreatedAt)
		if err != nil {
			SendErrorResponse(w, "Failed to fetch inventory transactions", http.StatusInternalServerError, nil)
			return
		}
		transactions = append(transactions, it)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"transactions": transactions,
		"count":        len(transactions),
	})
}
