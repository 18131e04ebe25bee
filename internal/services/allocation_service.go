package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/chequeops/backend/internal/audit"
	"github.com/chequeops/backend/internal/config"
	"github.com/chequeops/backend/internal/models"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

const maxAllocationRetries = 3

// AllocationEngine issues serial number ranges. Every range it hands out
// is unique per ledger entity, debits inventory atomically, and leaves an
// append-only print log entry, all inside one serializable database
// transaction.
type AllocationEngine struct {
	db       *sql.DB
	policies *config.PrintPolicies
	audit    *audit.Logger
}

// AllocationRequest describes one print run. Branch and account fields are
// snapshots taken by the caller; the log entry must stay readable even if
// the branch or account record changes later.
type AllocationRequest struct {
	EntityType        string
	EntityID          string
	StockClass        string
	Books             int
	CustomStart       int
	BranchID          int
	BranchName        string
	RoutingNumber     string
	AccountingNumber  string
	AccountNumber     string
	AccountHolderName string
	Notes             string
	Actor             models.Actor
}

// AllocationResult is the issued range plus its audit log entry
type AllocationResult struct {
	LogID         int64  `json:"logId"`
	Reference     string `json:"reference"`
	FirstSerial   int    `json:"firstSerial"`
	LastSerial    int    `json:"lastSerial"`
	TotalCount    int    `json:"totalCount"`
	NumberOfBooks int    `json:"numberOfBooks"`
}

// ReprintRequest re-issues part or all of a previously allocated range.
// FirstSerial/LastSerial of zero means the full original range.
type ReprintRequest struct {
	LogID       int64
	FirstSerial int
	LastSerial  int
	Reason      string
	Notes       string
	Actor       models.Actor
}

func NewAllocationEngine(db *sql.DB, policies *config.PrintPolicies) *AllocationEngine {
	return &AllocationEngine{
		db:       db,
		policies: policies,
		audit:    audit.NewLogger(),
	}
}

// Allocate issues the next serial range for an entity. Serialization and
// deadlock failures retry the whole transaction up to maxAllocationRetries
// times; business rule failures return an *AllocationError immediately.
func (e *AllocationEngine) Allocate(ctx context.Context, req *AllocationRequest) (*AllocationResult, error) {
	policy, ok := e.policies.ForStockClass(req.StockClass)
	if !ok {
		return nil, newAllocationError(KindInvalidRange, req.EntityType, req.EntityID,
			fmt.Sprintf("unknown stock class %q", req.StockClass))
	}

	if req.Books <= 0 {
		req.Books = 1
	}
	if req.Books > policy.MaxBooks {
		return nil, newAllocationError(KindInvalidRange, req.EntityType, req.EntityID,
			fmt.Sprintf("requested %d books, maximum for %s stock is %d", req.Books, req.StockClass, policy.MaxBooks))
	}
	if req.CustomStart < 0 {
		return nil, newAllocationError(KindInvalidRange, req.EntityType, req.EntityID, "custom start serial must be positive")
	}

	var result *AllocationResult
	var err error
	for attempt := 1; attempt <= maxAllocationRetries; attempt++ {
		result, err = e.allocateOnce(ctx, req, policy)
		if err == nil {
			e.audit.LogAllocation(result.Reference, req.EntityType, req.EntityID,
				result.FirstSerial, result.LastSerial, req.StockClass)
			return result, nil
		}
		if !isRetryableTxError(err) || attempt == maxAllocationRetries {
			break
		}
		log.Printf("[ALLOCATION] Serialization conflict for %s %s (attempt %d/%d), retrying: %v",
			req.EntityType, req.EntityID, attempt, maxAllocationRetries, err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(attempt) * 50 * time.Millisecond):
		}
	}

	e.audit.LogError("", req.EntityType, req.EntityID, err)
	return nil, err
}

func (e *AllocationEngine) allocateOnce(ctx context.Context, req *AllocationRequest, policy config.StockPolicy) (*AllocationResult, error) {
	tx, err := e.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Create the ledger row on first use, then lock it for the duration of
	// the allocation. The row lock serializes concurrent prints for the
	// same entity even before serializable isolation kicks in.
	_, err = tx.ExecContext(ctx, `
		INSERT INTO serial_ledgers (entity_type, entity_id, last_serial)
		VALUES ($1, $2, 0)
		ON CONFLICT (entity_type, entity_id) DO NOTHING
	`, req.EntityType, req.EntityID)
	if err != nil {
		return nil, fmt.Errorf("failed to init serial ledger: %w", err)
	}

	var lastSerial int
	err = tx.QueryRowContext(ctx, `
		SELECT last_serial FROM serial_ledgers
		WHERE entity_type = $1 AND entity_id = $2
		FOR UPDATE
	`, req.EntityType, req.EntityID).Scan(&lastSerial)
	if err != nil {
		return nil, fmt.Errorf("failed to lock serial ledger: %w", err)
	}

	firstSerial := lastSerial + 1
	if req.CustomStart > 0 {
		firstSerial = req.CustomStart
	}
	totalCount := req.Books * policy.SheetsPerBook
	newLastSerial := firstSerial + totalCount - 1

	if firstSerial < 1 {
		return nil, newAllocationError(KindInvalidRange, req.EntityType, req.EntityID, "serial range must start at 1 or above")
	}

	// Inventory is locked and checked before the range is committed so a
	// print never succeeds against paper that is not on the shelf.
	var quantity int
	err = tx.QueryRowContext(ctx, `
		SELECT quantity FROM inventory WHERE stock_class = $1 FOR UPDATE
	`, req.StockClass).Scan(&quantity)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, newAllocationError(KindInsufficientStock, req.EntityType, req.EntityID,
				fmt.Sprintf("no inventory record for stock class %q", req.StockClass))
		}
		return nil, fmt.Errorf("failed to lock inventory: %w", err)
	}
	if quantity < req.Books {
		return nil, newAllocationError(KindInsufficientStock, req.EntityType, req.EntityID,
			fmt.Sprintf("%s stock has %d books, %d requested", req.StockClass, quantity, req.Books))
	}

	// Overlap guard over prior print entries. Two ranges [a1,a2] and
	// [b1,b2] overlap exactly when a1 <= b2 AND b1 <= a2.
	var conflict bool
	err = tx.QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM print_logs
			WHERE entity_type = $1 AND entity_id = $2
			  AND operation_type = 'print'
			  AND first_serial <= $3 AND last_serial >= $4
		)
	`, req.EntityType, req.EntityID, newLastSerial, firstSerial).Scan(&conflict)
	if err != nil {
		return nil, fmt.Errorf("failed to check serial overlap: %w", err)
	}
	if conflict {
		return nil, &AllocationError{
			Kind:        KindSerialRangeConflict,
			EntityType:  req.EntityType,
			EntityID:    req.EntityID,
			FirstSerial: firstSerial,
			LastSerial:  newLastSerial,
			Message:     fmt.Sprintf("range %d-%d overlaps a previously printed range", firstSerial, newLastSerial),
		}
	}

	result, err := tx.ExecContext(ctx, `
		UPDATE inventory
		SET quantity = quantity - $1, updated_at = NOW()
		WHERE stock_class = $2 AND quantity >= $1
	`, req.Books, req.StockClass)
	if err != nil {
		return nil, fmt.Errorf("failed to debit inventory: %w", err)
	}
	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return nil, newAllocationError(KindInsufficientStock, req.EntityType, req.EntityID,
			fmt.Sprintf("%s stock exhausted during allocation", req.StockClass))
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO inventory_transactions (stock_class, delta, tx_type, user_id, user_name, notes)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, req.StockClass, -req.Books, models.InventoryDeduct, req.Actor.UserID, req.Actor.UserName,
		fmt.Sprintf("print %s %s", req.EntityType, req.EntityID))
	if err != nil {
		return nil, fmt.Errorf("failed to record inventory transaction: %w", err)
	}

	if req.CustomStart > 0 {
		_, err = tx.ExecContext(ctx, `
			UPDATE serial_ledgers
			SET last_serial = $1, custom_start_serial = $2, updated_at = NOW()
			WHERE entity_type = $3 AND entity_id = $4
		`, newLastSerial, req.CustomStart, req.EntityType, req.EntityID)
	} else {
		_, err = tx.ExecContext(ctx, `
			UPDATE serial_ledgers
			SET last_serial = $1, updated_at = NOW()
			WHERE entity_type = $2 AND entity_id = $3
		`, newLastSerial, req.EntityType, req.EntityID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to advance serial ledger: %w", err)
	}

	// For account entities the account row mirrors the ledger so account
	// queries can report the last printed serial without a join.
	if req.EntityType == models.EntityAccount {
		result, err = tx.ExecContext(ctx, `
			UPDATE accounts
			SET last_printed_serial = $1, updated_at = NOW()
			WHERE account_number = $2
		`, newLastSerial, req.AccountNumber)
		if err != nil {
			return nil, fmt.Errorf("failed to update account serial: %w", err)
		}
		rowsAffected, _ = result.RowsAffected()
		if rowsAffected == 0 {
			return nil, newAllocationError(KindEntityNotFound, req.EntityType, req.EntityID,
				fmt.Sprintf("account %s not found", req.AccountNumber))
		}
	}

	reference := uuid.New().String()
	var customStart *int
	if req.CustomStart > 0 {
		customStart = &req.CustomStart
	}

	var logID int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO print_logs
		(entity_type, entity_id, branch_id, branch_name, routing_number, accounting_number,
		 account_number, account_holder_name, stock_class, first_serial, last_serial,
		 total_count, number_of_books, custom_start_serial, operation_type, printed_by,
		 printed_by_name, notes, reference)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
		RETURNING id
	`, req.EntityType, req.EntityID, req.BranchID, req.BranchName, req.RoutingNumber,
		nullableString(req.AccountingNumber), nullableString(req.AccountNumber),
		nullableString(req.AccountHolderName), req.StockClass, firstSerial, newLastSerial,
		totalCount, req.Books, customStart, models.OperationPrint, req.Actor.UserID,
		req.Actor.UserName, req.Notes, reference).Scan(&logID)
	if err != nil {
		return nil, fmt.Errorf("failed to write print log: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit allocation: %w", err)
	}

	return &AllocationResult{
		LogID:         logID,
		Reference:     reference,
		FirstSerial:   firstSerial,
		LastSerial:    newLastSerial,
		TotalCount:    totalCount,
		NumberOfBooks: req.Books,
	}, nil
}

// Reprint re-issues serials from an existing print log entry. The serial
// ledger never moves; a damaged reprint consumed fresh paper and debits
// one book of the same stock class, a not_printed reprint touches nothing
// but the audit trail.
func (e *AllocationEngine) Reprint(ctx context.Context, req *ReprintRequest) (*AllocationResult, error) {
	if req.Reason != models.ReprintReasonDamaged && req.Reason != models.ReprintReasonNotPrinted {
		return nil, newAllocationError(KindInvalidRange, "", "",
			fmt.Sprintf("unknown reprint reason %q", req.Reason))
	}

	var result *AllocationResult
	var err error
	for attempt := 1; attempt <= maxAllocationRetries; attempt++ {
		result, err = e.reprintOnce(ctx, req)
		if err == nil {
			return result, nil
		}
		if !isRetryableTxError(err) || attempt == maxAllocationRetries {
			break
		}
		log.Printf("[ALLOCATION] Serialization conflict on reprint of log %d (attempt %d/%d), retrying: %v",
			req.LogID, attempt, maxAllocationRetries, err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(attempt) * 50 * time.Millisecond):
		}
	}

	e.audit.LogError("", "", fmt.Sprintf("log:%d", req.LogID), err)
	return nil, err
}

func (e *AllocationEngine) reprintOnce(ctx context.Context, req *ReprintRequest) (*AllocationResult, error) {
	tx, err := e.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var orig models.PrintLog
	var accountingNumber, accountNumber, accountHolderName sql.NullString
	err = tx.QueryRowContext(ctx, `
		SELECT id, entity_type, entity_id, branch_id, branch_name, routing_number,
		       accounting_number, account_number, account_holder_name, stock_class,
		       first_serial, last_serial, number_of_books
		FROM print_logs
		WHERE id = $1 AND operation_type = 'print'
	`, req.LogID).Scan(
		&orig.ID, &orig.EntityType, &orig.EntityID, &orig.BranchID, &orig.BranchName,
		&orig.RoutingNumber, &accountingNumber, &accountNumber, &accountHolderName,
		&orig.StockClass, &orig.FirstSerial, &orig.LastSerial, &orig.NumberOfBooks,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, newAllocationError(KindLogNotFound, "", "",
				fmt.Sprintf("print log %d not found", req.LogID))
		}
		return nil, fmt.Errorf("failed to load print log: %w", err)
	}

	firstSerial, lastSerial := req.FirstSerial, req.LastSerial
	fullRange := firstSerial == 0 && lastSerial == 0
	if fullRange {
		firstSerial, lastSerial = orig.FirstSerial, orig.LastSerial
	}
	if firstSerial > lastSerial || firstSerial < orig.FirstSerial || lastSerial > orig.LastSerial {
		return nil, &AllocationError{
			Kind:        KindInvalidRange,
			EntityType:  orig.EntityType,
			EntityID:    orig.EntityID,
			FirstSerial: firstSerial,
			LastSerial:  lastSerial,
			Message: fmt.Sprintf("reprint range %d-%d must lie within original range %d-%d",
				firstSerial, lastSerial, orig.FirstSerial, orig.LastSerial),
		}
	}

	if req.Reason == models.ReprintReasonDamaged {
		result, err := tx.ExecContext(ctx, `
			UPDATE inventory
			SET quantity = quantity - 1, updated_at = NOW()
			WHERE stock_class = $1 AND quantity >= 1
		`, orig.StockClass)
		if err != nil {
			return nil, fmt.Errorf("failed to debit inventory: %w", err)
		}
		rowsAffected, _ := result.RowsAffected()
		if rowsAffected == 0 {
			return nil, newAllocationError(KindInsufficientStock, orig.EntityType, orig.EntityID,
				fmt.Sprintf("%s stock exhausted, cannot reprint damaged book", orig.StockClass))
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO inventory_transactions (stock_class, delta, tx_type, user_id, user_name, notes)
			VALUES ($1, -1, $2, $3, $4, $5)
		`, orig.StockClass, models.InventoryDeduct, req.Actor.UserID, req.Actor.UserName,
			fmt.Sprintf("damaged reprint of log %d", req.LogID))
		if err != nil {
			return nil, fmt.Errorf("failed to record inventory transaction: %w", err)
		}
	}

	books := 1
	if fullRange {
		books = orig.NumberOfBooks
	}
	totalCount := lastSerial - firstSerial + 1
	reference := uuid.New().String()

	var logID int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO print_logs
		(entity_type, entity_id, branch_id, branch_name, routing_number, accounting_number,
		 account_number, account_holder_name, stock_class, first_serial, last_serial,
		 total_count, number_of_books, operation_type, reprint_reason, printed_by,
		 printed_by_name, notes, reference)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
		RETURNING id
	`, orig.EntityType, orig.EntityID, orig.BranchID, orig.BranchName, orig.RoutingNumber,
		accountingNumber, accountNumber, accountHolderName, orig.StockClass,
		firstSerial, lastSerial, totalCount, books, models.OperationReprint, req.Reason,
		req.Actor.UserID, req.Actor.UserName, req.Notes, reference).Scan(&logID)
	if err != nil {
		return nil, fmt.Errorf("failed to write reprint log: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit reprint: %w", err)
	}

	e.audit.LogReprint(reference, orig.EntityType, orig.EntityID, firstSerial, lastSerial, req.Reason)

	return &AllocationResult{
		LogID:         logID,
		Reference:     reference,
		FirstSerial:   firstSerial,
		LastSerial:    lastSerial,
		TotalCount:    totalCount,
		NumberOfBooks: books,
	}, nil
}

// isRetryableTxError reports whether err is a serialization or deadlock
// failure that a fresh transaction attempt can resolve.
func isRetryableTxError(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "40001" || pqErr.Code == "40P01"
	}
	return false
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
