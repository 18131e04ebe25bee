package services

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/chequeops/backend/internal/middleware"
	"github.com/chequeops/backend/internal/models"
	"github.com/chequeops/backend/internal/render"
	"github.com/go-chi/chi/v5"
)

// PrintLogService serves the append-only print audit trail: listings,
// statistics, and the reprint operation.
type PrintLogService struct {
	db        *sql.DB
	engine    *AllocationEngine
	renderer  *render.Writer
	validator *ValidationHelper
}

// ReprintLogRequest represents a reprint order against an existing log entry
// @Description Reprint request structure
type ReprintLogRequest struct {
	FirstSerial int    `json:"firstSerial,omitempty" validate:"omitempty,gt=0" example:"101"`
	LastSerial  int    `json:"lastSerial,omitempty" validate:"omitempty,gt=0" example:"125"`
	Reason      string `json:"reason" validate:"required,oneof=damaged not_printed" example:"damaged"`
	Notes       string `json:"notes,omitempty" validate:"max=200"`
}

func NewPrintLogService(db *sql.DB, engine *AllocationEngine, renderer *render.Writer) *PrintLogService {
	return &PrintLogService{
		db:        db,
		engine:    engine,
		renderer:  renderer,
		validator: NewValidationHelper(),
	}
}

// ListLogs lists print log entries with filters
// @Summary List print logs
// @Description List print log entries, newest first, with optional filters
// @Tags logs
// @Produce json
// @Param entityType query string false "Filter by entity type (account or branch)"
// @Param accountNumber query string false "Filter by account number"
// @Param operationType query string false "Filter by operation (print or reprint)"
// @Param branchId query int false "Filter by branch (admin only)"
// @Param startDate query string false "Start date (RFC 3339)"
// @Param endDate query string false "End date (RFC 3339)"
// @Param page query int false "Page number (default 1)"
// @Param limit query int false "Page size (default 50, max 200)"
// @Success 200 {object} object{logs=[]models.PrintLog,count=int,page=int}
// @Failure 500 {object} ErrorResponse
// @Router /print-logs [get]
func (pl *PrintLogService) ListLogs(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	filter := parseLogFilter(r)

	// Non-admin operators only see their own branch
	if !actor.IsAdmin {
		if actor.BranchID == nil {
			SendErrorResponse(w, "Operator has no branch assignment", http.StatusForbidden, nil)
			return
		}
		filter.BranchID = *actor.BranchID
	}

	logs, err := pl.fetchLogs(filter)
	if err != nil {
		log.Printf("[PRINTLOG] Failed to fetch logs: %v", err)
		SendErrorResponse(w, "Failed to fetch print logs", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"logs":  logs,
		"count": len(logs),
		"page":  filter.Page,
	})
}

// GetStatistics reports aggregate print statistics
// @Summary Print statistics
// @Description Aggregate book, sheet, and operation counts over the print log, plus per-entity last serials
// @Tags logs
// @Produce json
// @Param branchId query int false "Restrict to one branch (admin only)"
// @Success 200 {object} models.PrintStatistics
// @Failure 500 {object} ErrorResponse
// @Router /print-logs/statistics [get]
func (pl *PrintLogService) GetStatistics(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	branchID := 0
	if v := r.URL.Query().Get("branchId"); v != "" {
		branchID, _ = strconv.Atoi(v)
	}
	if !actor.IsAdmin {
		if actor.BranchID == nil {
			SendErrorResponse(w, "Operator has no branch assignment", http.StatusForbidden, nil)
			return
		}
		branchID = *actor.BranchID
	}

	stats, err := pl.fetchStatistics(branchID)
	if err != nil {
		log.Printf("[PRINTLOG] Failed to compute statistics: %v", err)
		SendErrorResponse(w, "Failed to compute statistics", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(stats)
}

// Reprint re-issues serials from an existing print log entry
// @Summary Reprint a serial range
// @Description Reprint part or all of a logged range. Reason damaged debits one book of stock; not_printed leaves inventory untouched. The serial ledger never moves.
// @Tags logs
// @Accept json
// @Produce json
// @Param id path int true "Print log ID"
// @Param request body ReprintLogRequest true "Reprint request"
// @Success 201 {object} AllocationResult
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Router /print-logs/{id}/reprint [post]
func (pl *PrintLogService) Reprint(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	logID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || logID <= 0 {
		SendErrorResponse(w, "Invalid print log ID", http.StatusBadRequest, nil)
		return
	}

	maxBytes := 1_048_576 // 1 MB
	r.Body = http.MaxBytesReader(w, r.Body, int64(maxBytes))

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var req ReprintLogRequest
	if err := dec.Decode(&req); err != nil {
		SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}

	if err := dec.Decode(&struct{}{}); err != io.EOF {
		SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return
	}

	if err := pl.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	orig, err := pl.fetchLog(logID)
	if err != nil {
		if err == sql.ErrNoRows {
			SendErrorResponse(w, "Print log not found", http.StatusNotFound, nil)
			return
		}
		SendErrorResponse(w, "Failed to load print log", http.StatusInternalServerError, nil)
		return
	}

	if !actor.IsAdmin && (actor.BranchID == nil || orig.BranchID != *actor.BranchID) {
		SendErrorResponse(w, "Print log belongs to another branch", http.StatusForbidden, nil)
		return
	}

	log.Printf("[PRINTLOG] Reprint of log %d (%s) by user %d", logID, req.Reason, actor.UserID)

	result, err := pl.engine.Reprint(r.Context(), &ReprintRequest{
		LogID:       logID,
		FirstSerial: req.FirstSerial,
		LastSerial:  req.LastSerial,
		Reason:      req.Reason,
		Notes:       req.Notes,
		Actor:       actor,
	})
	if err != nil {
		sendAllocationError(w, err)
		return
	}

	documentPath, renderErr := pl.renderFromLog(orig, result)

	response := map[string]any{
		"success":    true,
		"allocation": result,
	}
	if renderErr != nil {
		log.Printf("[PRINTLOG] Render failed for reprint %s: %v", result.Reference, renderErr)
		response["renderError"] = "Document rendering failed; repeat the reprint to regenerate"
	} else {
		response["documentPath"] = documentPath
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(response)
}

func parseLogFilter(r *http.Request) *models.PrintLogFilter {
	filter := &models.PrintLogFilter{
		EntityType:    r.URL.Query().Get("entityType"),
		AccountNumber: r.URL.Query().Get("accountNumber"),
		OperationType: r.URL.Query().Get("operationType"),
		Page:          1,
		Limit:         50,
	}

	if v := r.URL.Query().Get("branchId"); v != "" {
		filter.BranchID, _ = strconv.Atoi(v)
	}
	if v := r.URL.Query().Get("page"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 1 {
			filter.Page = n
		}
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 1 && n <= 200 {
			filter.Limit = n
		}
	}
	if v := r.URL.Query().Get("startDate"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			filter.StartDate = &t
		}
	}
	if v := r.URL.Query().Get("endDate"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			filter.EndDate = &t
		}
	}

	return filter
}

func (pl *PrintLogService) fetchLogs(filter *models.PrintLogFilter) ([]models.PrintLog, error) {
	var conditions []string
	var args []interface{}
	argIndex := 1

	baseQuery := `
		SELECT id, entity_type, entity_id, branch_id, branch_name, routing_number,
		       COALESCE(accounting_number, ''), COALESCE(account_number, ''),
		       COALESCE(account_holder_name, ''), stock_class, first_serial, last_serial,
		       total_count, number_of_books, custom_start_serial, operation_type,
		       reprint_reason, printed_by, printed_by_name, COALESCE(notes, ''),
		       reference, created_at
		FROM print_logs
	`

	if filter.EntityType != "" {
		conditions = append(conditions, fmt.Sprintf("entity_type = $%d", argIndex))
		args = append(args, filter.EntityType)
		argIndex++
	}
	if filter.AccountNumber != "" {
		conditions = append(conditions, fmt.Sprintf("account_number = $%d", argIndex))
		args = append(args, filter.AccountNumber)
		argIndex++
	}
	if filter.OperationType != "" {
		conditions = append(conditions, fmt.Sprintf("operation_type = $%d", argIndex))
		args = append(args, filter.OperationType)
		argIndex++
	}
	if filter.BranchID > 0 {
		conditions = append(conditions, fmt.Sprintf("branch_id = $%d", argIndex))
		args = append(args, filter.BranchID)
		argIndex++
	}
	if filter.StartDate != nil {
		conditions = append(conditions, fmt.Sprintf("created_at >= $%d", argIndex))
		args = append(args, *filter.StartDate)
		argIndex++
	}
	if filter.EndDate != nil {
		conditions = append(conditions, fmt.Sprintf("created_at <= $%d", argIndex))
		args = append(args, *filter.EndDate)
		argIndex++
	}

	query := baseQuery
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC"
	query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", argIndex, argIndex+1)
	args = append(args, filter.Limit, (filter.Page-1)*filter.Limit)

	rows, err := pl.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := []models.PrintLog{}
	for rows.Next() {
		var entry models.PrintLog
		err := rows.Scan(
			&entry.ID, &entry.EntityType, &entry.EntityID, &entry.BranchID, &entry.BranchName,
			&entry.RoutingNumber, &entry.AccountingNumber, &entry.AccountNumber,
			&entry.AccountHolderName, &entry.StockClass, &entry.FirstSerial, &entry.LastSerial,
			&entry.TotalCount, &entry.NumberOfBooks, &entry.CustomStartSerial, &entry.OperationType,
			&entry.ReprintReason, &entry.PrintedBy, &entry.PrintedByName, &entry.Notes,
			&entry.Reference, &entry.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		logs = append(logs, entry)
	}

	return logs, rows.Err()
}

func (pl *PrintLogService) fetchLog(logID int64) (*models.PrintLog, error) {
	var entry models.PrintLog
	err := pl.db.QueryRow(`
		SELECT id, entity_type, entity_id, branch_id, branch_name, routing_number,
		       COALESCE(accounting_number, ''), COALESCE(account_number, ''),
		       COALESCE(account_holder_name, ''), stock_class, first_serial, last_serial,
		       total_count, number_of_books, operation_type, printed_by, printed_by_name,
		       reference, created_at
		FROM print_logs
		WHERE id = $1
	`, logID).Scan(
		&entry.ID, &entry.EntityType, &entry.EntityID, &entry.BranchID, &entry.BranchName,
		&entry.RoutingNumber, &entry.AccountingNumber, &entry.AccountNumber,
		&entry.AccountHolderName, &entry.StockClass, &entry.FirstSerial, &entry.LastSerial,
		&entry.TotalCount, &entry.NumberOfBooks, &entry.OperationType, &entry.PrintedBy,
		&entry.PrintedByName, &entry.Reference, &entry.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (pl *PrintLogService) fetchStatistics(branchID int) (*models.PrintStatistics, error) {
	stats := &models.PrintStatistics{EntitySerials: []models.EntitySerial{}}

	query := `
		SELECT COALESCE(SUM(number_of_books), 0), COALESCE(SUM(total_count), 0),
		       COUNT(*) FILTER (WHERE operation_type = 'print'),
		       COUNT(*) FILTER (WHERE operation_type = 'reprint'),
		       MAX(created_at)
		FROM print_logs
	`
	var args []interface{}
	if branchID > 0 {
		query += " WHERE branch_id = $1"
		args = append(args, branchID)
	}

	var lastPrint sql.NullTime
	err := pl.db.QueryRow(query, args...).Scan(
		&stats.TotalBooks, &stats.TotalSheets, &stats.PrintCount, &stats.ReprintCount, &lastPrint)
	if err != nil {
		return nil, err
	}
	if lastPrint.Valid {
		stats.LastPrintDate = &lastPrint.Time
	}

	serialQuery := `
		SELECT sl.entity_type, sl.entity_id, sl.last_serial, COALESCE(b.branch_name, '')
		FROM serial_ledgers sl
		LEFT JOIN branches b ON sl.entity_type = 'branch' AND b.id::text = sl.entity_id
	`
	var serialArgs []interface{}
	if branchID > 0 {
		// Branch scoping: branch ledgers match on id, account ledgers
		// through the cached account's branch.
		serialQuery += `
		WHERE (sl.entity_type = 'branch' AND sl.entity_id = $1::text)
		   OR (sl.entity_type = 'account' AND EXISTS (
		         SELECT 1 FROM accounts a
		         WHERE a.account_number = sl.entity_id AND a.branch_id = $1))
		`
		serialArgs = append(serialArgs, branchID)
	}
	serialQuery += " ORDER BY sl.entity_type, sl.entity_id"

	rows, err := pl.db.Query(serialQuery, serialArgs...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var es models.EntitySerial
		if err := rows.Scan(&es.EntityType, &es.EntityID, &es.LastSerial, &es.BranchName); err != nil {
			return nil, err
		}
		stats.EntitySerials = append(stats.EntitySerials, es)
	}

	return stats, rows.Err()
}

// renderFromLog regenerates the printable document for a reprinted range
// using the snapshot fields on the original log entry.
func (pl *PrintLogService) renderFromLog(orig *models.PrintLog, result *AllocationResult) (string, error) {
	accountNumber := orig.AccountNumber
	holderName := orig.AccountHolderName
	typeDigit := models.AccountTypeIndividual
	switch orig.StockClass {
	case models.StockCorporate:
		typeDigit = models.AccountTypeCorporate
	case models.StockCertified:
		typeDigit = certifiedTypeDigit
		accountNumber = orig.AccountingNumber
		holderName = orig.BranchName
	}

	data := render.BuildCheckbook(render.CheckbookInput{
		Reference:     result.Reference,
		AccountNumber: accountNumber,
		HolderName:    holderName,
		AccountType:   typeDigit,
		BranchName:    orig.BranchName,
		RoutingNumber: orig.RoutingNumber,
		FirstSerial:   result.FirstSerial,
		LastSerial:    result.LastSerial,
	})
	return pl.renderer.WriteCheckbook(data)
}
