package services

import (
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/chequeops/backend/internal/corebank"
	"github.com/chequeops/backend/internal/middleware"
	"github.com/chequeops/backend/internal/models"
	"github.com/chequeops/backend/internal/render"
)

// PrintingService orchestrates standard checkbook printing: core-banking
// lookup, allocation, then post-commit document rendering.
type PrintingService struct {
	db        *sql.DB
	engine    *AllocationEngine
	corebank  *corebank.Client
	renderer  *render.Writer
	validator *ValidationHelper
}

// PrintCheckbookRequest represents a standard checkbook print order
// @Description Standard checkbook print request
type PrintCheckbookRequest struct {
	AccountNumber string `json:"accountNumber" validate:"required,min=6,max=20" example:"1000245879"`
	CustomStart   int    `json:"customStart,omitempty" validate:"omitempty,gt=0" example:"0"`
	Notes         string `json:"notes,omitempty" validate:"max=200"`
}

func NewPrintingService(db *sql.DB, engine *AllocationEngine, cbClient *corebank.Client, renderer *render.Writer) *PrintingService {
	return &PrintingService{
		db:        db,
		engine:    engine,
		corebank:  cbClient,
		renderer:  renderer,
		validator: NewValidationHelper(),
	}
}

// PrintCheckbook prints one standard checkbook for an account
// @Summary Print a checkbook
// @Description Allocate the next serial range for an account, debit inventory, and render the checkbook document
// @Tags printing
// @Accept json
// @Produce json
// @Param request body PrintCheckbookRequest true "Print request"
// @Success 201 {object} AllocationResult
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Failure 502 {object} ErrorResponse
// @Router /print [post]
func (ps *PrintingService) PrintCheckbook(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	maxBytes := 1_048_576 // 1 MB
	r.Body = http.MaxBytesReader(w, r.Body, int64(maxBytes))

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var req PrintCheckbookRequest
	if err := dec.Decode(&req); err != nil {
		SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}

	if err := dec.Decode(&struct{}{}); err != io.EOF {
		SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return
	}

	if err := ps.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	if actor.BranchID == nil && !actor.IsAdmin {
		SendErrorResponse(w, "Operator has no branch assignment", http.StatusForbidden, nil)
		return
	}

	log.Printf("[PRINT] Checkbook print request for account %s by user %d", req.AccountNumber, actor.UserID)

	// Account metadata comes from core banking before the allocation
	// transaction starts; stale or missing metadata aborts the print.
	meta, err := ps.corebank.GetAccountMetadata(r.Context(), req.AccountNumber)
	if err != nil {
		if errors.Is(err, corebank.ErrAccountNotFound) {
			SendErrorResponse(w, "Account not found in core banking", http.StatusNotFound, nil)
			return
		}
		log.Printf("[PRINT] Core banking lookup failed for %s: %v", req.AccountNumber, err)
		SendErrorResponse(w, "Core banking system unavailable", http.StatusBadGateway, nil)
		return
	}

	if meta.Status != "ACTIVE" {
		SendErrorResponse(w, "Account is not active", http.StatusForbidden, nil)
		return
	}

	account, err := ps.syncAccount(meta, actor.BranchID)
	if err != nil {
		log.Printf("[PRINT] Failed to sync account %s: %v", req.AccountNumber, err)
		SendErrorResponse(w, "Failed to prepare account", http.StatusInternalServerError, nil)
		return
	}

	if !actor.IsAdmin && account.BranchID != nil && *account.BranchID != *actor.BranchID {
		log.Printf("[PRINT] Branch scope violation: user branch %d, account branch %d", *actor.BranchID, *account.BranchID)
		SendErrorResponse(w, "Account belongs to another branch", http.StatusForbidden, nil)
		return
	}

	branchID := 0
	if actor.BranchID != nil {
		branchID = *actor.BranchID
	} else if account.BranchID != nil {
		branchID = *account.BranchID
	}

	branch, err := ps.fetchBranch(branchID)
	if err != nil {
		SendErrorResponse(w, "Branch not found", http.StatusNotFound, nil)
		return
	}

	stockClass := models.StockIndividual
	if account.AccountType == models.AccountTypeCorporate {
		stockClass = models.StockCorporate
	}

	result, err := ps.engine.Allocate(r.Context(), &AllocationRequest{
		EntityType:        models.EntityAccount,
		EntityID:          account.AccountNumber,
		StockClass:        stockClass,
		Books:             1,
		CustomStart:       req.CustomStart,
		BranchID:          branch.ID,
		BranchName:        branch.BranchName,
		RoutingNumber:     branch.RoutingNumber,
		AccountNumber:     account.AccountNumber,
		AccountHolderName: account.AccountHolderName,
		Notes:             req.Notes,
		Actor:             actor,
	})
	if err != nil {
		sendAllocationError(w, err)
		return
	}

	// Render after commit. A failure here does not undo the allocation;
	// the operator recovers through a not_printed reprint.
	documentPath, renderErr := ps.renderCheckbook(result, account, branch)

	response := map[string]any{
		"success":    true,
		"allocation": result,
	}
	if renderErr != nil {
		log.Printf("[PRINT] Render failed for %s: %v", result.Reference, renderErr)
		response["renderError"] = "Document rendering failed; use a not_printed reprint to regenerate"
	} else {
		response["documentPath"] = documentPath
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(response)
}

// syncAccount lazily creates or refreshes the local account row from
// core-banking metadata.
func (ps *PrintingService) syncAccount(meta *corebank.AccountMetadata, branchID *int) (*models.Account, error) {
	var account models.Account
	err := ps.db.QueryRow(`
		INSERT INTO accounts (account_number, account_holder_name, account_type, branch_id)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (account_number) DO UPDATE
		SET account_holder_name = EXCLUDED.account_holder_name,
		    account_type = EXCLUDED.account_type,
		    updated_at = NOW()
		RETURNING id, account_number, account_holder_name, account_type, branch_id, last_printed_serial
	`, meta.AccountNumber, meta.AccountHolderName, meta.AccountType, branchID).Scan(
		&account.ID, &account.AccountNumber, &account.AccountHolderName,
		&account.AccountType, &account.BranchID, &account.LastPrintedSerial)
	if err != nil {
		return nil, err
	}
	return &account, nil
}

func (ps *PrintingService) fetchBranch(branchID int) (*models.Branch, error) {
	var branch models.Branch
	var accountingNumber, branchCode sql.NullString
	err := ps.db.QueryRow(`
		SELECT id, branch_name, branch_location, routing_number, accounting_number, branch_code
		FROM branches WHERE id = $1
	`, branchID).Scan(&branch.ID, &branch.BranchName, &branch.BranchLocation,
		&branch.RoutingNumber, &accountingNumber, &branchCode)
	if err != nil {
		return nil, err
	}
	branch.AccountingNumber = accountingNumber.String
	branch.BranchCode = branchCode.String
	return &branch, nil
}

func (ps *PrintingService) renderCheckbook(result *AllocationResult, account *models.Account, branch *models.Branch) (string, error) {
	data := render.BuildCheckbook(render.CheckbookInput{
		Reference:     result.Reference,
		AccountNumber: account.AccountNumber,
		HolderName:    account.AccountHolderName,
		AccountType:   account.AccountType,
		BranchName:    branch.BranchName,
		RoutingNumber: branch.RoutingNumber,
		FirstSerial:   result.FirstSerial,
		LastSerial:    result.LastSerial,
	})
	return ps.renderer.WriteCheckbook(data)
}

// sendAllocationError maps engine failures onto HTTP statuses
func sendAllocationError(w http.ResponseWriter, err error) {
	var ae *AllocationError
	if !errors.As(err, &ae) {
		log.Printf("[PRINT] Allocation failed: %v", err)
		SendErrorResponse(w, "Failed to process print request", http.StatusInternalServerError, nil)
		return
	}

	status := http.StatusBadRequest
	switch ae.Kind {
	case KindEntityNotFound, KindLogNotFound:
		status = http.StatusNotFound
	case KindInsufficientStock:
		status = http.StatusUnprocessableEntity
	case KindSerialRangeConflict:
		status = http.StatusConflict
	case KindMissingAccountingNumber:
		status = http.StatusUnprocessableEntity
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"error": ae.Message,
		"kind":  ae.Kind,
	})
}
