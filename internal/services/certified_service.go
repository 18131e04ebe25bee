package services

import (
	"database/sql"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"strconv"

	"github.com/chequeops/backend/internal/config"
	"github.com/chequeops/backend/internal/middleware"
	"github.com/chequeops/backend/internal/models"
	"github.com/chequeops/backend/internal/render"
)

// certifiedTypeDigit is the MICR type field for certified bank checks
const certifiedTypeDigit = 3

// CertifiedCheckService prints certified bank checks. The serial ledger
// is keyed by branch, not account, and prints draw on the branch's own
// accounting number.
type CertifiedCheckService struct {
	db        *sql.DB
	engine    *AllocationEngine
	policies  *config.PrintPolicies
	renderer  *render.Writer
	validator *ValidationHelper
}

// PrintCertifiedRequest represents a certified check print order
// @Description Certified check print request
type PrintCertifiedRequest struct {
	BranchID    int    `json:"branchId,omitempty" validate:"omitempty,gt=0" example:"1"`
	Books       int    `json:"books,omitempty" validate:"omitempty,gte=1,lte=10" example:"1"`
	CustomStart int    `json:"customStart,omitempty" validate:"omitempty,gt=0" example:"0"`
	Notes       string `json:"notes,omitempty" validate:"max=200"`
}

func NewCertifiedCheckService(db *sql.DB, engine *AllocationEngine, policies *config.PrintPolicies, renderer *render.Writer) *CertifiedCheckService {
	return &CertifiedCheckService{
		db:        db,
		engine:    engine,
		policies:  policies,
		renderer:  renderer,
		validator: NewValidationHelper(),
	}
}

// PrintCertified prints certified checks for a branch
// @Summary Print certified checks
// @Description Allocate the next certified serial range for a branch and render the check documents
// @Tags certified
// @Accept json
// @Produce json
// @Param request body PrintCertifiedRequest true "Print request"
// @Success 201 {object} AllocationResult
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Router /certified/print [post]
func (cs *CertifiedCheckService) PrintCertified(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	maxBytes := 1_048_576 // 1 MB
	r.Body = http.MaxBytesReader(w, r.Body, int64(maxBytes))

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var req PrintCertifiedRequest
	if err := dec.Decode(&req); err != nil {
		SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}

	if err := dec.Decode(&struct{}{}); err != io.EOF {
		SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return
	}

	if err := cs.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	branchID, err := cs.resolveBranchID(actor, req.BranchID)
	if err != nil {
		SendErrorResponse(w, err.Error(), http.StatusForbidden, nil)
		return
	}

	branch, err := cs.fetchBranch(branchID)
	if err != nil {
		SendErrorResponse(w, "Branch not found", http.StatusNotFound, nil)
		return
	}

	// Certified checks draw on the branch accounting number; a branch
	// without one cannot print them.
	if branch.AccountingNumber == "" {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		json.NewEncoder(w).Encode(map[string]any{
			"error": "Branch has no accounting number configured",
			"kind":  KindMissingAccountingNumber,
		})
		return
	}

	books := req.Books
	if books == 0 {
		books = 1
	}

	log.Printf("[CERTIFIED] Print request for branch %d (%d books) by user %d", branch.ID, books, actor.UserID)

	result, err := cs.engine.Allocate(r.Context(), &AllocationRequest{
		EntityType:       models.EntityBranch,
		EntityID:         strconv.Itoa(branch.ID),
		StockClass:       models.StockCertified,
		Books:            books,
		CustomStart:      req.CustomStart,
		BranchID:         branch.ID,
		BranchName:       branch.BranchName,
		RoutingNumber:    branch.RoutingNumber,
		AccountingNumber: branch.AccountingNumber,
		Notes:            req.Notes,
		Actor:            actor,
	})
	if err != nil {
		sendAllocationError(w, err)
		return
	}

	documentPath, renderErr := cs.renderCertified(result, branch)

	response := map[string]any{
		"success":    true,
		"allocation": result,
	}
	if renderErr != nil {
		log.Printf("[CERTIFIED] Render failed for %s: %v", result.Reference, renderErr)
		response["renderError"] = "Document rendering failed; use a not_printed reprint to regenerate"
	} else {
		response["documentPath"] = documentPath
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(response)
}

// NextRange previews the serial range the next certified print would use
// @Summary Preview next certified range
// @Description Report the serial range the next certified print would allocate, without committing anything
// @Tags certified
// @Produce json
// @Param branchId query int false "Branch ID (admin only; operators use their own branch)"
// @Param books query int false "Number of books (default 1)"
// @Success 200 {object} map[string]int
// @Failure 403 {object} ErrorResponse
// @Router /certified/next-range [get]
func (cs *CertifiedCheckService) NextRange(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	reqBranchID := 0
	if v := r.URL.Query().Get("branchId"); v != "" {
		reqBranchID, _ = strconv.Atoi(v)
	}

	branchID, err := cs.resolveBranchID(actor, reqBranchID)
	if err != nil {
		SendErrorResponse(w, err.Error(), http.StatusForbidden, nil)
		return
	}

	books := 1
	if v := r.URL.Query().Get("books"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 1 {
			books = n
		}
	}
	policy, _ := cs.policies.ForStockClass(models.StockCertified)
	if books > policy.MaxBooks {
		SendErrorResponse(w, "Requested book count exceeds certified maximum", http.StatusBadRequest, nil)
		return
	}

	var lastSerial int
	err = cs.db.QueryRow(`
		SELECT last_serial FROM serial_ledgers
		WHERE entity_type = $1 AND entity_id = $2
	`, models.EntityBranch, strconv.Itoa(branchID)).Scan(&lastSerial)
	if err != nil && err != sql.ErrNoRows {
		SendErrorResponse(w, "Failed to read serial ledger", http.StatusInternalServerError, nil)
		return
	}

	total := books * policy.SheetsPerBook
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]int{
		"branchId":    branchID,
		"firstSerial": lastSerial + 1,
		"lastSerial":  lastSerial + total,
		"totalCount":  total,
	})
}

// BranchSerials lists the last certified serial per branch
// @Summary List certified serials per branch
// @Description Report the last issued certified serial for every branch with a certified ledger
// @Tags certified
// @Produce json
// @Success 200 {array} models.EntitySerial
// @Router /certified/serials [get]
func (cs *CertifiedCheckService) BranchSerials(w http.ResponseWriter, r *http.Request) {
	rows, err := cs.db.Query(`
		SELECT sl.entity_id, sl.last_serial, COALESCE(b.branch_name, '')
		FROM serial_ledgers sl
		LEFT JOIN branches b ON b.id::text = sl.entity_id
		WHERE sl.entity_type = $1
		ORDER BY sl.entity_id
	`, models.EntityBranch)
	if err != nil {
		SendErrorResponse(w, "Failed to fetch certified serials", http.StatusInternalServerError, nil)
		return
	}
	defer rows.Close()

	serials := []models.EntitySerial{}
	for rows.Next() {
		es := models.EntitySerial{EntityType: models.EntityBranch}
		if err := rows.Scan(&es.EntityID, &es.LastSerial, &es.BranchName); err != nil {
			SendErrorResponse(w, "Failed to fetch certified serials", http.StatusInternalServerError, nil)
			return
		}
		serials = append(serials, es)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(serials)
}

// resolveBranchID picks the effective branch for a request. Operators are
// pinned to their own branch; admins may name any branch.
func (cs *CertifiedCheckService) resolveBranchID(actor models.Actor, requested int) (int, error) {
	if actor.IsAdmin {
		if requested > 0 {
			return requested, nil
		}
		if actor.BranchID != nil {
			return *actor.BranchID, nil
		}
		return 0, errNoBranchSelected
	}

	if actor.BranchID == nil {
		return 0, errNoBranchAssignment
	}
	if requested > 0 && requested != *actor.BranchID {
		return 0, errBranchScope
	}
	return *actor.BranchID, nil
}

func (cs *CertifiedCheckService) fetchBranch(branchID int) (*models.Branch, error) {
	var branch models.Branch
	var accountingNumber, branchCode sql.NullString
	err := cs.db.QueryRow(`
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

func (cs *CertifiedCheckService) renderCertified(result *AllocationResult, branch *models.Branch) (string, error) {
	data := render.BuildCheckbook(render.CheckbookInput{
		Reference:     result.Reference,
		AccountNumber: branch.AccountingNumber,
		HolderName:    branch.BranchName,
		AccountType:   certifiedTypeDigit,
		BranchName:    branch.BranchName,
		RoutingNumber: branch.RoutingNumber,
		FirstSerial:   result.FirstSerial,
		LastSerial:    result.LastSerial,
	})
	return cs.renderer.WriteCheckbook(data)
}
