package services

import (
	"database/sql"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"strconv"

	"github.com/chequeops/backend/internal/models"
	"github.com/go-chi/chi/v5"
)

type BranchService struct {
	db        *sql.DB
	validator *ValidationHelper
}

func NewBranchService(db *sql.DB) *BranchService {
	return &BranchService{
		db:        db,
		validator: NewValidationHelper(),
	}
}

// CreateBranch creates a new branch
// @Summary Create branch
// @Description Create a branch with a unique routing number (admin only)
// @Tags branches
// @Accept json
// @Produce json
// @Param request body models.CreateBranchRequest true "Branch data"
// @Success 201 {object} models.Branch
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /branches [post]
func (bs *BranchService) CreateBranch(w http.ResponseWriter, r *http.Request) {
	maxBytes := 1_048_576 // 1 MB
	r.Body = http.MaxBytesReader(w, r.Body, int64(maxBytes))

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var req models.CreateBranchRequest
	if err := dec.Decode(&req); err != nil {
		SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}

	if err := dec.Decode(&struct{}{}); err != io.EOF {
		SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return
	}

	if err := bs.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	var branch models.Branch
	var accountingNumber, branchCode sql.NullString
	err := bs.db.QueryRow(`
		INSERT INTO branches (branch_name, branch_location, routing_number, accounting_number, branch_code)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, branch_name, branch_location, routing_number, accounting_number, branch_code, created_at, updated_at
	`, req.BranchName, req.BranchLocation, req.RoutingNumber,
		nullableString(req.AccountingNumber), nullableString(req.BranchCode)).Scan(
		&branch.ID, &branch.BranchName, &branch.BranchLocation, &branch.RoutingNumber,
		&accountingNumber, &branchCode, &branch.CreatedAt, &branch.UpdatedAt)
	if err != nil {
		log.Printf("[BRANCH] Failed to create branch %s: %v", req.BranchName, err)
		SendErrorResponse(w, "Routing number already exists", http.StatusConflict, nil)
		return
	}
	branch.AccountingNumber = accountingNumber.String
	branch.BranchCode = branchCode.String

	log.Printf("[BRANCH] Created branch %d (%s)", branch.ID, branch.BranchName)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(branch)
}

// ListBranches lists all branches
// @Summary List branches
// @Description List all branches ordered by name
// @Tags branches
// @Produce json
// @Success 200 {array} models.Branch
// @Failure 500 {object} ErrorResponse
// @Router /branches [get]
func (bs *BranchService) ListBranches(w http.ResponseWriter, r *http.Request) {
	rows, err := bs.db.Query(`
		SELECT id, branch_name, branch_location, routing_number,
		       COALESCE(accounting_number, ''), COALESCE(branch_code, ''), created_at, updated_at
		FROM branches ORDER BY branch_name
	`)
	if err != nil {
		log.Printf("[BRANCH] Failed to list branches: %v", err)
		SendErrorResponse(w, "Failed to fetch branches", http.StatusInternalServerError, nil)
		return
	}
	defer rows.Close()

	branches := []models.Branch{}
	for rows.Next() {
		var branch models.Branch
		err := rows.Scan(&branch.ID, &branch.BranchName, &branch.BranchLocation,
			&branch.RoutingNumber, &branch.AccountingNumber, &branch.BranchCode,
			&branch.CreatedAt, &branch.UpdatedAt)
		if err != nil {
			SendErrorResponse(w, "Failed to fetch branches", http.StatusInternalServerError, nil)
			return
		}
		branches = append(branches, branch)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(branches)
}

// GetBranch retrieves one branch
// @Summary Get branch
// @Description Retrieve a branch by ID
// @Tags branches
// @Produce json
// @Param id path int true "Branch ID"
// @Success 200 {object} models.Branch
// @Failure 404 {object} ErrorResponse
// @Router /branches/{id} [get]
func (bs *BranchService) GetBranch(w http.ResponseWriter, r *http.Request) {
	branchID, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || branchID <= 0 {
		SendErrorResponse(w, "Invalid branch ID", http.StatusBadRequest, nil)
		return
	}

	var branch models.Branch
	err = bs.db.QueryRow(`
		SELECT id, branch_name, branch_location, routing_number,
		       COALESCE(accounting_number, ''), COALESCE(branch_code, ''), created_at, updated_at
		FROM branches WHERE id = $1
	`, branchID).Scan(&branch.ID, &branch.BranchName, &branch.BranchLocation,
		&branch.RoutingNumber, &branch.AccountingNumber, &branch.BranchCode,
		&branch.CreatedAt, &branch.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			SendErrorResponse(w, "Branch not found", http.StatusNotFound, nil)
		} else {
			SendErrorResponse(w, "Failed to fetch branch", http.StatusInternalServerError, nil)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(branch)
}

// UpdateBranch updates branch fields
// @Summary Update branch
// @Description Update branch fields; empty fields are left unchanged (admin only)
// @Tags branches
// @Accept json
// @Produce json
// @Param id path int true "Branch ID"
// @Param request body models.UpdateBranchRequest true "Fields to update"
// @Success 200 {object} models.Branch
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /branches/{id} [put]
func (bs *BranchService) UpdateBranch(w http.ResponseWriter, r *http.Request) {
	branchID, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || branchID <= 0 {
		SendErrorResponse(w, "Invalid branch ID", http.StatusBadRequest, nil)
		return
	}

	maxBytes := 1_048_576 // 1 MB
	r.Body = http.MaxBytesReader(w, r.Body, int64(maxBytes))

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var req models.UpdateBranchRequest
	if err := dec.Decode(&req); err != nil {
		SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}

	if err := dec.Decode(&struct{}{}); err != io.EOF {
		SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return
	}

	if err := bs.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	var branch models.Branch
	err = bs.db.QueryRow(`
		UPDATE branches
		SET branch_name = COALESCE(NULLIF($1, ''), branch_name),
		    branch_location = COALESCE(NULLIF($2, ''), branch_location),
		    routing_number = COALESCE(NULLIF($3, ''), routing_number),
		    accounting_number = COALESCE(NULLIF($4, ''), accounting_number),
		    branch_code = COALESCE(NULLIF($5, ''), branch_code),
		    updated_at = NOW()
		WHERE id = $6
		RETURNING id, branch_name, branch_location, routing_number,
		          COALESCE(accounting_number, ''), COALESCE(branch_code, ''), created_at, updated_at
	`, req.BranchName, req.BranchLocation, req.RoutingNumber,
		req.AccountingNumber, req.BranchCode, branchID).Scan(
		&branch.ID, &branch.BranchName, &branch.BranchLocation, &branch.RoutingNumber,
		&branch.AccountingNumber, &branch.BranchCode, &branch.CreatedAt, &branch.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			SendErrorResponse(w, "Branch not found", http.StatusNotFound, nil)
		} else {
			log.Printf("[BRANCH] Failed to update branch %d: %v", branchID, err)
			SendErrorResponse(w, "Failed to update branch", http.StatusInternalServerError, nil)
		}
		return
	}

	log.Printf("[BRANCH] Updated branch %d", branch.ID)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(branch)
}

// DeleteBranch removes a branch without print history
// @Summary Delete branch
// @Description Delete a branch. Branches with print log entries cannot be deleted; the audit trail must stay resolvable (admin only)
// @Tags branches
// @Produce json
// @Param id path int true "Branch ID"
// @Success 200 {object} map[string]string
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /branches/{id} [delete]
func (bs *BranchService) DeleteBranch(w http.ResponseWriter, r *http.Request) {
	branchID, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || branchID <= 0 {
		SendErrorResponse(w, "Invalid branch ID", http.StatusBadRequest, nil)
		return
	}

	var logCount int
	err = bs.db.QueryRow(`SELECT COUNT(*) FROM print_logs WHERE branch_id = $1`, branchID).Scan(&logCount)
	if err != nil {
		log.Printf("[BRANCH] Failed to check print history for branch %d: %v", branchID, err)
		SendErrorResponse(w, "Failed to delete branch", http.StatusInternalServerError, nil)
		return
	}
	if logCount > 0 {
		SendErrorResponse(w, "Branch has print history and cannot be deleted", http.StatusConflict, nil)
		return
	}

	result, err := bs.db.Exec(`DELETE FROM branches WHERE id = $1`, branchID)
	if err != nil {
		log.Printf("[BRANCH] Failed to delete branch %d: %v", branchID, err)
		SendErrorResponse(w, "Failed to delete branch", http.StatusInternalServerError, nil)
		return
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		SendErrorResponse(w, "Branch not found", http.StatusNotFound, nil)
		return
	}

	log.Printf("[BRANCH] Deleted branch %d", branchID)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"message": "Branch deleted"})
}
