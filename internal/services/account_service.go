package services

import (
	"database/sql"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/chequeops/backend/internal/corebank"
	"github.com/chequeops/backend/internal/middleware"
	"github.com/chequeops/backend/internal/models"
	"github.com/go-chi/chi/v5"
)

// AccountService answers account queries from the local cache, falling
// back to the core-banking system for accounts not yet seen.
type AccountService struct {
	db       *sql.DB
	corebank *corebank.Client
}

func NewAccountService(db *sql.DB, cbClient *corebank.Client) *AccountService {
	return &AccountService{db: db, corebank: cbClient}
}

// GetAccount retrieves an account by number
// @Summary Get account
// @Description Look up an account in the local cache, falling back to core banking for unseen accounts
// @Tags accounts
// @Produce json
// @Param accountNumber path string true "Account number"
// @Success 200 {object} models.Account
// @Failure 404 {object} ErrorResponse
// @Failure 502 {object} ErrorResponse
// @Router /accounts/{accountNumber} [get]
func (as *AccountService) GetAccount(w http.ResponseWriter, r *http.Request) {
	accountNumber := chi.URLParam(r, "accountNumber")
	if accountNumber == "" {
		SendErrorResponse(w, "Account number is required", http.StatusBadRequest, nil)
		return
	}

	account, err := as.fetchLocal(accountNumber)
	if err == nil {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(account)
		return
	}
	if err != sql.ErrNoRows {
		log.Printf("[ACCOUNT] Local lookup failed for %s: %v", accountNumber, err)
		SendErrorResponse(w, "Failed to fetch account", http.StatusInternalServerError, nil)
		return
	}

	// Not cached yet; ask core banking and cache the answer
	meta, err := as.corebank.GetAccountMetadata(r.Context(), accountNumber)
	if err != nil {
		if errors.Is(err, corebank.ErrAccountNotFound) {
			SendErrorResponse(w, "Account not found", http.StatusNotFound, nil)
			return
		}
		log.Printf("[ACCOUNT] Core banking lookup failed for %s: %v", accountNumber, err)
		SendErrorResponse(w, "Core banking system unavailable", http.StatusBadGateway, nil)
		return
	}

	account = &models.Account{
		AccountNumber:     meta.AccountNumber,
		AccountHolderName: meta.AccountHolderName,
		AccountType:       meta.AccountType,
	}
	err = as.db.QueryRow(`
		INSERT INTO accounts (account_number, account_holder_name, account_type)
		VALUES ($1, $2, $3)
		ON CONFLICT (account_number) DO UPDATE
		SET account_holder_name = EXCLUDED.account_holder_name,
		    account_type = EXCLUDED.account_type,
		    updated_at = NOW()
		RETURNING id, last_printed_serial, created_at, updated_at
	`, meta.AccountNumber, meta.AccountHolderName, meta.AccountType).Scan(
		&account.ID, &account.LastPrintedSerial, &account.CreatedAt, &account.UpdatedAt)
	if err != nil {
		log.Printf("[ACCOUNT] Failed to cache account %s: %v", accountNumber, err)
		SendErrorResponse(w, "Failed to fetch account", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(account)
}

// ListAccounts lists cached accounts
// @Summary List accounts
// @Description List locally cached accounts; operators see only their own branch
// @Tags accounts
// @Produce json
// @Param limit query int false "Number of rows (default 50, max 200)"
// @Success 200 {object} object{accounts=[]models.Account,count=int}
// @Failure 500 {object} ErrorResponse
// @Router /accounts [get]
func (as *AccountService) ListAccounts(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 1 && n <= 200 {
			limit = n
		}
	}

	query := `
		SELECT id, account_number, account_holder_name, account_type, branch_id,
		       last_printed_serial, created_at, updated_at
		FROM accounts
	`
	var args []interface{}
	if !actor.IsAdmin && actor.BranchID != nil {
		query += " WHERE branch_id = $1 ORDER BY account_number LIMIT $2"
		args = append(args, *actor.BranchID, limit)
	} else {
		query += " ORDER BY account_number LIMIT $1"
		args = append(args, limit)
	}

	rows, err := as.db.Query(query, args...)
	if err != nil {
		log.Printf("[ACCOUNT] Failed to list accounts: %v", err)
		SendErrorResponse(w, "Failed to fetch accounts", http.StatusInternalServerError, nil)
		return
	}
	defer rows.Close()

	accounts := []models.Account{}
	for rows.Next() {
		var account models.Account
		err := rows.Scan(&account.ID, &account.AccountNumber, &account.AccountHolderName,
			&account.AccountType, &account.BranchID, &account.LastPrintedSerial,
			&account.CreatedAt, &account.UpdatedAt)
		if err != nil {
			SendErrorResponse(w, "Failed to fetch accounts", http.StatusInternalServerError, nil)
			return
		}
		accounts = append(accounts, account)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"accounts": accounts,
		"count":    len(accounts),
	})
}

func (as *AccountService) fetchLocal(accountNumber string) (*models.Account, error) {
	var account models.Account
	err := as.db.QueryRow(`
		SELECT id, account_number, account_holder_name, account_type, branch_id,
		       last_printed_serial, created_at, updated_at
		FROM accounts WHERE account_number = $1
	`, accountNumber).Scan(&account.ID, &account.AccountNumber, &account.AccountHolderName,
		&account.AccountType, &account.BranchID, &account.LastPrintedSerial,
		&account.CreatedAt, &account.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &account, nil
}
