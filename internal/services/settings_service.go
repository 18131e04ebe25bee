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

	"github.com/chequeops/backend/internal/config"
	"github.com/chequeops/backend/internal/middleware"
	"github.com/spf13/viper"
)

// SettingsService exposes runtime-editable print settings. Policy changes
// are persisted in system_settings and applied to the live policy table,
// so they survive restarts and take effect without one.
type SettingsService struct {
	db        *sql.DB
	policies  *config.PrintPolicies
	validator *ValidationHelper
}

// UpdatePolicyRequest changes the print policy for one stock class
// @Description Stock policy update request
type UpdatePolicyRequest struct {
	StockClass    string `json:"stockClass" validate:"required,oneof=individual corporate certified" example:"certified"`
	SheetsPerBook int    `json:"sheetsPerBook" validate:"required,gte=1,lte=500" example:"50"`
	MaxBooks      int    `json:"maxBooks" validate:"required,gte=1,lte=100" example:"10"`
}

func NewSettingsService(db *sql.DB, policies *config.PrintPolicies) *SettingsService {
	return &SettingsService{
		db:        db,
		policies:  policies,
		validator: NewValidationHelper(),
	}
}

// ApplyStored loads persisted policy overrides into the live policy table.
// Called once at startup, after env-based defaults are in place.
func (ss *SettingsService) ApplyStored() error {
	rows, err := ss.db.Query(`SELECT key, value FROM system_settings WHERE key LIKE 'policy.%'`)
	if err != nil {
		return fmt.Errorf("failed to read stored settings: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return err
		}

		// Keys are policy.<class>.<field>
		parts := strings.Split(key, ".")
		if len(parts) != 3 {
			continue
		}
		class, field := parts[1], parts[2]
		n, err := strconv.Atoi(value)
		if err != nil || n < 1 {
			log.Printf("[SETTINGS] Ignoring invalid stored value for %s: %q", key, value)
			continue
		}

		policy, ok := ss.policies.ForStockClass(class)
		if !ok {
			continue
		}
		switch field {
		case "sheets_per_book":
			policy.SheetsPerBook = n
		case "max_books":
			policy.MaxBooks = n
		default:
			continue
		}
		ss.policies.Set(class, policy)
	}

	return rows.Err()
}

// GetSettings reports the current print settings
// @Summary Get print settings
// @Description Report the live policy table per stock class and the configured core-banking endpoint
// @Tags settings
// @Produce json
// @Success 200 {object} object{policies=map[string]config.StockPolicy,corebankEndpoint=string}
// @Router /settings [get]
func (ss *SettingsService) GetSettings(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"policies":         ss.policies.Snapshot(),
		"corebankEndpoint": viper.GetString("corebank.endpoint"),
	})
}

// UpdatePolicy changes the policy for one stock class
// @Summary Update stock policy
// @Description Persist a new sheets-per-book and batch cap for a stock class and apply it immediately (admin only)
// @Tags settings
// @Accept json
// @Produce json
// @Param request body UpdatePolicyRequest true "Policy update"
// @Success 200 {object} map[string]config.StockPolicy
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /settings/policy [put]
func (ss *SettingsService) UpdatePolicy(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	maxBytes := 1_048_576 // 1 MB
	r.Body = http.MaxBytesReader(w, r.Body, int64(maxBytes))

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var req UpdatePolicyRequest
	if err := dec.Decode(&req); err != nil {
		SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}

	if err := dec.Decode(&struct{}{}); err != io.EOF {
		SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return
	}

	if err := ss.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	tx, err := ss.db.Begin()
	if err != nil {
		log.Printf("[SETTINGS] Failed to begin transaction: %v", err)
		SendErrorResponse(w, "Failed to update policy", http.StatusInternalServerError, nil)
		return
	}
	defer tx.Rollback()

	upsert := `
		INSERT INTO system_settings (key, value, updated_by)
		VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE
		SET value = EXCLUDED.value, updated_by = EXCLUDED.updated_by, updated_at = NOW()
	`
	if _, err := tx.Exec(upsert,
		"policy."+req.StockClass+".sheets_per_book", strconv.Itoa(req.SheetsPerBook), actor.UserName); err != nil {
		log.Printf("[SETTINGS] Failed to store sheets per book for %s: %v", req.StockClass, err)
		SendErrorResponse(w, "Failed to update policy", http.StatusInternalServerError, nil)
		return
	}
	if _, err := tx.Exec(upsert,
		"policy."+req.StockClass+".max_books", strconv.Itoa(req.MaxBooks), actor.UserName); err != nil {
		log.Printf("[SETTINGS] Failed to store max books for %s: %v", req.StockClass, err)
		SendErrorResponse(w, "Failed to update policy", http.StatusInternalServerError, nil)
		return
	}

	if err := tx.Commit(); err != nil {
		log.Printf("[SETTINGS] Failed to commit policy update: %v", err)
		SendErrorResponse(w, "Failed to update policy", http.StatusInternalServerError, nil)
		return
	}

	ss.policies.Set(req.StockClass, config.StockPolicy{
		SheetsPerBook: req.SheetsPerBook,
		MaxBooks:      req.MaxBooks,
	})

	log.Printf("[SETTINGS] Policy for %s set to %d sheets/book, max %d books by %s",
		req.StockClass, req.SheetsPerBook, req.MaxBooks, actor.UserName)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(ss.policies.Snapshot())
}
