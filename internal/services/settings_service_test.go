package services

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/chequeops/backend/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestSettingsService_GetSettings(t *testing.T) {
	service := NewSettingsService(nil, testPolicies())

	r := httptest.NewRequest("GET", "/settings", nil)
	w := httptest.NewRecorder()

	service.GetSettings(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	var response struct {
		Policies map[string]config.StockPolicy `json:"policies"`
	}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Len(t, response.Policies, 3)
	assert.Equal(t, 25, response.Policies["individual"].SheetsPerBook)
	assert.Equal(t, 10, response.Policies["certified"].MaxBooks)
}

func TestSettingsService_UpdatePolicy(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	policies := testPolicies()
	service := NewSettingsService(db, policies)

	t.Run("persists and applies the new policy", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO system_settings").
			WithArgs("policy.certified.sheets_per_book", "40", "hqadmin").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("INSERT INTO system_settings").
			WithArgs("policy.certified.max_books", "4", "hqadmin").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		body, _ := json.Marshal(UpdatePolicyRequest{
			StockClass:    "certified",
			SheetsPerBook: 40,
			MaxBooks:      4,
		})
		r := adminRequest(httptest.NewRequest("PUT", "/settings/policy", bytes.NewBuffer(body)))
		w := httptest.NewRecorder()

		service.UpdatePolicy(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
		certified, _ := policies.ForStockClass("certified")
		assert.Equal(t, 40, certified.SheetsPerBook)
		assert.Equal(t, 4, certified.MaxBooks)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown stock class rejected", func(t *testing.T) {
		body, _ := json.Marshal(UpdatePolicyRequest{
			StockClass:    "parchment",
			SheetsPerBook: 40,
			MaxBooks:      4,
		})
		r := adminRequest(httptest.NewRequest("PUT", "/settings/policy", bytes.NewBuffer(body)))
		w := httptest.NewRecorder()

		service.UpdatePolicy(w, r)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("missing actor is unauthorized", func(t *testing.T) {
		body, _ := json.Marshal(UpdatePolicyRequest{
			StockClass:    "certified",
			SheetsPerBook: 40,
			MaxBooks:      4,
		})
		r := httptest.NewRequest("PUT", "/settings/policy", bytes.NewBuffer(body))
		w := httptest.NewRecorder()

		service.UpdatePolicy(w, r)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestSettingsService_ApplyStored(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	policies := testPolicies()
	service := NewSettingsService(db, policies)

	mock.ExpectQuery("SELECT key, value FROM system_settings").
		WillReturnRows(sqlmock.NewRows([]string{"key", "value"}).
			AddRow("policy.individual.sheets_per_book", "30").
			AddRow("policy.certified.max_books", "5").
			AddRow("policy.certified.sheets_per_book", "garbage").
			AddRow("policy.unknown.sheets_per_book", "10"))

	assert.NoError(t, service.ApplyStored())

	individual, _ := policies.ForStockClass("individual")
	assert.Equal(t, 30, individual.SheetsPerBook)

	certified, _ := policies.ForStockClass("certified")
	assert.Equal(t, 5, certified.MaxBooks)
	// The unparseable row was skipped
	assert.Equal(t, 50, certified.SheetsPerBook)
}
