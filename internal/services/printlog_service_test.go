package services

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/chequeops/backend/internal/middleware"
	"github.com/chequeops/backend/internal/models"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
)

func operatorRequest(r *http.Request, branchID int) *http.Request {
	actor := models.Actor{UserID: 2, UserName: "teller01", BranchID: &branchID}
	return r.WithContext(middleware.WithActor(r.Context(), actor))
}

func withURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func printLogColumns() []string {
	return []string{
		"id", "entity_type", "entity_id", "branch_id", "branch_name", "routing_number",
		"accounting_number", "account_number", "account_holder_name", "stock_class",
		"first_serial", "last_serial", "total_count", "number_of_books",
		"custom_start_serial", "operation_type", "reprint_reason",
		"printed_by", "printed_by_name", "notes", "reference", "created_at",
	}
}

func TestPrintLogService_ListLogs(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewPrintLogService(db, nil, nil)

	t.Run("admin lists all logs", func(t *testing.T) {
		mock.ExpectQuery("SELECT id, entity_type, entity_id, branch_id").
			WithArgs(50, 0).
			WillReturnRows(sqlmock.NewRows(printLogColumns()).
				AddRow(1, "account", "1000245879", 1, "Main Branch", "123456789",
					"", "1000245879", "Jane Customer", "individual",
					101, 125, 25, 1, nil, "print", nil, 2, "teller01", "", "ref-1", time.Now()))

		r := adminRequest(httptest.NewRequest("GET", "/print-logs", nil))
		w := httptest.NewRecorder()

		service.ListLogs(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
		var response struct {
			Logs  []models.PrintLog `json:"logs"`
			Count int               `json:"count"`
			Page  int               `json:"page"`
		}
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Equal(t, 1, response.Count)
		assert.Equal(t, 101, response.Logs[0].FirstSerial)
	})

	t.Run("operator is pinned to own branch", func(t *testing.T) {
		// Even when the operator asks for another branch, the filter uses theirs
		mock.ExpectQuery("SELECT id, entity_type, entity_id, branch_id").
			WithArgs(3, 50, 0).
			WillReturnRows(sqlmock.NewRows(printLogColumns()))

		r := operatorRequest(httptest.NewRequest("GET", "/print-logs?branchId=9", nil), 3)
		w := httptest.NewRecorder()

		service.ListLogs(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing actor is unauthorized", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/print-logs", nil)
		w := httptest.NewRecorder()

		service.ListLogs(w, r)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestPrintLogService_GetStatistics(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewPrintLogService(db, nil, nil)

	t.Run("admin sees all entities", func(t *testing.T) {
		lastPrint := time.Now()
		mock.ExpectQuery("SELECT COALESCE\\(SUM\\(number_of_books\\), 0\\)").
			WillReturnRows(sqlmock.NewRows([]string{"books", "sheets", "prints", "reprints", "last"}).
				AddRow(12, 350, 10, 2, lastPrint))
		mock.ExpectQuery("SELECT sl.entity_type, sl.entity_id, sl.last_serial").
			WillReturnRows(sqlmock.NewRows([]string{"entity_type", "entity_id", "last_serial", "branch_name"}).
				AddRow("account", "1000245879", 125, "").
				AddRow("branch", "1", 500, "Main Branch"))

		r := adminRequest(httptest.NewRequest("GET", "/print-logs/statistics", nil))
		w := httptest.NewRecorder()

		service.GetStatistics(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
		var stats models.PrintStatistics
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
		assert.Equal(t, 12, stats.TotalBooks)
		assert.Equal(t, 350, stats.TotalSheets)
		assert.Equal(t, 10, stats.PrintCount)
		assert.Equal(t, 2, stats.ReprintCount)
		assert.Len(t, stats.EntitySerials, 2)
		assert.Equal(t, "Main Branch", stats.EntitySerials[1].BranchName)
	})

	t.Run("operator serials are scoped to own branch", func(t *testing.T) {
		mock.ExpectQuery("SELECT COALESCE\\(SUM\\(number_of_books\\), 0\\)").
			WithArgs(3).
			WillReturnRows(sqlmock.NewRows([]string{"books", "sheets", "prints", "reprints", "last"}).
				AddRow(4, 100, 4, 0, time.Now()))
		mock.ExpectQuery("SELECT sl.entity_type, sl.entity_id, sl.last_serial").
			WithArgs(3).
			WillReturnRows(sqlmock.NewRows([]string{"entity_type", "entity_id", "last_serial", "branch_name"}).
				AddRow("account", "1000245879", 125, "").
				AddRow("branch", "3", 200, "Own Branch"))

		r := operatorRequest(httptest.NewRequest("GET", "/print-logs/statistics", nil), 3)
		w := httptest.NewRecorder()

		service.GetStatistics(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
		var stats models.PrintStatistics
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
		assert.Len(t, stats.EntitySerials, 2)
		for _, es := range stats.EntitySerials {
			if es.EntityType == "branch" {
				assert.Equal(t, "3", es.EntityID)
			}
		}
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPrintLogService_Reprint(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewPrintLogService(db, nil, nil)

	fetchColumns := []string{
		"id", "entity_type", "entity_id", "branch_id", "branch_name", "routing_number",
		"accounting_number", "account_number", "account_holder_name", "stock_class",
		"first_serial", "last_serial", "total_count", "number_of_books",
		"operation_type", "printed_by", "printed_by_name", "reference", "created_at",
	}

	t.Run("unknown log is not found", func(t *testing.T) {
		mock.ExpectQuery("SELECT id, entity_type, entity_id, branch_id").
			WithArgs(int64(999)).
			WillReturnRows(sqlmock.NewRows(fetchColumns))

		body, _ := json.Marshal(ReprintLogRequest{Reason: "damaged"})
		r := adminRequest(withURLParam(httptest.NewRequest("POST", "/print-logs/999/reprint", bytes.NewBuffer(body)), "id", "999"))
		w := httptest.NewRecorder()

		service.Reprint(w, r)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("log of another branch is forbidden", func(t *testing.T) {
		mock.ExpectQuery("SELECT id, entity_type, entity_id, branch_id").
			WithArgs(int64(7)).
			WillReturnRows(sqlmock.NewRows(fetchColumns).
				AddRow(7, "account", "1000245879", 5, "Other Branch", "987654321",
					"", "1000245879", "Jane Customer", "individual",
					101, 125, 25, 1, "print", 9, "teller09", "ref-7", time.Now()))

		body, _ := json.Marshal(ReprintLogRequest{Reason: "damaged"})
		r := operatorRequest(withURLParam(httptest.NewRequest("POST", "/print-logs/7/reprint", bytes.NewBuffer(body)), "id", "7"), 3)
		w := httptest.NewRecorder()

		service.Reprint(w, r)

		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("unknown reason rejected before loading the log", func(t *testing.T) {
		body, _ := json.Marshal(ReprintLogRequest{Reason: "smudged"})
		r := adminRequest(withURLParam(httptest.NewRequest("POST", "/print-logs/7/reprint", bytes.NewBuffer(body)), "id", "7"))
		w := httptest.NewRecorder()

		service.Reprint(w, r)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("invalid log id rejected", func(t *testing.T) {
		body, _ := json.Marshal(ReprintLogRequest{Reason: "damaged"})
		r := adminRequest(withURLParam(httptest.NewRequest("POST", "/print-logs/abc/reprint", bytes.NewBuffer(body)), "id", "abc"))
		w := httptest.NewRecorder()

		service.Reprint(w, r)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
