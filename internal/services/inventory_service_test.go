package services

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/chequeops/backend/internal/middleware"
	"github.com/chequeops/backend/internal/models"
	"github.com/stretchr/testify/assert"
)

func adminRequest(r *http.Request) *http.Request {
	actor := models.Actor{UserID: 1, UserName: "hqadmin", IsAdmin: true}
	return r.WithContext(middleware.WithActor(r.Context(), actor))
}

func TestInventoryService_GetInventory(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewInventoryService(db)

	mock.ExpectQuery("SELECT stock_class, quantity, updated_at FROM inventory").
		WillReturnRows(sqlmock.NewRows([]string{"stock_class", "quantity", "updated_at"}).
			AddRow("certified", 3, time.Now()).
			AddRow("corporate", 40, time.Now()).
			AddRow("individual", 120, time.Now()))

	r := httptest.NewRequest("GET", "/inventory", nil)
	w := httptest.NewRecorder()

	service.GetInventory(w, r)

	assert.Equal(t, http.StatusOK, w.Code)

	var response struct {
		Inventory []models.InventoryRecord `json:"inventory"`
		LowStock  []string                 `json:"lowStock"`
	}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Len(t, response.Inventory, 3)
	assert.Equal(t, []string{"certified"}, response.LowStock)
}

func TestInventoryService_AddStock(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewInventoryService(db)

	t.Run("successful restock", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery("UPDATE inventory").
			WithArgs(25, "individual").
			WillReturnRows(sqlmock.NewRows([]string{"quantity"}).AddRow(145))
		mock.ExpectExec("INSERT INTO inventory_transactions").
			WithArgs("individual", 25, models.InventoryAdd, 1, "hqadmin", "").
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		body, _ := json.Marshal(models.AddStockRequest{StockClass: "individual", Quantity: 25})
		r := adminRequest(httptest.NewRequest("POST", "/inventory/add", bytes.NewBuffer(body)))
		w := httptest.NewRecorder()

		service.AddStock(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
		var response struct {
			StockClass string `json:"stockClass"`
			Quantity   int    `json:"quantity"`
		}
		json.Unmarshal(w.Body.Bytes(), &response)
		assert.Equal(t, "individual", response.StockClass)
		assert.Equal(t, 145, response.Quantity)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing actor is unauthorized", func(t *testing.T) {
		body, _ := json.Marshal(models.AddStockRequest{StockClass: "individual", Quantity: 25})
		r := httptest.NewRequest("POST", "/inventory/add", bytes.NewBuffer(body))
		w := httptest.NewRecorder()

		service.AddStock(w, r)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("unknown stock class rejected", func(t *testing.T) {
		body, _ := json.Marshal(models.AddStockRequest{StockClass: "parchment", Quantity: 25})
		r := adminRequest(httptest.NewRequest("POST", "/inventory/add", bytes.NewBuffer(body)))
		w := httptest.NewRecorder()

		service.AddStock(w, r)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("non-positive quantity rejected", func(t *testing.T) {
		body, _ := json.Marshal(map[string]any{"stockClass": "individual", "quantity": -5})
		r := adminRequest(httptest.NewRequest("POST", "/inventory/add", bytes.NewBuffer(body)))
		w := httptest.NewRecorder()

		service.AddStock(w, r)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestInventoryService_ListTransactions(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewInventoryService(db)

	t.Run("filters by stock class", func(t *testing.T) {
		mock.ExpectQuery("SELECT id, stock_class, delta, tx_type").
			WithArgs("certified", 50).
			WillReturnRows(sqlmock.NewRows([]string{"id", "stock_class", "delta", "tx_type", "user_id", "user_name", "notes", "created_at"}).
				AddRow(1, "certified", 10, models.InventoryAdd, 1, "hqadmin", "", time.Now()).
				AddRow(2, "certified", -1, models.InventoryDeduct, 2, "teller01", "", time.Now()))

		r := httptest.NewRequest("GET", "/inventory/transactions?stockClass=certified", nil)
		w := httptest.NewRecorder()

		service.ListTransactions(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
		var response struct {
			Transactions []models.InventoryTransaction `json:"transactions"`
			Count        int                           `json:"count"`
		}
		json.Unmarshal(w.Body.Bytes(), &response)
		assert.Equal(t, 2, response.Count)
		assert.Equal(t, -1, response.Transactions[1].Delta)
	})

	t.Run("unknown stock class rejected", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/inventory/transactions?stockClass=parchment", nil)
		w := httptest.NewRecorder()

		service.ListTransactions(w, r)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
