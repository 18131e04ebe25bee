package services

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/chequeops/backend/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestBranchService_CreateBranch(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewBranchService(db)

	t.Run("successful creation", func(t *testing.T) {
		req := models.CreateBranchRequest{
			BranchName:       "Main Branch",
			BranchLocation:   "12 High Street",
			RoutingNumber:    "123456789",
			AccountingNumber: "3100045600",
			BranchCode:       "001",
		}

		mock.ExpectQuery("INSERT INTO branches").
			WithArgs(req.BranchName, req.BranchLocation, req.RoutingNumber, req.AccountingNumber, req.BranchCode).
			WillReturnRows(sqlmock.NewRows([]string{"id", "branch_name", "branch_location", "routing_number", "accounting_number", "branch_code", "created_at", "updated_at"}).
				AddRow(1, req.BranchName, req.BranchLocation, req.RoutingNumber, req.AccountingNumber, req.BranchCode, time.Now(), time.Now()))

		body, _ := json.Marshal(req)
		r := httptest.NewRequest("POST", "/branches", bytes.NewBuffer(body))
		w := httptest.NewRecorder()

		service.CreateBranch(w, r)

		assert.Equal(t, http.StatusCreated, w.Code)
		var branch models.Branch
		json.Unmarshal(w.Body.Bytes(), &branch)
		assert.Equal(t, 1, branch.ID)
		assert.Equal(t, "Main Branch", branch.BranchName)
	})

	t.Run("duplicate routing number conflicts", func(t *testing.T) {
		req := models.CreateBranchRequest{
			BranchName:     "Copy Branch",
			BranchLocation: "34 Low Street",
			RoutingNumber:  "123456789",
		}

		mock.ExpectQuery("INSERT INTO branches").
			WillReturnError(assert.AnError)

		body, _ := json.Marshal(req)
		r := httptest.NewRequest("POST", "/branches", bytes.NewBuffer(body))
		w := httptest.NewRecorder()

		service.CreateBranch(w, r)

		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("missing routing number rejected", func(t *testing.T) {
		body, _ := json.Marshal(map[string]string{
			"branchName":     "No Routing",
			"branchLocation": "56 Side Street",
		})
		r := httptest.NewRequest("POST", "/branches", bytes.NewBuffer(body))
		w := httptest.NewRecorder()

		service.CreateBranch(w, r)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestBranchService_GetBranch(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewBranchService(db)

	t.Run("found", func(t *testing.T) {
		mock.ExpectQuery("SELECT id, branch_name, branch_location, routing_number").
			WithArgs(1).
			WillReturnRows(sqlmock.NewRows([]string{"id", "branch_name", "branch_location", "routing_number", "accounting_number", "branch_code", "created_at", "updated_at"}).
				AddRow(1, "Main Branch", "12 High Street", "123456789", "3100045600", "001", time.Now(), time.Now()))

		r := withURLParam(httptest.NewRequest("GET", "/branches/1", nil), "id", "1")
		w := httptest.NewRecorder()

		service.GetBranch(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
		var branch models.Branch
		json.Unmarshal(w.Body.Bytes(), &branch)
		assert.Equal(t, "123456789", branch.RoutingNumber)
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectQuery("SELECT id, branch_name, branch_location, routing_number").
			WithArgs(99).
			WillReturnRows(sqlmock.NewRows([]string{"id"}))

		r := withURLParam(httptest.NewRequest("GET", "/branches/99", nil), "id", "99")
		w := httptest.NewRecorder()

		service.GetBranch(w, r)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("invalid id", func(t *testing.T) {
		r := withURLParam(httptest.NewRequest("GET", "/branches/abc", nil), "id", "abc")
		w := httptest.NewRecorder()

		service.GetBranch(w, r)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestBranchService_UpdateBranch(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewBranchService(db)

	t.Run("partial update keeps unset fields", func(t *testing.T) {
		mock.ExpectQuery("UPDATE branches").
			WithArgs("", "45 New Road", "", "", "", 1).
			WillReturnRows(sqlmock.NewRows([]string{"id", "branch_name", "branch_location", "routing_number", "accounting_number", "branch_code", "created_at", "updated_at"}).
				AddRow(1, "Main Branch", "45 New Road", "123456789", "3100045600", "001", time.Now(), time.Now()))

		body, _ := json.Marshal(map[string]string{"branchLocation": "45 New Road"})
		r := withURLParam(httptest.NewRequest("PUT", "/branches/1", bytes.NewBuffer(body)), "id", "1")
		w := httptest.NewRecorder()

		service.UpdateBranch(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
		var branch models.Branch
		json.Unmarshal(w.Body.Bytes(), &branch)
		assert.Equal(t, "Main Branch", branch.BranchName)
		assert.Equal(t, "45 New Road", branch.BranchLocation)
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectQuery("UPDATE branches").
			WillReturnRows(sqlmock.NewRows([]string{"id"}))

		body, _ := json.Marshal(map[string]string{"branchLocation": "45 New Road"})
		r := withURLParam(httptest.NewRequest("PUT", "/branches/99", bytes.NewBuffer(body)), "id", "99")
		w := httptest.NewRecorder()

		service.UpdateBranch(w, r)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestBranchService_DeleteBranch(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewBranchService(db)

	t.Run("deletes branch without print history", func(t *testing.T) {
		mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM print_logs").
			WithArgs(1).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
		mock.ExpectExec("DELETE FROM branches").
			WithArgs(1).
			WillReturnResult(sqlmock.NewResult(0, 1))

		r := withURLParam(httptest.NewRequest("DELETE", "/branches/1", nil), "id", "1")
		w := httptest.NewRecorder()

		service.DeleteBranch(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("branch with print history conflicts", func(t *testing.T) {
		mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM print_logs").
			WithArgs(2).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))

		r := withURLParam(httptest.NewRequest("DELETE", "/branches/2", nil), "id", "2")
		w := httptest.NewRecorder()

		service.DeleteBranch(w, r)

		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("unknown branch is not found", func(t *testing.T) {
		mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM print_logs").
			WithArgs(99).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
		mock.ExpectExec("DELETE FROM branches").
			WithArgs(99).
			WillReturnResult(sqlmock.NewResult(0, 0))

		r := withURLParam(httptest.NewRequest("DELETE", "/branches/99", nil), "id", "99")
		w := httptest.NewRecorder()

		service.DeleteBranch(w, r)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}
