package handlers

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	apperrors "tally/internal/errors"
	"tally/internal/models"
	"tally/internal/pagination"
	"tally/internal/services"
)

// --- mock transaction service ---

type mockTransactionService struct {
	createTransactionFn   func(ctx context.Context, userID string, in services.CreateTransactionInput) (*models.Transaction, error)
	getUserTransactionsFn func(ctx context.Context, userID string, page pagination.PageRequest, filter services.TransactionFilter) (*pagination.PageResponse[models.Transaction], error)
	getTransactionByIDFn  func(ctx context.Context, userID, transactionID string) (*models.Transaction, error)
	deleteTransactionFn   func(ctx context.Context, userID, transactionID string) error
}

func (m *mockTransactionService) CreateTransaction(ctx context.Context, userID string, in services.CreateTransactionInput) (*models.Transaction, error) {
	if m.createTransactionFn != nil {
		return m.createTransactionFn(ctx, userID, in)
	}
	return &models.Transaction{Base: models.Base{ID: "t1"}}, nil
}

func (m *mockTransactionService) GetUserTransactions(ctx context.Context, userID string, page pagination.PageRequest, filter services.TransactionFilter) (*pagination.PageResponse[models.Transaction], error) {
	if m.getUserTransactionsFn != nil {
		return m.getUserTransactionsFn(ctx, userID, page, filter)
	}
	resp := pagination.NewPageResponse([]models.Transaction{}, 1, 20, 0)
	return &resp, nil
}

func (m *mockTransactionService) GetTransactionByID(ctx context.Context, userID, transactionID string) (*models.Transaction, error) {
	if m.getTransactionByIDFn != nil {
		return m.getTransactionByIDFn(ctx, userID, transactionID)
	}
	return &models.Transaction{Base: models.Base{ID: transactionID}}, nil
}

func (m *mockTransactionService) DeleteTransaction(ctx context.Context, userID, transactionID string) error {
	if m.deleteTransactionFn != nil {
		return m.deleteTransactionFn(ctx, userID, transactionID)
	}
	return nil
}

var _ services.TransactionServicer = (*mockTransactionService)(nil)

func setupTransactionRouter(handler *TransactionHandler) *gin.Engine {
	r := gin.New()
	auth := r.Group("", injectUserID(testUserID))
	auth.POST("/transactions", handler.CreateTransaction)
	auth.GET("/transactions", handler.GetUserTransactions)
	auth.GET("/transactions/:id", handler.GetTransactionByID)
	auth.DELETE("/transactions/:id", handler.DeleteTransaction)
	return r
}

func TestTransactionHandler_CreateTransaction(t *testing.T) {
	t.Run("returns 201 on success", func(t *testing.T) {
		var got services.CreateTransactionInput
		svc := &mockTransactionService{
			createTransactionFn: func(_ context.Context, userID string, in services.CreateTransactionInput) (*models.Transaction, error) {
				got = in
				return &models.Transaction{
					Base:        models.Base{ID: "t1"},
					UserID:      userID,
					CategoryID:  in.CategoryID,
					Type:        in.Type,
					Amount:      in.Amount,
					Description: in.Description,
					Date:        in.Date,
				}, nil
			},
		}
		audit := &mockAuditService{}
		r := setupTransactionRouter(NewTransactionHandler(svc, audit))

		rec := doRequest(r, "POST", "/transactions",
			`{"category_id":"c1","type":"expense","amount":"42.50","description":"Lunch","date":"2026-03-03"}`)

		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
		if !got.Amount.Equal(decimal.RequireFromString("42.50")) {
			t.Errorf("expected 42.50, got %s", got.Amount)
		}
		if got.Date.Day() != 3 || got.Date.Month() != 3 {
			t.Errorf("expected 2026-03-03, got %v", got.Date)
		}
		tx := parseJSON(t, rec)["transaction"].(map[string]interface{})
		if tx["amount"] != "42.5" || tx["category_id"] != "c1" {
			t.Errorf("unexpected transaction %v", tx)
		}
		if call := audit.last(t); call.action != "CREATE_TRANSACTION" || call.resourceID != "t1" {
			t.Errorf("unexpected audit entry %+v", call)
		}
	})

	tests := []struct {
		name string
		body string
	}{
		{name: "missing type", body: `{"amount":"10"}`},
		{name: "invalid type", body: `{"type":"transfer","amount":"10"}`},
		{name: "zero amount", body: `{"type":"expense","amount":"0"}`},
		{name: "bad date", body: `{"type":"expense","amount":"10","date":"03/04/2026"}`},
	}
	for _, tt := range tests {
		t.Run("returns 400 on "+tt.name, func(t *testing.T) {
			r := setupTransactionRouter(NewTransactionHandler(&mockTransactionService{}, &mockAuditService{}))

			rec := doRequest(r, "POST", "/transactions", tt.body)

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", rec.Code)
			}
			assertErrorCode(t, parseJSON(t, rec), "INVALID_INPUT")
		})
	}

	t.Run("returns 404 on unknown category", func(t *testing.T) {
		svc := &mockTransactionService{
			createTransactionFn: func(_ context.Context, _ string, _ services.CreateTransactionInput) (*models.Transaction, error) {
				return nil, apperrors.ErrCategoryNotFound
			},
		}
		r := setupTransactionRouter(NewTransactionHandler(svc, &mockAuditService{}))

		rec := doRequest(r, "POST", "/transactions", `{"category_id":"nope","type":"expense","amount":"10"}`)

		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "CATEGORY_NOT_FOUND")
	})
}

func TestTransactionHandler_GetUserTransactions(t *testing.T) {
	t.Run("passes filters to the service", func(t *testing.T) {
		var got services.TransactionFilter
		svc := &mockTransactionService{
			getUserTransactionsFn: func(_ context.Context, _ string, _ pagination.PageRequest, filter services.TransactionFilter) (*pagination.PageResponse[models.Transaction], error) {
				got = filter
				resp := pagination.NewPageResponse([]models.Transaction{{Base: models.Base{ID: "t1"}}}, 1, 20, 1)
				return &resp, nil
			},
		}
		r := setupTransactionRouter(NewTransactionHandler(svc, &mockAuditService{}))

		rec := doRequest(r, "GET",
			"/transactions?from_date=2026-03-01&to_date=2026-03-08T00:00:00Z&type=expense&category_id=c1&min_amount=5&max_amount=99.5", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if got.FromDate == nil || got.ToDate == nil {
			t.Fatal("expected both dates")
		}
		if got.Type == nil || *got.Type != models.TransactionTypeExpense {
			t.Errorf("expected expense, got %v", got.Type)
		}
		if got.CategoryID == nil || *got.CategoryID != "c1" {
			t.Errorf("expected c1, got %v", got.CategoryID)
		}
		if got.MinAmount == nil || !got.MinAmount.Equal(decimal.NewFromInt(5)) {
			t.Errorf("expected min 5, got %v", got.MinAmount)
		}
		if got.MaxAmount == nil || !got.MaxAmount.Equal(decimal.RequireFromString("99.5")) {
			t.Errorf("expected max 99.5, got %v", got.MaxAmount)
		}
	})

	for _, q := range []string{"from_date=bad", "type=transfer", "min_amount=lots"} {
		t.Run("returns 400 on "+q, func(t *testing.T) {
			r := setupTransactionRouter(NewTransactionHandler(&mockTransactionService{}, &mockAuditService{}))

			rec := doRequest(r, "GET", "/transactions?"+q, "")

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", rec.Code)
			}
		})
	}
}

func TestTransactionHandler_GetTransactionByID(t *testing.T) {
	svc := &mockTransactionService{
		getTransactionByIDFn: func(_ context.Context, _, transactionID string) (*models.Transaction, error) {
			if transactionID == "t1" {
				return &models.Transaction{Base: models.Base{ID: "t1"}}, nil
			}
			return nil, apperrors.ErrTransactionNotFound
		},
	}
	r := setupTransactionRouter(NewTransactionHandler(svc, &mockAuditService{}))

	rec := doRequest(r, "GET", "/transactions/t1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	rec = doRequest(r, "GET", "/transactions/t2", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	assertErrorCode(t, parseJSON(t, rec), "TRANSACTION_NOT_FOUND")
}

func TestTransactionHandler_DeleteTransaction(t *testing.T) {
	t.Run("returns 200 and audits", func(t *testing.T) {
		audit := &mockAuditService{}
		r := setupTransactionRouter(NewTransactionHandler(&mockTransactionService{}, audit))

		rec := doRequest(r, "DELETE", "/transactions/t1", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if call := audit.last(t); call.action != "DELETE_TRANSACTION" || call.resourceID != "t1" {
			t.Errorf("unexpected audit entry %+v", call)
		}
	})

	t.Run("returns 400 for payment-linked expenses", func(t *testing.T) {
		svc := &mockTransactionService{
			deleteTransactionFn: func(_ context.Context, _, _ string) error {
				return apperrors.WithMessage(apperrors.ErrInvalidInput, "revert the payment instead")
			},
		}
		r := setupTransactionRouter(NewTransactionHandler(svc, &mockAuditService{}))

		rec := doRequest(r, "DELETE", "/transactions/t1", "")

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})
}
