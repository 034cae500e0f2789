package handlers

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	apperrors "tally/internal/errors"
	"tally/internal/models"
	"tally/internal/services"
	"tally/internal/week"
)

// --- mock payment service ---

type mockPaymentService struct {
	addPaymentFn          func(ctx context.Context, userID, budgetID, categoryRef string, in services.AddPaymentInput) (*services.PaymentResult, error)
	updatePaymentStatusFn func(ctx context.Context, userID, budgetID, paymentID string, status models.PaymentStatus, paidBy *string) (*services.PaymentResult, error)
	updatePaymentFn       func(ctx context.Context, userID, budgetID, paymentID string, change services.PaymentChange) (*services.PaymentResult, error)
	deletePaymentFn       func(ctx context.Context, userID, budgetID, paymentID string) (*services.DeletePaymentResult, error)
}

func testPaymentResult(paymentID string) *services.PaymentResult {
	return &services.PaymentResult{
		Payment: models.PaymentEntry{ID: paymentID, Name: "Rent", Amount: decimal.NewFromInt(500), Status: models.PaymentStatusPending},
		Budget:  testBudget("b1"),
	}
}

func (m *mockPaymentService) AddPayment(ctx context.Context, userID, budgetID, categoryRef string, in services.AddPaymentInput) (*services.PaymentResult, error) {
	if m.addPaymentFn != nil {
		return m.addPaymentFn(ctx, userID, budgetID, categoryRef, in)
	}
	return testPaymentResult("p1"), nil
}

func (m *mockPaymentService) UpdatePaymentStatus(ctx context.Context, userID, budgetID, paymentID string, status models.PaymentStatus, paidBy *string) (*services.PaymentResult, error) {
	if m.updatePaymentStatusFn != nil {
		return m.updatePaymentStatusFn(ctx, userID, budgetID, paymentID, status, paidBy)
	}
	return testPaymentResult(paymentID), nil
}

func (m *mockPaymentService) UpdatePayment(ctx context.Context, userID, budgetID, paymentID string, change services.PaymentChange) (*services.PaymentResult, error) {
	if m.updatePaymentFn != nil {
		return m.updatePaymentFn(ctx, userID, budgetID, paymentID, change)
	}
	return testPaymentResult(paymentID), nil
}

func (m *mockPaymentService) DeletePayment(ctx context.Context, userID, budgetID, paymentID string) (*services.DeletePaymentResult, error) {
	if m.deletePaymentFn != nil {
		return m.deletePaymentFn(ctx, userID, budgetID, paymentID)
	}
	return &services.DeletePaymentResult{Kind: services.DeletedPayment, ID: paymentID}, nil
}

var _ services.PaymentServicer = (*mockPaymentService)(nil)

func setupPaymentRouter(handler *PaymentHandler) *gin.Engine {
	r := gin.New()
	auth := r.Group("", injectUserID(testUserID))
	auth.POST("/budgets/:id/categories/:categoryId/payments", handler.AddPayment)
	auth.PUT("/budgets/:id/payments/:paymentId/status", handler.UpdatePaymentStatus)
	auth.PUT("/budgets/:id/payments/:paymentId", handler.UpdatePayment)
	auth.DELETE("/budgets/:id/payments/:paymentId", handler.DeletePayment)
	return r
}

func TestPaymentHandler_AddPayment(t *testing.T) {
	t.Run("returns 201 with payment and budget", func(t *testing.T) {
		var gotRef string
		var got services.AddPaymentInput
		svc := &mockPaymentService{
			addPaymentFn: func(_ context.Context, _, _, categoryRef string, in services.AddPaymentInput) (*services.PaymentResult, error) {
				gotRef, got = categoryRef, in
				return testPaymentResult("p1"), nil
			},
		}
		audit := &mockAuditService{}
		r := setupPaymentRouter(NewPaymentHandler(svc, audit))

		rec := doRequest(r, "POST", "/budgets/b1/categories/c1/payments",
			`{"name":"Rent","amount":"500","scheduled_date":"2026-03-05","recurrence":"monthly"}`)

		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
		if gotRef != "c1" {
			t.Errorf("expected category ref c1, got %s", gotRef)
		}
		if !got.Amount.Equal(decimal.NewFromInt(500)) || got.Recurrence != models.RecurrenceMonthly {
			t.Errorf("unexpected input %+v", got)
		}
		if got.ScheduledDate == nil || got.ScheduledDate.Format(week.Layout) != "2026-03-05" {
			t.Errorf("expected scheduled date 2026-03-05, got %v", got.ScheduledDate)
		}
		result := parseJSON(t, rec)
		if result["payment"].(map[string]interface{})["id"] != "p1" {
			t.Errorf("expected payment p1, got %v", result["payment"])
		}
		if _, ok := result["budget"].(map[string]interface{}); !ok {
			t.Error("expected budget in response")
		}
		if call := audit.last(t); call.action != "ADD_PAYMENT" || call.resourceID != "p1" {
			t.Errorf("unexpected audit entry %+v", call)
		}
	})

	t.Run("leaves the date empty when omitted", func(t *testing.T) {
		var got services.AddPaymentInput
		svc := &mockPaymentService{
			addPaymentFn: func(_ context.Context, _, _, _ string, in services.AddPaymentInput) (*services.PaymentResult, error) {
				got = in
				return testPaymentResult("p1"), nil
			},
		}
		r := setupPaymentRouter(NewPaymentHandler(svc, &mockAuditService{}))

		rec := doRequest(r, "POST", "/budgets/b1/categories/c1/payments", `{"name":"Gym","amount":25}`)

		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
		if got.ScheduledDate != nil {
			t.Errorf("expected nil date, got %v", got.ScheduledDate)
		}
	})

	tests := []struct {
		name string
		body string
	}{
		{name: "missing name", body: `{"amount":"10"}`},
		{name: "zero amount", body: `{"name":"Rent","amount":"0"}`},
		{name: "negative amount", body: `{"name":"Rent","amount":"-10"}`},
		{name: "bad date", body: `{"name":"Rent","amount":"10","scheduled_date":"soon"}`},
		{name: "bad recurrence", body: `{"name":"Rent","amount":"10","recurrence":"hourly"}`},
	}
	for _, tt := range tests {
		t.Run("returns 400 on "+tt.name, func(t *testing.T) {
			r := setupPaymentRouter(NewPaymentHandler(&mockPaymentService{}, &mockAuditService{}))

			rec := doRequest(r, "POST", "/budgets/b1/categories/c1/payments", tt.body)

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", rec.Code)
			}
			assertErrorCode(t, parseJSON(t, rec), "INVALID_INPUT")
		})
	}

	t.Run("returns 500 on partial failure", func(t *testing.T) {
		svc := &mockPaymentService{
			addPaymentFn: func(_ context.Context, _, _, _ string, _ services.AddPaymentInput) (*services.PaymentResult, error) {
				return nil, apperrors.Wrap(apperrors.ErrPartialFailure, context.DeadlineExceeded)
			},
		}
		r := setupPaymentRouter(NewPaymentHandler(svc, &mockAuditService{}))

		rec := doRequest(r, "POST", "/budgets/b1/categories/c1/payments", `{"name":"Rent","amount":"10"}`)

		if rec.Code != http.StatusInternalServerError {
			t.Fatalf("expected 500, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "PARTIAL_FAILURE")
	})
}

func TestPaymentHandler_UpdatePaymentStatus(t *testing.T) {
	t.Run("passes status and payer", func(t *testing.T) {
		var gotStatus models.PaymentStatus
		var gotPaidBy *string
		svc := &mockPaymentService{
			updatePaymentStatusFn: func(_ context.Context, _, _, paymentID string, status models.PaymentStatus, paidBy *string) (*services.PaymentResult, error) {
				gotStatus, gotPaidBy = status, paidBy
				res := testPaymentResult(paymentID)
				res.Payment.Status = status
				return res, nil
			},
		}
		r := setupPaymentRouter(NewPaymentHandler(svc, &mockAuditService{}))

		rec := doRequest(r, "PUT", "/budgets/b1/payments/p1/status", `{"status":"paid","paid_by":"u2"}`)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if gotStatus != models.PaymentStatusPaid || gotPaidBy == nil || *gotPaidBy != "u2" {
			t.Errorf("unexpected args %s %v", gotStatus, gotPaidBy)
		}
		if parseJSON(t, rec)["payment"].(map[string]interface{})["status"] != "paid" {
			t.Error("expected paid payment in response")
		}
	})

	t.Run("returns 400 on unknown status", func(t *testing.T) {
		r := setupPaymentRouter(NewPaymentHandler(&mockPaymentService{}, &mockAuditService{}))

		rec := doRequest(r, "PUT", "/budgets/b1/payments/p1/status", `{"status":"done"}`)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("maps service errors", func(t *testing.T) {
		tests := []struct {
			err    error
			status int
			code   string
		}{
			{apperrors.ErrInvalidPaymentStatus, http.StatusBadRequest, "INVALID_PAYMENT_STATUS"},
			{apperrors.ErrPaymentReadOnly, http.StatusBadRequest, "PAYMENT_READ_ONLY"},
			{apperrors.ErrPaymentNotFound, http.StatusNotFound, "PAYMENT_NOT_FOUND"},
		}
		for _, tt := range tests {
			svc := &mockPaymentService{
				updatePaymentStatusFn: func(_ context.Context, _, _, _ string, _ models.PaymentStatus, _ *string) (*services.PaymentResult, error) {
					return nil, tt.err
				},
			}
			r := setupPaymentRouter(NewPaymentHandler(svc, &mockAuditService{}))

			rec := doRequest(r, "PUT", "/budgets/b1/payments/p1/status", `{"status":"overdue"}`)

			if rec.Code != tt.status {
				t.Fatalf("%s: expected %d, got %d", tt.code, tt.status, rec.Code)
			}
			assertErrorCode(t, parseJSON(t, rec), tt.code)
		}
	})
}

func TestPaymentHandler_UpdatePayment(t *testing.T) {
	t.Run("only sets provided fields", func(t *testing.T) {
		var got services.PaymentChange
		svc := &mockPaymentService{
			updatePaymentFn: func(_ context.Context, _, _, paymentID string, change services.PaymentChange) (*services.PaymentResult, error) {
				got = change
				return testPaymentResult(paymentID), nil
			},
		}
		r := setupPaymentRouter(NewPaymentHandler(svc, &mockAuditService{}))

		rec := doRequest(r, "PUT", "/budgets/b1/payments/p1",
			`{"amount":"75.10","scheduled_date":"2026-03-06","category_id":"c2"}`)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if got.Name != nil || got.Notes != nil || got.Status != nil || got.PaidBy != nil {
			t.Errorf("expected unset fields to stay nil, got %+v", got)
		}
		if got.Amount == nil || !got.Amount.Equal(decimal.RequireFromString("75.10")) {
			t.Errorf("expected amount 75.10, got %v", got.Amount)
		}
		if got.ScheduledDate == nil || got.ScheduledDate.Format(week.Layout) != "2026-03-06" {
			t.Errorf("expected date 2026-03-06, got %v", got.ScheduledDate)
		}
		if got.CategoryID == nil || *got.CategoryID != "c2" {
			t.Errorf("expected category c2, got %v", got.CategoryID)
		}
	})

	t.Run("returns 400 on zero amount", func(t *testing.T) {
		r := setupPaymentRouter(NewPaymentHandler(&mockPaymentService{}, &mockAuditService{}))

		rec := doRequest(r, "PUT", "/budgets/b1/payments/p1", `{"amount":"0"}`)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("returns 400 on empty name", func(t *testing.T) {
		r := setupPaymentRouter(NewPaymentHandler(&mockPaymentService{}, &mockAuditService{}))

		rec := doRequest(r, "PUT", "/budgets/b1/payments/p1", `{"name":""}`)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})
}

func TestPaymentHandler_DeletePayment(t *testing.T) {
	t.Run("reports a removed payment", func(t *testing.T) {
		audit := &mockAuditService{}
		r := setupPaymentRouter(NewPaymentHandler(&mockPaymentService{}, audit))

		rec := doRequest(r, "DELETE", "/budgets/b1/payments/p1", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		deleted := parseJSON(t, rec)["deleted"].(map[string]interface{})
		if deleted["kind"] != "payment" || deleted["id"] != "p1" {
			t.Errorf("unexpected deleted %v", deleted)
		}
		if call := audit.last(t); call.resourceType != "payment" {
			t.Errorf("expected payment audit, got %s", call.resourceType)
		}
	})

	t.Run("reports a removed transaction", func(t *testing.T) {
		svc := &mockPaymentService{
			deletePaymentFn: func(_ context.Context, _, _, _ string) (*services.DeletePaymentResult, error) {
				return &services.DeletePaymentResult{Kind: services.DeletedTransaction, ID: "t1"}, nil
			},
		}
		audit := &mockAuditService{}
		r := setupPaymentRouter(NewPaymentHandler(svc, audit))

		rec := doRequest(r, "DELETE", "/budgets/b1/payments/tx-entry", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if call := audit.last(t); call.resourceType != "transaction" || call.resourceID != "t1" {
			t.Errorf("unexpected audit entry %+v", call)
		}
	})

	t.Run("returns 404 when missing", func(t *testing.T) {
		svc := &mockPaymentService{
			deletePaymentFn: func(_ context.Context, _, _, _ string) (*services.DeletePaymentResult, error) {
				return nil, apperrors.ErrPaymentNotFound
			},
		}
		r := setupPaymentRouter(NewPaymentHandler(svc, &mockAuditService{}))

		rec := doRequest(r, "DELETE", "/budgets/b1/payments/nope", "")

		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rec.Code)
		}
	})
}
