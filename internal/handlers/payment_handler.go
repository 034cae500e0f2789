package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"tally/internal/models"
	"tally/internal/services"
	"tally/internal/week"
)

// PaymentHandler handles payment entries inside weekly budgets.
type PaymentHandler struct {
	paymentService services.PaymentServicer
	auditService   services.AuditServicer
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(paymentService services.PaymentServicer, auditService services.AuditServicer) *PaymentHandler {
	return &PaymentHandler{
		paymentService: paymentService,
		auditService:   auditService,
	}
}

// AddPaymentRequest represents the request payload for adding a payment.
type AddPaymentRequest struct {
	Name          string            `json:"name" binding:"required,max=100"`
	Amount        decimal.Decimal   `json:"amount" binding:"positive_amount" swaggertype:"string" example:"500.00"`
	ScheduledDate string            `json:"scheduled_date" binding:"omitempty,day" example:"2026-03-04"`
	Notes         string            `json:"notes" binding:"max=500"`
	Recurrence    models.Recurrence `json:"recurrence" binding:"omitempty,recurrence"`
}

// UpdatePaymentStatusRequest represents a status transition.
type UpdatePaymentStatusRequest struct {
	Status models.PaymentStatus `json:"status" binding:"required,payment_status"`
	PaidBy *string              `json:"paid_by"`
}

// UpdatePaymentRequest represents a partial payment update. Omitted fields
// are left unchanged.
type UpdatePaymentRequest struct {
	Name          *string               `json:"name" binding:"omitempty,min=1,max=100"`
	Amount        *decimal.Decimal      `json:"amount" binding:"omitempty,positive_amount" swaggertype:"string"`
	ScheduledDate *string               `json:"scheduled_date" binding:"omitempty,day"`
	Notes         *string               `json:"notes" binding:"omitempty,max=500"`
	CategoryID    *string               `json:"category_id"`
	Status        *models.PaymentStatus `json:"status" binding:"omitempty,payment_status"`
	PaidBy        *string               `json:"paid_by"`
}

func (r UpdatePaymentRequest) change() services.PaymentChange {
	change := services.PaymentChange{
		Name:       r.Name,
		Amount:     r.Amount,
		Notes:      r.Notes,
		CategoryID: r.CategoryID,
		Status:     r.Status,
		PaidBy:     r.PaidBy,
	}
	if r.ScheduledDate != nil {
		if day, err := week.ParseDay(*r.ScheduledDate); err == nil {
			change.ScheduledDate = &day
		}
	}
	return change
}

// AddPayment handles adding a payment entry to a budget category.
// @Summary     Add payment
// @Description Adds a scheduled payment to a budget category and a matching payment schedule
// @Tags        payments
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id         path string            true "Budget ID"
// @Param       categoryId path string            true "Budget category ID or category ID"
// @Param       request    body AddPaymentRequest true "Payment details"
// @Success     201 {object} services.PaymentResult "Payment added"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Budget or category not found"
// @Failure     500 {object} ErrorResponse "Partial failure"
// @Router      /budgets/{id}/categories/{categoryId}/payments [post]
func (h *PaymentHandler) AddPayment(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	budgetID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}
	categoryRef, err := parsePathID(c, "categoryId")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req AddPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	in := services.AddPaymentInput{
		Name:       req.Name,
		Amount:     req.Amount,
		Notes:      req.Notes,
		Recurrence: req.Recurrence,
	}
	if req.ScheduledDate != "" {
		var day time.Time
		day, _ = week.ParseDay(req.ScheduledDate)
		in.ScheduledDate = &day
	}

	result, err := h.paymentService.AddPayment(c.Request.Context(), userID, budgetID, categoryRef, in)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "ADD_PAYMENT", "payment", result.Payment.ID, c.ClientIP(),
		map[string]interface{}{"budget_id": budgetID, "amount": req.Amount.String()})

	c.JSON(http.StatusCreated, result)
}

// UpdatePaymentStatus handles marking a payment paid or pending.
// @Summary     Update payment status
// @Description Paying creates or links a ledger expense; reverting deletes it
// @Tags        payments
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id        path string                     true "Budget ID"
// @Param       paymentId path string                     true "Payment ID"
// @Param       request   body UpdatePaymentStatusRequest true "New status"
// @Success     200 {object} services.PaymentResult "Updated payment"
// @Failure     400 {object} ErrorResponse "Invalid status or read-only payment"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Budget or payment not found"
// @Failure     500 {object} ErrorResponse "Partial failure"
// @Router      /budgets/{id}/payments/{paymentId}/status [put]
func (h *PaymentHandler) UpdatePaymentStatus(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	budgetID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}
	paymentID, err := parsePathID(c, "paymentId")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req UpdatePaymentStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	result, err := h.paymentService.UpdatePaymentStatus(c.Request.Context(), userID, budgetID, paymentID, req.Status, req.PaidBy)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "UPDATE_PAYMENT_STATUS", "payment", result.Payment.ID, c.ClientIP(),
		map[string]interface{}{"budget_id": budgetID, "status": req.Status})

	c.JSON(http.StatusOK, result)
}

// UpdatePayment handles editing a payment's fields.
// @Summary     Update payment
// @Tags        payments
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id        path string               true "Budget ID"
// @Param       paymentId path string               true "Payment ID"
// @Param       request   body UpdatePaymentRequest true "Fields to change"
// @Success     200 {object} services.PaymentResult "Updated payment"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Budget, payment or category not found"
// @Failure     500 {object} ErrorResponse "Partial failure"
// @Router      /budgets/{id}/payments/{paymentId} [put]
func (h *PaymentHandler) UpdatePayment(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	budgetID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}
	paymentID, err := parsePathID(c, "paymentId")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req UpdatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	result, err := h.paymentService.UpdatePayment(c.Request.Context(), userID, budgetID, paymentID, req.change())
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "UPDATE_PAYMENT", "payment", result.Payment.ID, c.ClientIP(),
		map[string]interface{}{"budget_id": budgetID})

	c.JSON(http.StatusOK, result)
}

// DeletePayment handles deleting a payment, or the raw ledger transaction
// behind a materialized entry.
// @Summary     Delete payment
// @Tags        payments
// @Produce     json
// @Security    BearerAuth
// @Param       id        path string true "Budget ID"
// @Param       paymentId path string true "Payment ID or transaction ID"
// @Success     200 {object} services.DeletePaymentResult "What was deleted"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Budget or payment not found"
// @Failure     500 {object} ErrorResponse "Partial failure"
// @Router      /budgets/{id}/payments/{paymentId} [delete]
func (h *PaymentHandler) DeletePayment(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	budgetID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}
	paymentID, err := parsePathID(c, "paymentId")
	if err != nil {
		respondWithError(c, err)
		return
	}

	result, err := h.paymentService.DeletePayment(c.Request.Context(), userID, budgetID, paymentID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "DELETE_PAYMENT", result.Kind, result.ID, c.ClientIP(),
		map[string]interface{}{"budget_id": budgetID})

	c.JSON(http.StatusOK, gin.H{"deleted": result})
}
