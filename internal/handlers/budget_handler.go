package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"tally/internal/middleware"
	"tally/internal/models"
	"tally/internal/pagination"
	"tally/internal/services"
	"tally/internal/week"
)

// BudgetHandler handles weekly budget requests.
type BudgetHandler struct {
	budgetService    services.BudgetServicer
	analyticsService services.AnalyticsServicer
	auditService     services.AuditServicer
}

// NewBudgetHandler creates a new BudgetHandler.
func NewBudgetHandler(budgetService services.BudgetServicer, analyticsService services.AnalyticsServicer, auditService services.AuditServicer) *BudgetHandler {
	return &BudgetHandler{
		budgetService:    budgetService,
		analyticsService: analyticsService,
		auditService:     auditService,
	}
}

// CategoryAllocationRequest sets the allocation of one category.
type CategoryAllocationRequest struct {
	CategoryID string          `json:"category_id" binding:"required"`
	Allocated  decimal.Decimal `json:"allocated" swaggertype:"string" example:"120.00"`
}

// CreateBudgetRequest represents the request payload for creating a budget.
type CreateBudgetRequest struct {
	Mode             models.CreationMode         `json:"mode" binding:"required,creation_mode"`
	WeekOf           string                      `json:"week_of" binding:"omitempty,day" example:"2026-03-02"`
	Total            *decimal.Decimal            `json:"total" swaggertype:"string"`
	Categories       []CategoryAllocationRequest `json:"categories" binding:"omitempty,dive"`
	TemplateBudgetID string                      `json:"template_budget_id"`
}

// UpdateTotalRequest represents the request payload for changing a budget's total.
type UpdateTotalRequest struct {
	Total *decimal.Decimal `json:"total" binding:"required" swaggertype:"string"`
}

// ReplaceCategoriesRequest represents the full category allocation list.
type ReplaceCategoriesRequest struct {
	Categories []CategoryAllocationRequest `json:"categories" binding:"required,dive"`
	Total      *decimal.Decimal            `json:"total" swaggertype:"string"`
}

// SharingRequest toggles household sharing.
type SharingRequest struct {
	Shared      *bool   `json:"shared" binding:"required"`
	HouseholdID *string `json:"household_id"`
}

func toAllocations(reqs []CategoryAllocationRequest) []services.CategoryAllocationInput {
	out := make([]services.CategoryAllocationInput, 0, len(reqs))
	for _, r := range reqs {
		out = append(out, services.CategoryAllocationInput{CategoryID: r.CategoryID, Allocated: r.Allocated})
	}
	return out
}

// GetCurrentWeek returns the caller's budget for the current week, creating it
// from their payment schedules on first access.
// @Summary     Get current week budget
// @Tags        budgets
// @Produce     json
// @Security    BearerAuth
// @Success     200 {object} models.WeeklyBudget "Budget for the current week"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /budgets/current [get]
func (h *BudgetHandler) GetCurrentWeek(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	budget, err := h.budgetService.GetCurrentWeek(c.Request.Context(), userID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"budget": budget})
}

// GetBudget handles retrieving a specific budget.
// @Summary     Get budget by ID
// @Description Returns the budget merged with unlinked ledger expenses of its week
// @Tags        budgets
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Budget ID"
// @Success     200 {object} models.WeeklyBudget "Budget details"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Budget not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /budgets/{id} [get]
func (h *BudgetHandler) GetBudget(c *gin.Context) {
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

	budget, err := h.budgetService.GetBudget(c.Request.Context(), userID, budgetID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"budget": budget})
}

// ListBudgets handles listing budgets whose week starts within a date range.
// @Summary     List budgets
// @Tags        budgets
// @Produce     json
// @Security    BearerAuth
// @Param       from      query string false "Earliest week start (YYYY-MM-DD)"
// @Param       to        query string false "Latest week start (YYYY-MM-DD)"
// @Param       page      query int    false "Page number (default 1)"
// @Param       page_size query int    false "Items per page (default 20, max 100)"
// @Success     200 {object} pagination.PageResponse[models.WeeklyBudget] "Paginated budgets"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /budgets [get]
func (h *BudgetHandler) ListBudgets(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		badRequest(c, err)
		return
	}
	from, err := parseDayQuery(c, "from")
	if err != nil {
		respondWithError(c, err)
		return
	}
	to, err := parseDayQuery(c, "to")
	if err != nil {
		respondWithError(c, err)
		return
	}

	result, err := h.budgetService.ListBudgets(c.Request.Context(), userID, from, to, page)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// CreateBudget handles explicit budget creation.
// @Summary     Create a budget
// @Description Create a budget manually, from a template budget, or from spending history (smart)
// @Tags        budgets
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body CreateBudgetRequest true "Budget details"
// @Success     201 {object} models.WeeklyBudget "Budget created"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Category or template not found"
// @Failure     409 {object} ErrorResponse "Budget already exists for the week"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /budgets [post]
func (h *BudgetHandler) CreateBudget(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req CreateBudgetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	in := services.CreateBudgetInput{
		Mode:             req.Mode,
		Total:            req.Total,
		Categories:       toAllocations(req.Categories),
		TemplateBudgetID: req.TemplateBudgetID,
	}
	if req.WeekOf != "" {
		// Validated by the day binding rule.
		in.WeekOf, _ = week.ParseDay(req.WeekOf)
	}

	budget, err := h.budgetService.CreateBudget(c.Request.Context(), userID, in)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "CREATE_BUDGET", "weekly_budget", budget.ID, c.ClientIP(),
		map[string]interface{}{"mode": req.Mode, "week_start": budget.WeekStart.Format(week.Layout)})

	c.JSON(http.StatusCreated, gin.H{"budget": budget})
}

// UpdateTotal handles changing a budget's total allocation.
// @Summary     Update budget total
// @Tags        budgets
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string             true "Budget ID"
// @Param       request body UpdateTotalRequest true "New total"
// @Success     200 {object} models.WeeklyBudget "Updated budget"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Budget not found"
// @Failure     409 {object} ErrorResponse "Concurrent update"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /budgets/{id}/total [put]
func (h *BudgetHandler) UpdateTotal(c *gin.Context) {
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

	var req UpdateTotalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	budget, err := h.budgetService.UpdateTotal(c.Request.Context(), userID, budgetID, *req.Total)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "UPDATE_BUDGET_TOTAL", "weekly_budget", budget.ID, c.ClientIP(),
		map[string]interface{}{"total": req.Total.String()})

	c.JSON(http.StatusOK, gin.H{"budget": budget})
}

// ReplaceCategories handles replacing a budget's category allocations.
// @Summary     Replace budget categories
// @Description Categories missing from the list are removed together with their payments
// @Tags        budgets
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string                   true "Budget ID"
// @Param       request body ReplaceCategoriesRequest true "Allocations"
// @Success     200 {object} models.WeeklyBudget "Updated budget"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Budget or category not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /budgets/{id}/categories [put]
func (h *BudgetHandler) ReplaceCategories(c *gin.Context) {
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

	var req ReplaceCategoriesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	budget, err := h.budgetService.ReplaceCategories(c.Request.Context(), userID, budgetID, toAllocations(req.Categories), req.Total)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "REPLACE_BUDGET_CATEGORIES", "weekly_budget", budget.ID, c.ClientIP(),
		map[string]interface{}{"categories": len(req.Categories)})

	c.JSON(http.StatusOK, gin.H{"budget": budget})
}

// DeleteCategory handles removing a category and its payments from a budget.
// @Summary     Delete budget category
// @Tags        budgets
// @Produce     json
// @Security    BearerAuth
// @Param       id         path string true "Budget ID"
// @Param       categoryId path string true "Budget category ID or category ID"
// @Success     200 {object} models.WeeklyBudget "Updated budget"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Budget or category not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /budgets/{id}/categories/{categoryId} [delete]
func (h *BudgetHandler) DeleteCategory(c *gin.Context) {
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
	categoryID, err := parsePathID(c, "categoryId")
	if err != nil {
		respondWithError(c, err)
		return
	}

	budget, err := h.budgetService.DeleteCategory(c.Request.Context(), userID, budgetID, categoryID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "DELETE_BUDGET_CATEGORY", "weekly_budget", budget.ID, c.ClientIP(),
		map[string]interface{}{"category": categoryID})

	c.JSON(http.StatusOK, gin.H{"budget": budget})
}

// SyncFromSchedules handles rebuilding a budget's categories from payment schedules.
// @Summary     Sync budget from schedules
// @Tags        budgets
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Budget ID"
// @Success     200 {object} models.WeeklyBudget "Rebuilt budget"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Budget not found"
// @Failure     409 {object} ErrorResponse "Concurrent update"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /budgets/{id}/sync [post]
func (h *BudgetHandler) SyncFromSchedules(c *gin.Context) {
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

	budget, err := h.budgetService.SyncFromSchedules(c.Request.Context(), userID, budgetID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "SYNC_BUDGET", "weekly_budget", budget.ID, c.ClientIP(), nil)

	c.JSON(http.StatusOK, gin.H{"budget": budget})
}

// SetSharing handles toggling household sharing.
// @Summary     Share budget with household
// @Tags        budgets
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string         true "Budget ID"
// @Param       request body SharingRequest true "Sharing settings"
// @Success     200 {object} models.WeeklyBudget "Updated budget"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     403 {object} ErrorResponse "Only the owner can change sharing"
// @Failure     404 {object} ErrorResponse "Budget or household not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /budgets/{id}/sharing [put]
func (h *BudgetHandler) SetSharing(c *gin.Context) {
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

	var req SharingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	budget, err := h.budgetService.SetHouseholdSharing(c.Request.Context(), userID, budgetID, *req.Shared, req.HouseholdID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "SET_BUDGET_SHARING", "weekly_budget", budget.ID, c.ClientIP(),
		map[string]interface{}{"shared": *req.Shared})

	c.JSON(http.StatusOK, gin.H{"budget": budget})
}

// ListShared handles listing budgets shared with the caller's households.
// @Summary     List household-shared budgets
// @Tags        budgets
// @Produce     json
// @Security    BearerAuth
// @Param       page      query int false "Page number (default 1)"
// @Param       page_size query int false "Items per page (default 20, max 100)"
// @Success     200 {object} pagination.PageResponse[models.WeeklyBudget] "Paginated budgets"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /budgets/shared [get]
func (h *BudgetHandler) ListShared(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		badRequest(c, err)
		return
	}

	result, err := h.budgetService.ListHouseholdShared(c.Request.Context(), userID, page)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetRecommendations handles allocation recommendations for a budget.
// @Summary     Budget recommendations
// @Tags        budgets,analytics
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Budget ID"
// @Success     200 {array}  analytics.Recommendation "Recommendations, most important first"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Budget not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /budgets/{id}/recommendations [get]
func (h *BudgetHandler) GetRecommendations(c *gin.Context) {
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

	recs, err := h.analyticsService.Recommendations(c.Request.Context(), userID, budgetID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"recommendations": recs})
}

// PipelineHandler serves endpoints called by the recurring-payment generator.
type PipelineHandler struct {
	budgetService services.BudgetServicer
	auditService  services.AuditServicer
}

// NewPipelineHandler creates a new PipelineHandler.
func NewPipelineHandler(budgetService services.BudgetServicer, auditService services.AuditServicer) *PipelineHandler {
	return &PipelineHandler{budgetService: budgetService, auditService: auditService}
}

// SyncBudget rebuilds a budget after the generator has written new schedules.
// @Summary     Sync budget (pipeline)
// @Tags        pipeline
// @Produce     json
// @Param       X-API-Key header string true "Pipeline API key"
// @Param       id        path   string true "Budget ID"
// @Success     200 {object} models.WeeklyBudget "Rebuilt budget"
// @Failure     401 {object} ErrorResponse "Invalid API key"
// @Failure     404 {object} ErrorResponse "Budget not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /pipeline/budgets/{id}/sync [post]
func (h *PipelineHandler) SyncBudget(c *gin.Context) {
	budgetID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	started := time.Now()
	budget, err := h.budgetService.ResyncBudget(c.Request.Context(), budgetID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(budget.UserID, "PIPELINE_SYNC_BUDGET", "weekly_budget", budget.ID, c.ClientIP(),
		map[string]interface{}{
			"source":      c.GetString(middleware.PipelineSourceKey),
			"duration_ms": time.Since(started).Milliseconds(),
		})

	c.JSON(http.StatusOK, gin.H{"budget": budget})
}
