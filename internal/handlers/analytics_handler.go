package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"tally/internal/services"
	"tally/internal/week"
)

// AnalyticsHandler handles spending analytics requests.
type AnalyticsHandler struct {
	analyticsService services.AnalyticsServicer
}

// NewAnalyticsHandler creates a new AnalyticsHandler.
func NewAnalyticsHandler(analyticsService services.AnalyticsServicer) *AnalyticsHandler {
	return &AnalyticsHandler{analyticsService: analyticsService}
}

// AllocationsRequest asks for an optimized split of a weekly total.
type AllocationsRequest struct {
	Total  decimal.Decimal `json:"total" swaggertype:"string" example:"400.00"`
	WeekOf string          `json:"week_of" binding:"omitempty,day" example:"2026-03-02"`
}

// GetInsights returns a spending summary over a trailing window.
// @Summary     Spending insights
// @Tags        analytics
// @Produce     json
// @Security    BearerAuth
// @Param       days query int false "Window in days (default from config)"
// @Success     200 {object} analytics.Insights "Insights"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /analytics/insights [get]
func (h *AnalyticsHandler) GetInsights(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	days, err := parseIntQuery(c, "days")
	if err != nil {
		respondWithError(c, err)
		return
	}

	insights, err := h.analyticsService.SpendingInsights(c.Request.Context(), userID, days)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"insights": insights})
}

// GetAnomalies returns unusually high or low expenses.
// @Summary     Spending anomalies
// @Tags        analytics
// @Produce     json
// @Security    BearerAuth
// @Param       days query int false "Window in days (default from config)"
// @Success     200 {array}  analytics.Anomaly "Anomalies, newest first"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /analytics/anomalies [get]
func (h *AnalyticsHandler) GetAnomalies(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	days, err := parseIntQuery(c, "days")
	if err != nil {
		respondWithError(c, err)
		return
	}

	anomalies, err := h.analyticsService.Anomalies(c.Request.Context(), userID, days)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"anomalies": anomalies})
}

// OptimizeAllocations splits a total across categories.
// @Summary     Optimized allocations
// @Description Scheduled payments are funded first, the remainder follows spending history
// @Tags        analytics
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body AllocationsRequest true "Total and week"
// @Success     200 {object} analytics.AllocationPlan "Allocation plan"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /analytics/allocations [post]
func (h *AnalyticsHandler) OptimizeAllocations(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req AllocationsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	weekOf := time.Now().UTC()
	if req.WeekOf != "" {
		weekOf, _ = week.ParseDay(req.WeekOf)
	}

	plan, err := h.analyticsService.OptimizedAllocations(c.Request.Context(), userID, req.Total, weekOf)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"plan": plan})
}

// GetForecast projects weekly spending per category.
// @Summary     Spending forecast
// @Tags        analytics
// @Produce     json
// @Security    BearerAuth
// @Param       weeks query int false "Weeks ahead (1-12, default 4)"
// @Success     200 {object} analytics.Forecast "Forecast"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /analytics/forecast [get]
func (h *AnalyticsHandler) GetForecast(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	weeks, err := parseIntQuery(c, "weeks")
	if err != nil {
		respondWithError(c, err)
		return
	}

	forecast, err := h.analyticsService.Forecast(c.Request.Context(), userID, weeks)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"forecast": forecast})
}
