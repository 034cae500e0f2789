package services

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"tally/internal/analytics"
	"tally/internal/models"
	"tally/internal/pagination"
)

// AccessServicer answers whether a principal may see or change a budget.
type AccessServicer interface {
	CanAccess(ctx context.Context, userID string, budget *models.WeeklyBudget) (bool, error)
	HouseholdIDs(ctx context.Context, userID string) ([]string, error)
	IsHouseholdMember(ctx context.Context, userID, householdID string) (bool, error)
	DefaultHousehold(ctx context.Context, userID string) (*models.Household, error)
}

// CategoryServicer defines the contract for category lookups. Categories are
// managed elsewhere; this service reads them and seeds the system defaults.
type CategoryServicer interface {
	GetUserCategories(ctx context.Context, userID string, page pagination.PageRequest) (*pagination.PageResponse[models.Category], error)
	GetUserCategoriesByType(ctx context.Context, userID string, categoryType models.CategoryType, page pagination.PageRequest) (*pagination.PageResponse[models.Category], error)
	GetCategoryByID(ctx context.Context, userID, categoryID string) (*models.Category, error)
	SeedSystemCategories(ctx context.Context) error
}

// TransactionFilter holds optional filter parameters for listing transactions.
type TransactionFilter struct {
	FromDate   *time.Time
	ToDate     *time.Time
	Type       *models.TransactionType
	CategoryID *string
	MinAmount  *decimal.Decimal
	MaxAmount  *decimal.Decimal
}

// CreateTransactionInput is an ordinary ledger entry.
type CreateTransactionInput struct {
	CategoryID  *string
	Type        models.TransactionType
	Amount      decimal.Decimal
	Description string
	Date        time.Time
}

// TransactionServicer defines the contract for ledger entries.
type TransactionServicer interface {
	CreateTransaction(ctx context.Context, userID string, in CreateTransactionInput) (*models.Transaction, error)
	GetUserTransactions(ctx context.Context, userID string, page pagination.PageRequest, filter TransactionFilter) (*pagination.PageResponse[models.Transaction], error)
	GetTransactionByID(ctx context.Context, userID, transactionID string) (*models.Transaction, error)
	DeleteTransaction(ctx context.Context, userID, transactionID string) error
}

// CategoryAllocationInput sets one category's allocation.
type CategoryAllocationInput struct {
	CategoryID string
	Allocated  decimal.Decimal
}

// CreateBudgetInput describes an explicit budget creation.
type CreateBudgetInput struct {
	Mode             models.CreationMode
	WeekOf           time.Time
	Total            *decimal.Decimal
	Categories       []CategoryAllocationInput
	TemplateBudgetID string
}

// BudgetServicer defines the contract for weekly budgets. Every budget it
// returns is a merged view that includes unlinked ledger expenses.
type BudgetServicer interface {
	GetCurrentWeek(ctx context.Context, userID string) (*models.WeeklyBudget, error)
	GetOrCreateForWeek(ctx context.Context, userID string, day time.Time) (*models.WeeklyBudget, error)
	GetBudget(ctx context.Context, userID, budgetID string) (*models.WeeklyBudget, error)
	ListBudgets(ctx context.Context, userID string, from, to *time.Time, page pagination.PageRequest) (*pagination.PageResponse[models.WeeklyBudget], error)
	CreateBudget(ctx context.Context, userID string, in CreateBudgetInput) (*models.WeeklyBudget, error)
	UpdateTotal(ctx context.Context, userID, budgetID string, total decimal.Decimal) (*models.WeeklyBudget, error)
	ReplaceCategories(ctx context.Context, userID, budgetID string, allocations []CategoryAllocationInput, total *decimal.Decimal) (*models.WeeklyBudget, error)
	DeleteCategory(ctx context.Context, userID, budgetID, budgetCategoryID string) (*models.WeeklyBudget, error)
	SyncFromSchedules(ctx context.Context, userID, budgetID string) (*models.WeeklyBudget, error)
	ResyncBudget(ctx context.Context, budgetID string) (*models.WeeklyBudget, error)
	SetHouseholdSharing(ctx context.Context, userID, budgetID string, shared bool, householdID *string) (*models.WeeklyBudget, error)
	ListHouseholdShared(ctx context.Context, userID string, page pagination.PageRequest) (*pagination.PageResponse[models.WeeklyBudget], error)
}

// AddPaymentInput creates a scheduled payment inside a budget category.
type AddPaymentInput struct {
	Name          string
	Amount        decimal.Decimal
	ScheduledDate *time.Time
	Notes         string
	Recurrence    models.Recurrence
}

// PaymentChange lists the fields to change on a payment entry. Nil fields
// are left alone.
type PaymentChange struct {
	Name          *string
	Amount        *decimal.Decimal
	ScheduledDate *time.Time
	Notes         *string
	CategoryID    *string
	Status        *models.PaymentStatus
	PaidBy        *string
}

// PaymentResult is the entry after a change together with the budget view.
type PaymentResult struct {
	Payment models.PaymentEntry  `json:"payment"`
	Budget  *models.WeeklyBudget `json:"budget"`
}

// Deletion kinds reported by DeletePayment.
const (
	DeletedPayment     = "payment"
	DeletedTransaction = "transaction"
)

// DeletePaymentResult reports what a delete-payment call removed.
type DeletePaymentResult struct {
	Kind string `json:"kind"`
	ID   string `json:"id"`
}

// PaymentServicer defines the contract for payment entries and their status
// transitions.
type PaymentServicer interface {
	AddPayment(ctx context.Context, userID, budgetID, categoryRef string, in AddPaymentInput) (*PaymentResult, error)
	UpdatePaymentStatus(ctx context.Context, userID, budgetID, paymentID string, status models.PaymentStatus, paidBy *string) (*PaymentResult, error)
	UpdatePayment(ctx context.Context, userID, budgetID, paymentID string, change PaymentChange) (*PaymentResult, error)
	DeletePayment(ctx context.Context, userID, budgetID, paymentID string) (*DeletePaymentResult, error)
}

// AnalyticsServicer defines the contract for spending analytics.
type AnalyticsServicer interface {
	Recommendations(ctx context.Context, userID, budgetID string) ([]analytics.Recommendation, error)
	SpendingInsights(ctx context.Context, userID string, days int) (*analytics.Insights, error)
	Anomalies(ctx context.Context, userID string, days int) ([]analytics.Anomaly, error)
	OptimizedAllocations(ctx context.Context, userID string, total decimal.Decimal, weekOf time.Time) (*analytics.AllocationPlan, error)
	Forecast(ctx context.Context, userID string, weeks int) (*analytics.Forecast, error)
}

// AuditServicer defines the contract for audit logging.
type AuditServicer interface {
	Log(userID, action, resourceType, resourceID, ipAddress string, changes map[string]interface{})
}
