package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"tally/internal/models"
	"tally/internal/week"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// counter provides unique values across fixtures within a test run.
var counter atomic.Int64

func nextID() int64 {
	return counter.Add(1)
}

// Dec parses a decimal literal and fails the test if it is malformed.
func Dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("invalid decimal %q: %v", s, err)
	}
	return d
}

// CreateTestUser creates a user with a unique email.
func CreateTestUser(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()

	n := nextID()
	user := &models.User{
		Email:     fmt.Sprintf("user%d@test.com", n),
		FirstName: "Test",
		LastName:  fmt.Sprintf("User %d", n),
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

// CreateTestHousehold creates a household owned by ownerID with the given
// additional members.
func CreateTestHousehold(t *testing.T, db *gorm.DB, ownerID string, memberIDs ...string) *models.Household {
	t.Helper()

	household := &models.Household{
		OwnerID: ownerID,
		Name:    fmt.Sprintf("Test Household %d", nextID()),
	}
	if err := db.Create(household).Error; err != nil {
		t.Fatalf("failed to create test household: %v", err)
	}
	for _, id := range memberIDs {
		member := &models.HouseholdMember{HouseholdID: household.ID, UserID: id}
		if err := db.Create(member).Error; err != nil {
			t.Fatalf("failed to add household member: %v", err)
		}
	}
	return household
}

// CreateTestCategory creates an expense category owned by userID.
func CreateTestCategory(t *testing.T, db *gorm.DB, userID string, name string) *models.Category {
	t.Helper()

	if name == "" {
		name = fmt.Sprintf("Test Category %d", nextID())
	}
	category := &models.Category{
		UserID: &userID,
		Name:   name,
		Type:   models.CategoryTypeExpense,
	}
	if err := db.Create(category).Error; err != nil {
		t.Fatalf("failed to create test category: %v", err)
	}
	return category
}

// CreateSystemCategory creates a category visible to every user.
func CreateSystemCategory(t *testing.T, db *gorm.DB, name string) *models.Category {
	t.Helper()

	category := &models.Category{
		Name: name,
		Type: models.CategoryTypeExpense,
	}
	if err := db.Create(category).Error; err != nil {
		t.Fatalf("failed to create system category: %v", err)
	}
	return category
}

// CreateTestTransaction creates an expense of amount on date. categoryID may
// be empty for an uncategorized expense.
func CreateTestTransaction(t *testing.T, db *gorm.DB, userID, categoryID, amount string, date time.Time) *models.Transaction {
	t.Helper()

	tx := &models.Transaction{
		UserID:      userID,
		Type:        models.TransactionTypeExpense,
		Amount:      Dec(t, amount),
		Description: fmt.Sprintf("Test expense %d", nextID()),
		Date:        date.UTC(),
	}
	if categoryID != "" {
		tx.CategoryID = &categoryID
	}
	if err := db.Create(tx).Error; err != nil {
		t.Fatalf("failed to create test transaction: %v", err)
	}
	return tx
}

// CreateTestSchedule creates a pending payment schedule due on dueDate.
func CreateTestSchedule(t *testing.T, db *gorm.DB, userID, categoryID, name, amount string, dueDate time.Time) *models.PaymentSchedule {
	t.Helper()

	schedule := &models.PaymentSchedule{
		UserID:     userID,
		Name:       name,
		Amount:     Dec(t, amount),
		CategoryID: categoryID,
		DueDate:    week.Day(dueDate),
		Status:     models.PaymentStatusPending,
		Recurrence: models.RecurrenceNone,
	}
	if err := db.Create(schedule).Error; err != nil {
		t.Fatalf("failed to create test schedule: %v", err)
	}
	return schedule
}

// CreateTestBudget creates an empty budget for the week containing day.
func CreateTestBudget(t *testing.T, db *gorm.DB, userID string, day time.Time) *models.WeeklyBudget {
	t.Helper()

	w := week.Of(day)
	budget := &models.WeeklyBudget{
		UserID:          userID,
		WeekStart:       w.Start,
		WeekEnd:         w.End,
		TotalAllocation: decimal.Zero,
		Mode:            models.CreationModeManual,
		Version:         1,
		Categories:      models.BudgetCategories{},
	}
	if err := db.Create(budget).Error; err != nil {
		t.Fatalf("failed to create test budget: %v", err)
	}
	return budget
}
