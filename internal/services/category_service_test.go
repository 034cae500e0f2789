package services

import (
	"context"
	"testing"

	"tally/internal/models"
	"tally/internal/pagination"
	"tally/internal/testutil"
)

func TestGetUserCategories(t *testing.T) {
	ctx := context.Background()

	t.Run("own_and_system", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewCategoryService(db, "")
		user := testutil.CreateTestUser(t, db)
		other := testutil.CreateTestUser(t, db)

		testutil.CreateSystemCategory(t, db, "Housing")
		testutil.CreateTestCategory(t, db, user.ID, "Pets")
		testutil.CreateTestCategory(t, db, other.ID, "Boats")

		result, err := svc.GetUserCategories(ctx, user.ID, pagination.PageRequest{})
		testutil.AssertNoError(t, err)

		if result.TotalItems != 2 {
			t.Fatalf("expected 2 visible categories, got %d", result.TotalItems)
		}
		if result.Data[0].Name != "Housing" || result.Data[1].Name != "Pets" {
			t.Errorf("expected name order Housing, Pets, got %s, %s", result.Data[0].Name, result.Data[1].Name)
		}
	})

	t.Run("paginated", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewCategoryService(db, "")
		user := testutil.CreateTestUser(t, db)

		for i := 0; i < 3; i++ {
			testutil.CreateTestCategory(t, db, user.ID, "")
		}

		result, err := svc.GetUserCategories(ctx, user.ID, pagination.PageRequest{Page: 2, PageSize: 2})
		testutil.AssertNoError(t, err)
		if len(result.Data) != 1 || result.TotalPages != 2 {
			t.Errorf("expected 1 item on page 2 of 2, got %d items of %d pages", len(result.Data), result.TotalPages)
		}
	})
}

func TestGetUserCategoriesByType(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	svc := NewCategoryService(db, "")
	user := testutil.CreateTestUser(t, db)

	testutil.CreateTestCategory(t, db, user.ID, "Pets")
	salary := &models.Category{UserID: &user.ID, Name: "Bonus", Type: models.CategoryTypeIncome}
	if err := db.Create(salary).Error; err != nil {
		t.Fatalf("create income category: %v", err)
	}

	result, err := svc.GetUserCategoriesByType(ctx, user.ID, models.CategoryTypeIncome, pagination.PageRequest{})
	testutil.AssertNoError(t, err)
	if result.TotalItems != 1 || result.Data[0].Name != "Bonus" {
		t.Errorf("expected only Bonus, got %+v", result.Data)
	}
}

func TestGetCategoryByID(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	svc := NewCategoryService(db, "")
	user := testutil.CreateTestUser(t, db)
	other := testutil.CreateTestUser(t, db)
	mine := testutil.CreateTestCategory(t, db, user.ID, "Pets")
	system := testutil.CreateSystemCategory(t, db, "Housing")

	t.Run("own", func(t *testing.T) {
		cat, err := svc.GetCategoryByID(ctx, user.ID, mine.ID)
		testutil.AssertNoError(t, err)
		if cat.Name != "Pets" {
			t.Errorf("expected Pets, got %s", cat.Name)
		}
	})

	t.Run("system", func(t *testing.T) {
		cat, err := svc.GetCategoryByID(ctx, other.ID, system.ID)
		testutil.AssertNoError(t, err)
		if !cat.IsSystem() {
			t.Error("expected a system category")
		}
	})

	t.Run("someone_elses", func(t *testing.T) {
		_, err := svc.GetCategoryByID(ctx, other.ID, mine.ID)
		testutil.AssertAppError(t, err, "CATEGORY_NOT_FOUND")
	})
}

func TestSeedSystemCategories(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	svc := NewCategoryService(db, "Instant Payment")

	testutil.AssertNoError(t, svc.SeedSystemCategories(ctx))
	testutil.AssertNoError(t, svc.SeedSystemCategories(ctx))

	var count int64
	db.Model(&models.Category{}).Where("user_id IS NULL").Count(&count)
	if want := int64(len(defaultCategories) + 1); count != want {
		t.Errorf("expected %d system categories after seeding twice, got %d", want, count)
	}

	id, err := instantPaymentCategoryID(ctx, db, "Instant Payment")
	testutil.AssertNoError(t, err)
	if id == "" {
		t.Error("expected the instant payment category to be seeded")
	}

	none, err := instantPaymentCategoryID(ctx, db, "")
	testutil.AssertNoError(t, err)
	if none != "" {
		t.Errorf("expected no id without a configured name, got %s", none)
	}
}
