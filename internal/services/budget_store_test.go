package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"gorm.io/gorm"

	"tally/internal/config"
	"tally/internal/events"
	"tally/internal/models"
	"tally/internal/testutil"
)

func TestOptionsFromConfig(t *testing.T) {
	opts := OptionsFromConfig(&config.Config{
		BudgetSaveAttempts:     5,
		BudgetSaveBackoff:      250 * time.Millisecond,
		InstantPaymentCategory: "Instant",
		AnalyticsWindowDays:    30,
	})
	if opts.SaveAttempts != 5 || opts.SaveBackoff != 250*time.Millisecond {
		t.Errorf("unexpected save options: %+v", opts)
	}
	if opts.InstantPaymentCategory != "Instant" || opts.AnalyticsWindowDays != 30 {
		t.Errorf("unexpected options: %+v", opts)
	}

	defaults := Options{}.withDefaults()
	if defaults.SaveAttempts != 3 || defaults.SaveBackoff != 100*time.Millisecond || defaults.AnalyticsWindowDays != 90 {
		t.Errorf("unexpected defaults: %+v", defaults)
	}
}

func TestBudgetStoreMutate(t *testing.T) {
	ctx := context.Background()

	t.Run("retries_after_conflicting_write", func(t *testing.T) {
		env := newTestEnv(t)
		user := testutil.CreateTestUser(t, env.db)
		budget := testutil.CreateTestBudget(t, env.db, user.ID, testNow)

		attempts := 0
		saved, err := env.budgets.store.mutate(ctx, user.ID, budget.ID, func(b *models.WeeklyBudget) error {
			attempts++
			if attempts == 1 {
				// Another writer saves between our load and our save.
				if _, err := env.budgets.UpdateTotal(ctx, user.ID, budget.ID, dec("300")); err != nil {
					return err
				}
			}
			b.Mode = models.CreationModeSmart
			return nil
		})
		testutil.AssertNoError(t, err)

		if attempts != 2 {
			t.Errorf("expected 2 attempts, got %d", attempts)
		}
		reloaded, err := env.budgets.store.load(ctx, budget.ID)
		testutil.AssertNoError(t, err)
		if !reloaded.TotalAllocation.Equal(dec("300")) {
			t.Errorf("concurrent total update was lost, got %s", reloaded.TotalAllocation)
		}
		if reloaded.Mode != models.CreationModeSmart {
			t.Errorf("retried mode update was lost, got %s", reloaded.Mode)
		}
		if reloaded.Version != 3 || saved.Version != 3 {
			t.Errorf("expected version 3, got stored %d and returned %d", reloaded.Version, saved.Version)
		}
	})

	t.Run("concurrent_writers_both_persist", func(t *testing.T) {
		env := newTestEnv(t)
		user := testutil.CreateTestUser(t, env.db)
		budget := testutil.CreateTestBudget(t, env.db, user.ID, testNow)

		var wg sync.WaitGroup
		errs := make([]error, 2)
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, errs[0] = env.budgets.UpdateTotal(ctx, user.ID, budget.ID, dec("420"))
		}()
		go func() {
			defer wg.Done()
			_, errs[1] = env.budgets.store.mutate(ctx, user.ID, budget.ID, func(b *models.WeeklyBudget) error {
				b.Mode = models.CreationModeTemplate
				return nil
			})
		}()
		wg.Wait()
		testutil.AssertNoError(t, errs[0])
		testutil.AssertNoError(t, errs[1])

		reloaded, err := env.budgets.store.load(ctx, budget.ID)
		testutil.AssertNoError(t, err)
		if !reloaded.TotalAllocation.Equal(dec("420")) || reloaded.Mode != models.CreationModeTemplate {
			t.Errorf("expected both updates, got total %s and mode %s", reloaded.TotalAllocation, reloaded.Mode)
		}
	})

	t.Run("exhausts_retries", func(t *testing.T) {
		env := newTestEnv(t)
		user := testutil.CreateTestUser(t, env.db)
		budget := testutil.CreateTestBudget(t, env.db, user.ID, testNow)

		attempts := 0
		_, err := env.budgets.store.mutate(ctx, user.ID, budget.ID, func(b *models.WeeklyBudget) error {
			attempts++
			return env.db.Model(&models.WeeklyBudget{}).
				Where("id = ?", b.ID).
				Update("version", gorm.Expr("version + 1")).Error
		})
		testutil.AssertAppError(t, err, "CONFLICT_EXHAUSTED")
		if attempts != 3 {
			t.Errorf("expected 3 attempts, got %d", attempts)
		}
	})

	t.Run("mutate_error_is_returned_without_retry", func(t *testing.T) {
		env := newTestEnv(t)
		user := testutil.CreateTestUser(t, env.db)
		budget := testutil.CreateTestBudget(t, env.db, user.ID, testNow)

		attempts := 0
		boom := errors.New("boom")
		_, err := env.budgets.store.mutate(ctx, user.ID, budget.ID, func(*models.WeeklyBudget) error {
			attempts++
			return boom
		})
		if !errors.Is(err, boom) {
			t.Errorf("expected boom, got %v", err)
		}
		if attempts != 1 {
			t.Errorf("expected 1 attempt, got %d", attempts)
		}
	})

	t.Run("missing_budget", func(t *testing.T) {
		env := newTestEnv(t)
		user := testutil.CreateTestUser(t, env.db)

		_, err := env.budgets.store.mutate(ctx, user.ID, "00000000-0000-0000-0000-000000000000", func(*models.WeeklyBudget) error { return nil })
		testutil.AssertAppError(t, err, "BUDGET_NOT_FOUND")
	})
}

func TestBudgetStoreSaveStripsMaterializedEntries(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	user := testutil.CreateTestUser(t, env.db)
	groceries := testutil.CreateTestCategory(t, env.db, user.ID, "Groceries")
	budget := testutil.CreateTestBudget(t, env.db, user.ID, testNow)
	testutil.CreateTestTransaction(t, env.db, user.ID, groceries.ID, "25", march(3))

	view, err := env.budgets.store.view(ctx, budget)
	testutil.AssertNoError(t, err)
	if len(view.Categories) != 1 || len(view.Categories[0].Payments) != 1 {
		t.Fatalf("expected one merged entry, got %+v", view.Categories)
	}

	ok, err := env.budgets.store.save(ctx, view)
	testutil.AssertNoError(t, err)
	if !ok {
		t.Fatal("expected save to succeed")
	}

	stored, err := env.budgets.store.load(ctx, budget.ID)
	testutil.AssertNoError(t, err)
	if len(stored.Categories) != 1 || len(stored.Categories[0].Payments) != 0 {
		t.Errorf("materialized entries must not be persisted, got %+v", stored.Categories)
	}
}

func TestBudgetStoreSideEffectFailure(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	user := testutil.CreateTestUser(t, env.db)
	budget := testutil.CreateTestBudget(t, env.db, user.ID, testNow)

	err := env.budgets.store.applySideEffects(ctx, budget, effectRef{PaymentID: "p1", TransactionID: "t1"}, func(*gorm.DB) error {
		return errors.New("ledger unavailable")
	})
	testutil.AssertAppError(t, err, "PARTIAL_FAILURE")

	required := env.recorder.OfType(events.TypeReconciliationRequired)
	if len(required) != 1 {
		t.Fatalf("expected 1 reconciliation event, got %d", len(required))
	}
	if required[0].BudgetID != budget.ID || required[0].PaymentID != "p1" || required[0].TransactionID != "t1" {
		t.Errorf("unexpected event: %+v", required[0])
	}
}

func TestBudgetStorePublishIgnoresBrokerErrors(t *testing.T) {
	env := newTestEnv(t)
	env.recorder.Err = errors.New("broker down")

	// Must not panic or surface the error.
	env.budgets.store.publish(context.Background(), events.Event{Type: events.TypePaymentPaid})
	if len(env.recorder.Events()) != 0 {
		t.Error("expected nothing recorded while the broker fails")
	}
}
