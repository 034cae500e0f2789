package services

import (
	"context"
	"errors"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"

	"tally/internal/config"
	apperrors "tally/internal/errors"
	"tally/internal/events"
	"tally/internal/logger"
	"tally/internal/models"
	"tally/internal/reconcile"
	"tally/internal/week"
)

// Options tunes the budget services.
type Options struct {
	SaveAttempts           int
	SaveBackoff            time.Duration
	InstantPaymentCategory string
	AnalyticsWindowDays    int
}

// OptionsFromConfig reads Options from the application config.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		SaveAttempts:           cfg.BudgetSaveAttempts,
		SaveBackoff:            cfg.BudgetSaveBackoff,
		InstantPaymentCategory: cfg.InstantPaymentCategory,
		AnalyticsWindowDays:    cfg.AnalyticsWindowDays,
	}
}

func (o Options) withDefaults() Options {
	if o.SaveAttempts < 1 {
		o.SaveAttempts = 3
	}
	if o.SaveBackoff <= 0 {
		o.SaveBackoff = 100 * time.Millisecond
	}
	if o.AnalyticsWindowDays < 1 {
		o.AnalyticsWindowDays = 90
	}
	return o
}

var errVersionConflict = errors.New("weekly budget was modified concurrently")

// budgetStore loads and saves weekly budgets. Saves are conditional on the
// version column and retried on conflict.
type budgetStore struct {
	db        *gorm.DB
	access    AccessServicer
	publisher events.Publisher
	opts      Options
	creates   singleflight.Group
}

func newBudgetStore(db *gorm.DB, access AccessServicer, publisher events.Publisher, opts Options) *budgetStore {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &budgetStore{db: db, access: access, publisher: publisher, opts: opts.withDefaults()}
}

func (s *budgetStore) load(ctx context.Context, budgetID string) (*models.WeeklyBudget, error) {
	var budget models.WeeklyBudget
	if err := s.db.WithContext(ctx).Where("id = ?", budgetID).First(&budget).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrBudgetNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrDependencyFailure, err)
	}
	return &budget, nil
}

// loadFor loads a budget the user may access. An empty userID skips the
// check for internal callers.
func (s *budgetStore) loadFor(ctx context.Context, userID, budgetID string) (*models.WeeklyBudget, error) {
	budget, err := s.load(ctx, budgetID)
	if err != nil {
		return nil, err
	}
	if userID == "" {
		return budget, nil
	}
	ok, err := s.access.CanAccess(ctx, userID, budget)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperrors.ErrBudgetNotFound
	}
	return budget, nil
}

// findForWeek returns the user's budget starting on weekStart, or nil.
func (s *budgetStore) findForWeek(ctx context.Context, userID string, weekStart time.Time) (*models.WeeklyBudget, error) {
	var budgets []models.WeeklyBudget
	if err := s.db.WithContext(ctx).
		Where("user_id = ? AND week_start = ?", userID, weekStart).
		Limit(1).
		Find(&budgets).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDependencyFailure, err)
	}
	if len(budgets) == 0 {
		return nil, nil
	}
	return &budgets[0], nil
}

// insert creates a budget. A budget that already exists for the same week
// reports ErrBudgetExists.
func (s *budgetStore) insert(ctx context.Context, budget *models.WeeklyBudget) error {
	if budget.Categories == nil {
		budget.Categories = models.BudgetCategories{}
	}
	budget.Version = 1
	budget.RecomputeSpent()
	if err := s.db.WithContext(ctx).Create(budget).Error; err != nil {
		existing, findErr := s.findForWeek(ctx, budget.UserID, budget.WeekStart)
		if findErr == nil && existing != nil {
			return apperrors.ErrBudgetExists
		}
		return apperrors.Wrap(apperrors.ErrDependencyFailure, err)
	}
	return nil
}

// getOrCreate returns the user's budget for the week, provisioning an empty
// one on first use. Concurrent callers for the same week share one creation.
func (s *budgetStore) getOrCreate(ctx context.Context, userID string, w week.Week) (*models.WeeklyBudget, error) {
	key := userID + "|" + w.Start.Format(week.Layout)
	v, err, _ := s.creates.Do(key, func() (interface{}, error) {
		existing, err := s.findForWeek(ctx, userID, w.Start)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return existing, nil
		}

		budget := &models.WeeklyBudget{
			UserID:          userID,
			WeekStart:       w.Start,
			WeekEnd:         w.End,
			TotalAllocation: decimal.Zero,
			Mode:            models.CreationModeAuto,
		}
		err = s.insert(ctx, budget)
		if errors.Is(err, apperrors.ErrBudgetExists) {
			// Lost a race with another process.
			return s.findForWeek(ctx, userID, w.Start)
		}
		if err != nil {
			return nil, err
		}
		logger.FromContext(ctx).Infow("Provisioned weekly budget",
			"budget_id", budget.ID,
			"user_id", userID,
			"week_start", w.Start.Format(week.Layout),
		)
		return budget, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*models.WeeklyBudget).Clone(), nil
}

// save writes the budget if its version is still current. It reports false
// when another writer got there first.
func (s *budgetStore) save(ctx context.Context, budget *models.WeeklyBudget) (bool, error) {
	reconcile.StripMaterialized(budget)

	result := s.db.WithContext(ctx).Model(&models.WeeklyBudget{}).
		Where("id = ? AND version = ?", budget.ID, budget.Version).
		Updates(map[string]interface{}{
			"total_allocation":      budget.TotalAllocation,
			"mode":                  budget.Mode,
			"shared_with_household": budget.SharedWithHousehold,
			"household_id":          budget.HouseholdID,
			"categories":            budget.Categories,
			"version":               gorm.Expr("version + 1"),
		})
	if result.Error != nil {
		return false, apperrors.Wrap(apperrors.ErrDependencyFailure, result.Error)
	}
	if result.RowsAffected == 0 {
		return false, nil
	}
	budget.Version++
	return true, nil
}

// saveBackoff waits SaveBackoff times the attempt number between tries.
func (s *budgetStore) saveBackoff() retry.Backoff {
	step := s.opts.SaveBackoff
	attempt := 0
	linear := retry.BackoffFunc(func() (time.Duration, bool) {
		attempt++
		return step * time.Duration(attempt), false
	})
	return retry.WithMaxRetries(uint64(s.opts.SaveAttempts-1), linear)
}

// mutate runs load, apply and conditional save. On a version conflict the
// budget is reloaded and mutate is applied again to the fresh copy. mutate
// must therefore be safe to call more than once.
func (s *budgetStore) mutate(ctx context.Context, userID, budgetID string, mutate func(*models.WeeklyBudget) error) (*models.WeeklyBudget, error) {
	log := logger.FromContext(ctx)
	attempt := 0
	var saved *models.WeeklyBudget

	err := retry.Do(ctx, s.saveBackoff(), func(ctx context.Context) error {
		attempt++
		budget, err := s.loadFor(ctx, userID, budgetID)
		if err != nil {
			return err
		}
		if err := mutate(budget); err != nil {
			return err
		}
		budget.RecomputeSpent()

		ok, err := s.save(ctx, budget)
		if err != nil {
			return err
		}
		if !ok {
			log.Warnw("Budget version conflict",
				"budget_id", budgetID,
				"version", budget.Version,
				"attempt", attempt,
			)
			return retry.RetryableError(errVersionConflict)
		}
		saved = budget
		return nil
	})
	if err != nil {
		if errors.Is(err, errVersionConflict) {
			log.Errorw("Budget save retries exhausted", "budget_id", budgetID, "attempts", attempt)
			return nil, apperrors.Wrap(apperrors.ErrConflictExhausted, err)
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, apperrors.Wrap(apperrors.ErrDependencyFailure, err)
		}
		return nil, err
	}
	return saved, nil
}

// view merges the owner's unlinked expenses of the week into a copy of the
// budget. The stored budget is not modified.
func (s *budgetStore) view(ctx context.Context, budget *models.WeeklyBudget) (*models.WeeklyBudget, error) {
	instantID, err := instantPaymentCategoryID(ctx, s.db, s.opts.InstantPaymentCategory)
	if err != nil {
		return nil, err
	}

	q := s.db.WithContext(ctx).Preload("Category").
		Where("user_id = ? AND type = ? AND date >= ? AND date < ?",
			budget.UserID, models.TransactionTypeExpense, budget.WeekStart, budget.WeekEnd.AddDate(0, 0, 1))
	if instantID != "" {
		q = q.Where("(category_id IS NULL OR category_id <> ?)", instantID)
	}
	var txs []models.Transaction
	if err := q.Order("date ASC").Order("id ASC").Find(&txs).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDependencyFailure, err)
	}

	merged := budget.Clone()
	reconcile.Merge(merged, txs, instantID)
	return merged, nil
}

func (s *budgetStore) views(ctx context.Context, budgets []models.WeeklyBudget) ([]models.WeeklyBudget, error) {
	out := make([]models.WeeklyBudget, 0, len(budgets))
	for i := range budgets {
		v, err := s.view(ctx, &budgets[i])
		if err != nil {
			return nil, err
		}
		out = append(out, *v)
	}
	return out, nil
}

// effectRef identifies the records a side effect touches, for logs and the
// repair event.
type effectRef struct {
	PaymentID     string
	TransactionID string
	ScheduleID    string
}

// applySideEffects runs fn in one database transaction after a budget save.
// A failure leaves the budget ahead of the ledger, so it is logged, announced
// for repair and reported as a partial failure.
func (s *budgetStore) applySideEffects(ctx context.Context, budget *models.WeeklyBudget, ref effectRef, fn func(tx *gorm.DB) error) error {
	err := s.db.WithContext(ctx).Transaction(fn)
	if err == nil {
		return nil
	}

	logger.FromContext(ctx).Errorw("Reconciliation side effects failed after budget save",
		"budget_id", budget.ID,
		"payment_id", ref.PaymentID,
		"transaction_id", ref.TransactionID,
		"schedule_id", ref.ScheduleID,
		"error", err,
	)
	s.publish(context.WithoutCancel(ctx), events.Event{
		Type:          events.TypeReconciliationRequired,
		BudgetID:      budget.ID,
		PaymentID:     ref.PaymentID,
		TransactionID: ref.TransactionID,
		ScheduleID:    ref.ScheduleID,
		UserID:        budget.UserID,
		Reason:        err.Error(),
	})
	return apperrors.Wrap(apperrors.ErrPartialFailure, err)
}

// cascadeDelete removes the schedules and transactions behind entries that
// were dropped from a budget.
func (s *budgetStore) cascadeDelete(ctx context.Context, budget *models.WeeklyBudget, entries []models.PaymentEntry) error {
	var entryIDs, scheduleIDs, txIDs []string
	for _, e := range entries {
		if e.FromTransaction() {
			continue
		}
		entryIDs = append(entryIDs, e.ID)
		if sid := e.ScheduleID(); sid != "" {
			scheduleIDs = append(scheduleIDs, sid)
		}
		if e.TransactionID != nil {
			txIDs = append(txIDs, *e.TransactionID)
		}
	}
	if len(entryIDs) == 0 {
		return nil
	}

	ref := effectRef{PaymentID: entryIDs[0]}
	if len(txIDs) > 0 {
		ref.TransactionID = txIDs[0]
	}
	if len(scheduleIDs) > 0 {
		ref.ScheduleID = scheduleIDs[0]
	}

	return s.applySideEffects(ctx, budget, ref, func(tx *gorm.DB) error {
		if len(scheduleIDs) > 0 {
			if err := tx.Where("user_id = ? AND id IN ?", budget.UserID, scheduleIDs).
				Delete(&models.PaymentSchedule{}).Error; err != nil {
				return err
			}
		}
		return deletePaymentTransactions(tx, budget.UserID, txIDs, scheduleIDs, entryIDs)
	})
}

// deletePaymentTransactions removes transactions linked by id or by either
// back-reference marker.
func deletePaymentTransactions(tx *gorm.DB, userID string, txIDs, scheduleIDs, entryIDs []string) error {
	q := tx.Where("payment_entry_id IN ?", nonEmpty(entryIDs))
	if len(txIDs) > 0 {
		q = q.Or("id IN ?", txIDs)
	}
	if len(scheduleIDs) > 0 {
		q = q.Or("payment_schedule_id IN ?", scheduleIDs)
	}
	return tx.Where("user_id = ?", userID).Where(q).Delete(&models.Transaction{}).Error
}

func nonEmpty(ids []string) []string {
	if len(ids) == 0 {
		return []string{""}
	}
	return ids
}

// publish delivers an event. Broker failures are logged, never returned.
func (s *budgetStore) publish(ctx context.Context, event events.Event) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		logger.FromContext(ctx).Warnw("Failed to publish event",
			"type", event.Type,
			"budget_id", event.BudgetID,
			"payment_id", event.PaymentID,
			"error", err,
		)
	}
}
