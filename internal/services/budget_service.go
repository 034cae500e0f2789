package services

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	apperrors "tally/internal/errors"
	"tally/internal/events"
	"tally/internal/logger"
	"tally/internal/models"
	"tally/internal/pagination"
	"tally/internal/reconcile"
	"tally/internal/uuid"
	"tally/internal/week"
)

// budgetService handles weekly budget lifecycle, categories and sharing.
type budgetService struct {
	store     *budgetStore
	access    AccessServicer
	analytics AnalyticsServicer
	now       func() time.Time
}

// NewBudgetService creates a new BudgetServicer. analytics is only used for
// smart budget creation and may be nil when that mode is not needed.
func NewBudgetService(db *gorm.DB, access AccessServicer, analytics AnalyticsServicer, publisher events.Publisher, opts Options) BudgetServicer {
	return &budgetService{
		store:     newBudgetStore(db, access, publisher, opts),
		access:    access,
		analytics: analytics,
		now:       time.Now,
	}
}

// GetCurrentWeek returns the user's budget for the current week, creating it
// on first use.
func (s *budgetService) GetCurrentWeek(ctx context.Context, userID string) (*models.WeeklyBudget, error) {
	return s.GetOrCreateForWeek(ctx, userID, s.now())
}

// GetOrCreateForWeek returns the user's budget for the week containing day.
func (s *budgetService) GetOrCreateForWeek(ctx context.Context, userID string, day time.Time) (*models.WeeklyBudget, error) {
	budget, err := s.store.getOrCreate(ctx, userID, week.Of(day.UTC()))
	if err != nil {
		return nil, err
	}
	return s.store.view(ctx, budget)
}

// GetBudget returns a budget the user can access.
func (s *budgetService) GetBudget(ctx context.Context, userID, budgetID string) (*models.WeeklyBudget, error) {
	budget, err := s.store.loadFor(ctx, userID, budgetID)
	if err != nil {
		return nil, err
	}
	return s.store.view(ctx, budget)
}

// ListBudgets returns the user's own budgets whose week starts between the
// weeks of from and to, newest first.
func (s *budgetService) ListBudgets(ctx context.Context, userID string, from, to *time.Time, page pagination.PageRequest) (*pagination.PageResponse[models.WeeklyBudget], error) {
	page.Defaults()
	if from != nil && to != nil && from.After(*to) {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "from must not be after to")
	}

	base := s.store.db.WithContext(ctx).Model(&models.WeeklyBudget{}).Where("user_id = ?", userID)
	if from != nil {
		base = base.Where("week_start >= ?", week.Of(from.UTC()).Start)
	}
	if to != nil {
		base = base.Where("week_start <= ?", week.Day(to.UTC()))
	}
	return s.listViews(ctx, base, page)
}

func (s *budgetService) listViews(ctx context.Context, base *gorm.DB, page pagination.PageRequest) (*pagination.PageResponse[models.WeeklyBudget], error) {
	var totalItems int64
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDependencyFailure, err)
	}

	var budgets []models.WeeklyBudget
	if err := base.Order("week_start DESC").Scopes(pagination.Paginate(page)).Find(&budgets).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDependencyFailure, err)
	}

	views, err := s.store.views(ctx, budgets)
	if err != nil {
		return nil, err
	}
	result := pagination.NewPageResponse(views, page.Page, page.PageSize, totalItems)
	return &result, nil
}

// CreateBudget creates a budget explicitly in manual, template or smart mode.
func (s *budgetService) CreateBudget(ctx context.Context, userID string, in CreateBudgetInput) (*models.WeeklyBudget, error) {
	if in.Total != nil && in.Total.IsNegative() {
		return nil, apperrors.ErrInvalidAmount
	}

	day := in.WeekOf
	if day.IsZero() {
		day = s.now()
	}
	w := week.Of(day.UTC())

	existing, err := s.store.findForWeek(ctx, userID, w.Start)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, apperrors.ErrBudgetExists
	}

	budget := &models.WeeklyBudget{
		UserID:          userID,
		WeekStart:       w.Start,
		WeekEnd:         w.End,
		Mode:            in.Mode,
		TotalAllocation: decimal.Zero,
		Categories:      models.BudgetCategories{},
	}

	switch in.Mode {
	case models.CreationModeManual:
		changes, err := s.resolveAllocations(ctx, userID, in.Categories)
		if err != nil {
			return nil, err
		}
		reconcile.ReplaceAllocations(budget, changes)
		budget.TotalAllocation = reconcile.AllocationSum(budget)

	case models.CreationModeTemplate:
		if in.TemplateBudgetID == "" {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "template_budget_id is required for template budgets")
		}
		source, err := s.store.loadFor(ctx, userID, in.TemplateBudgetID)
		if err != nil {
			return nil, err
		}
		for _, c := range source.Categories {
			budget.Categories = append(budget.Categories, models.BudgetCategory{
				ID:           uuid.New(),
				CategoryID:   c.CategoryID,
				CategoryName: c.CategoryName,
				Allocated:    c.Allocated,
				Payments:     []models.PaymentEntry{},
			})
		}
		budget.TotalAllocation = source.TotalAllocation

	case models.CreationModeSmart:
		if in.Total == nil {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "total is required for smart budgets")
		}
		if s.analytics == nil {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "smart budgets are not available")
		}
		plan, err := s.analytics.OptimizedAllocations(ctx, userID, *in.Total, w.Start)
		if err != nil {
			return nil, err
		}
		for _, item := range plan.Items {
			name := item.CategoryName
			if name == "" {
				name = reconcile.UncategorizedName
			}
			budget.Categories = append(budget.Categories, models.BudgetCategory{
				ID:           uuid.New(),
				CategoryID:   item.CategoryID,
				CategoryName: name,
				Allocated:    item.Amount,
				Payments:     []models.PaymentEntry{},
			})
		}

	default:
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "mode must be one of manual, template, smart")
	}

	if in.Total != nil {
		budget.TotalAllocation = *in.Total
	}
	if err := s.store.insert(ctx, budget); err != nil {
		return nil, err
	}

	logger.FromContext(ctx).Infow("Created weekly budget",
		"budget_id", budget.ID,
		"user_id", userID,
		"mode", budget.Mode,
		"week_start", w.Start.Format(week.Layout),
	)
	return s.store.view(ctx, budget)
}

// resolveAllocations checks an allocation list against the categories the
// user can see.
func (s *budgetService) resolveAllocations(ctx context.Context, userID string, inputs []CategoryAllocationInput) ([]reconcile.AllocationChange, error) {
	changes := make([]reconcile.AllocationChange, 0, len(inputs))
	seen := make(map[string]struct{}, len(inputs))
	for _, in := range inputs {
		if in.Allocated.IsNegative() {
			return nil, apperrors.ErrInvalidAmount
		}
		if _, dup := seen[in.CategoryID]; dup {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "category listed more than once: "+in.CategoryID)
		}
		seen[in.CategoryID] = struct{}{}

		category, err := findVisibleCategory(ctx, s.store.db, userID, in.CategoryID)
		if err != nil {
			return nil, err
		}
		changes = append(changes, reconcile.AllocationChange{
			CategoryID:   category.ID,
			CategoryName: category.Name,
			Allocated:    in.Allocated,
		})
	}
	return changes, nil
}

// UpdateTotal sets the budget's total allocation.
func (s *budgetService) UpdateTotal(ctx context.Context, userID, budgetID string, total decimal.Decimal) (*models.WeeklyBudget, error) {
	if total.IsNegative() {
		return nil, apperrors.ErrInvalidAmount
	}
	saved, err := s.store.mutate(ctx, userID, budgetID, func(b *models.WeeklyBudget) error {
		b.TotalAllocation = total
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.store.view(ctx, saved)
}

// ReplaceCategories replaces the allocation list. Categories left out are
// removed along with the schedules and transactions of their entries.
func (s *budgetService) ReplaceCategories(ctx context.Context, userID, budgetID string, allocations []CategoryAllocationInput, total *decimal.Decimal) (*models.WeeklyBudget, error) {
	if total != nil && total.IsNegative() {
		return nil, apperrors.ErrInvalidAmount
	}
	budget, err := s.store.loadFor(ctx, userID, budgetID)
	if err != nil {
		return nil, err
	}
	changes, err := s.resolveAllocations(ctx, budget.UserID, allocations)
	if err != nil {
		return nil, err
	}

	var removed []models.BudgetCategory
	saved, err := s.store.mutate(ctx, userID, budgetID, func(b *models.WeeklyBudget) error {
		removed = reconcile.ReplaceAllocations(b, changes)
		if total != nil {
			b.TotalAllocation = *total
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := s.store.cascadeDelete(ctx, saved, entriesOf(removed)); err != nil {
		return nil, err
	}
	return s.store.view(ctx, saved)
}

// DeleteCategory removes one budget category with cascade. The id may be the
// budget category id or the id of the category it tracks.
func (s *budgetService) DeleteCategory(ctx context.Context, userID, budgetID, budgetCategoryID string) (*models.WeeklyBudget, error) {
	var removed models.BudgetCategory
	saved, err := s.store.mutate(ctx, userID, budgetID, func(b *models.WeeklyBudget) error {
		ci := b.FindCategory(budgetCategoryID)
		if ci < 0 {
			ci = b.FindCategoryByCategoryID(budgetCategoryID)
		}
		if ci < 0 {
			return apperrors.ErrBudgetCategoryNotFound
		}
		removed = reconcile.RemoveCategory(b, ci)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := s.store.cascadeDelete(ctx, saved, removed.Payments); err != nil {
		return nil, err
	}
	logger.FromContext(ctx).Infow("Deleted budget category",
		"budget_id", saved.ID,
		"budget_category_id", removed.ID,
		"payments", len(removed.Payments),
	)
	return s.store.view(ctx, saved)
}

func entriesOf(categories []models.BudgetCategory) []models.PaymentEntry {
	var entries []models.PaymentEntry
	for _, c := range categories {
		entries = append(entries, c.Payments...)
	}
	return entries
}

// SyncFromSchedules rebuilds the budget's categories from the owner's
// payment schedules due in its week.
func (s *budgetService) SyncFromSchedules(ctx context.Context, userID, budgetID string) (*models.WeeklyBudget, error) {
	return s.sync(ctx, userID, budgetID)
}

// ResyncBudget is SyncFromSchedules for internal callers that act on behalf
// of the budget owner.
func (s *budgetService) ResyncBudget(ctx context.Context, budgetID string) (*models.WeeklyBudget, error) {
	return s.sync(ctx, "", budgetID)
}

func (s *budgetService) sync(ctx context.Context, userID, budgetID string) (*models.WeeklyBudget, error) {
	var scheduleIDs []string
	saved, err := s.store.mutate(ctx, userID, budgetID, func(b *models.WeeklyBudget) error {
		in, err := s.rebuildInput(ctx, b)
		if err != nil {
			return err
		}
		reconcile.Rebuild(b, in)

		scheduleIDs = scheduleIDs[:0]
		for _, c := range b.Categories {
			for i := range c.Payments {
				if sid := c.Payments[i].ScheduleID(); sid != "" {
					scheduleIDs = append(scheduleIDs, sid)
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(scheduleIDs) > 0 {
		err = s.store.applySideEffects(ctx, saved, effectRef{ScheduleID: scheduleIDs[0]}, func(tx *gorm.DB) error {
			return tx.Model(&models.PaymentSchedule{}).
				Where("user_id = ? AND id IN ?", saved.UserID, scheduleIDs).
				Update("weekly_budget_id", saved.ID).Error
		})
		if err != nil {
			return nil, err
		}
	}

	logger.FromContext(ctx).Infow("Synced budget from schedules",
		"budget_id", saved.ID,
		"schedules", len(scheduleIDs),
		"categories", len(saved.Categories),
	)
	return s.store.view(ctx, saved)
}

func (s *budgetService) rebuildInput(ctx context.Context, b *models.WeeklyBudget) (reconcile.RebuildInput, error) {
	db := s.store.db.WithContext(ctx)

	var schedules []models.PaymentSchedule
	if err := db.Where("user_id = ? AND due_date >= ? AND due_date < ?",
		b.UserID, b.WeekStart, b.WeekEnd.AddDate(0, 0, 1)).
		Order("due_date ASC").
		Find(&schedules).Error; err != nil {
		return reconcile.RebuildInput{}, apperrors.Wrap(apperrors.ErrDependencyFailure, err)
	}

	in := reconcile.RebuildInput{
		Schedules:              schedules,
		CategoryNames:          make(map[string]string),
		TransactionsBySchedule: make(map[string]string),
	}
	if len(schedules) == 0 {
		return in, nil
	}

	categoryIDs := make([]string, 0, len(schedules))
	scheduleIDs := make([]string, 0, len(schedules))
	for _, sc := range schedules {
		categoryIDs = append(categoryIDs, sc.CategoryID)
		scheduleIDs = append(scheduleIDs, sc.ID)
	}

	var categories []models.Category
	if err := db.Where("id IN ?", categoryIDs).Find(&categories).Error; err != nil {
		return reconcile.RebuildInput{}, apperrors.Wrap(apperrors.ErrDependencyFailure, err)
	}
	for _, c := range categories {
		in.CategoryNames[c.ID] = c.Name
	}

	var txs []models.Transaction
	if err := db.Where("user_id = ? AND payment_schedule_id IN ?", b.UserID, scheduleIDs).
		Order("date ASC").
		Find(&txs).Error; err != nil {
		return reconcile.RebuildInput{}, apperrors.Wrap(apperrors.ErrDependencyFailure, err)
	}
	for _, tx := range txs {
		if _, ok := in.TransactionsBySchedule[*tx.PaymentScheduleID]; !ok {
			in.TransactionsBySchedule[*tx.PaymentScheduleID] = tx.ID
		}
	}
	return in, nil
}

// SetHouseholdSharing shares or unshares a budget. Only the owner may change
// sharing.
func (s *budgetService) SetHouseholdSharing(ctx context.Context, userID, budgetID string, shared bool, householdID *string) (*models.WeeklyBudget, error) {
	budget, err := s.store.load(ctx, budgetID)
	if err != nil {
		return nil, err
	}
	if budget.UserID != userID {
		canRead, err := s.access.CanAccess(ctx, userID, budget)
		if err != nil {
			return nil, err
		}
		if canRead {
			return nil, apperrors.WithMessage(apperrors.ErrForbidden, "only the budget owner can change sharing")
		}
		return nil, apperrors.ErrBudgetNotFound
	}

	var target *string
	if shared {
		if householdID != nil && *householdID != "" {
			member, err := s.access.IsHouseholdMember(ctx, userID, *householdID)
			if err != nil {
				return nil, err
			}
			if !member {
				return nil, apperrors.ErrHouseholdNotFound
			}
			id := *householdID
			target = &id
		} else {
			household, err := s.access.DefaultHousehold(ctx, userID)
			if errors.Is(err, apperrors.ErrHouseholdNotFound) {
				return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "no household to share with")
			}
			if err != nil {
				return nil, err
			}
			target = &household.ID
		}
	}

	saved, err := s.store.mutate(ctx, userID, budgetID, func(b *models.WeeklyBudget) error {
		b.SharedWithHousehold = shared
		b.HouseholdID = target
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.FromContext(ctx).Infow("Changed budget sharing",
		"budget_id", saved.ID,
		"shared", shared,
		"household_id", target,
	)
	return s.store.view(ctx, saved)
}

// ListHouseholdShared lists budgets shared into any household the user
// belongs to.
func (s *budgetService) ListHouseholdShared(ctx context.Context, userID string, page pagination.PageRequest) (*pagination.PageResponse[models.WeeklyBudget], error) {
	page.Defaults()

	householdIDs, err := s.access.HouseholdIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(householdIDs) == 0 {
		result := pagination.NewPageResponse([]models.WeeklyBudget{}, page.Page, page.PageSize, 0)
		return &result, nil
	}

	base := s.store.db.WithContext(ctx).Model(&models.WeeklyBudget{}).
		Where("shared_with_household = ? AND household_id IN ?", true, householdIDs)
	return s.listViews(ctx, base, page)
}
