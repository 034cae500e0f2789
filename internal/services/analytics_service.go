package services

import (
	"context"
	"math/rand"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"tally/internal/analytics"
	apperrors "tally/internal/errors"
	"tally/internal/logger"
	"tally/internal/models"
	"tally/internal/reconcile"
	"tally/internal/week"
)

// maxWindowDays bounds how much history a single analytics call may scan.
const maxWindowDays = 730

// analyticsService loads spending history and runs the analytics engine on it.
type analyticsService struct {
	store      *budgetStore
	windowDays int
	newRand    func() analytics.Rand
	now        func() time.Time
}

// NewAnalyticsService creates a new AnalyticsServicer.
func NewAnalyticsService(db *gorm.DB, access AccessServicer, opts Options) AnalyticsServicer {
	store := newBudgetStore(db, access, nil, opts)
	return &analyticsService{
		store:      store,
		windowDays: store.opts.AnalyticsWindowDays,
		newRand: func() analytics.Rand {
			return rand.New(rand.NewSource(time.Now().UnixNano()))
		},
		now: time.Now,
	}
}

func (s *analyticsService) window(days int) int {
	if days <= 0 {
		return s.windowDays
	}
	if days > maxWindowDays {
		return maxWindowDays
	}
	return days
}

// history loads the user's expense transactions of the trailing window as
// analysis points.
func (s *analyticsService) history(ctx context.Context, userID string, days int) ([]analytics.Point, time.Time, time.Time, error) {
	to := s.now().UTC()
	from := week.Day(to).AddDate(0, 0, -s.window(days))

	var txs []models.Transaction
	if err := s.store.db.WithContext(ctx).Preload("Category").
		Where("user_id = ? AND type = ? AND date >= ? AND date <= ?",
			userID, models.TransactionTypeExpense, from, to).
		Order("date ASC").
		Order("id ASC").
		Find(&txs).Error; err != nil {
		return nil, from, to, apperrors.Wrap(apperrors.ErrDependencyFailure, err)
	}

	points := make([]analytics.Point, 0, len(txs))
	for _, tx := range txs {
		pt := analytics.Point{
			TransactionID: tx.ID,
			CategoryName:  reconcile.UncategorizedName,
			Description:   tx.Description,
			Amount:        tx.Amount.InexactFloat64(),
			Date:          tx.Date.UTC(),
		}
		if tx.CategoryID != nil {
			pt.CategoryID = *tx.CategoryID
		}
		if tx.Category != nil {
			pt.CategoryName = tx.Category.Name
		}
		points = append(points, pt)
	}
	return points, from, to, nil
}

// Recommendations compares a budget's allocations with its owner's history.
func (s *analyticsService) Recommendations(ctx context.Context, userID, budgetID string) ([]analytics.Recommendation, error) {
	budget, err := s.store.loadFor(ctx, userID, budgetID)
	if err != nil {
		return nil, err
	}

	var (
		view   *models.WeeklyBudget
		points []analytics.Point
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		view, err = s.store.view(gctx, budget)
		return err
	})
	g.Go(func() error {
		var err error
		points, _, _, err = s.history(gctx, budget.UserID, 0)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	allocations := make([]analytics.Allocation, 0, len(view.Categories))
	for _, c := range view.Categories {
		allocations = append(allocations, analytics.Allocation{
			CategoryID:   c.CategoryID,
			CategoryName: c.CategoryName,
			Amount:       c.Allocated,
		})
	}
	recs := analytics.Recommend(allocations, analytics.ExtractPatterns(points))
	if recs == nil {
		recs = []analytics.Recommendation{}
	}
	return recs, nil
}

// SpendingInsights summarizes the user's spending over the last days.
func (s *analyticsService) SpendingInsights(ctx context.Context, userID string, days int) (*analytics.Insights, error) {
	points, from, to, err := s.history(ctx, userID, days)
	if err != nil {
		return nil, err
	}
	insights := analytics.BuildInsights(points, from, to)
	return &insights, nil
}

// Anomalies reports unusually large or small expenses in the window.
func (s *analyticsService) Anomalies(ctx context.Context, userID string, days int) ([]analytics.Anomaly, error) {
	points, _, _, err := s.history(ctx, userID, days)
	if err != nil {
		return nil, err
	}
	anomalies := analytics.DetectAnomalies(analytics.ExtractPatterns(points))
	if anomalies == nil {
		anomalies = []analytics.Anomaly{}
	}
	return anomalies, nil
}

// OptimizedAllocations plans how to split total across categories for the
// week containing weekOf.
func (s *analyticsService) OptimizedAllocations(ctx context.Context, userID string, total decimal.Decimal, weekOf time.Time) (*analytics.AllocationPlan, error) {
	if total.IsNegative() {
		return nil, apperrors.ErrInvalidAmount
	}
	if weekOf.IsZero() {
		weekOf = s.now()
	}
	w := week.Of(weekOf.UTC())

	var (
		points    []analytics.Point
		scheduled []analytics.ScheduledPayment
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		points, _, _, err = s.history(gctx, userID, 0)
		return err
	})
	g.Go(func() error {
		var err error
		scheduled, err = s.pendingSchedules(gctx, userID, w)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	plan := analytics.Optimize(total, scheduled, analytics.ExtractPatterns(points))
	logger.FromContext(ctx).Debugw("Optimized allocations",
		"user_id", userID,
		"week_start", w.Start.Format(week.Layout),
		"items", len(plan.Items),
		"utilization", plan.Utilization,
	)
	return &plan, nil
}

func (s *analyticsService) pendingSchedules(ctx context.Context, userID string, w week.Week) ([]analytics.ScheduledPayment, error) {
	db := s.store.db.WithContext(ctx)

	var schedules []models.PaymentSchedule
	if err := db.Where("user_id = ? AND status IN ? AND due_date >= ? AND due_date < ?",
		userID,
		[]models.PaymentStatus{models.PaymentStatusPending, models.PaymentStatusOverdue},
		w.Start, w.EndExclusive()).
		Order("due_date ASC").
		Find(&schedules).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDependencyFailure, err)
	}
	if len(schedules) == 0 {
		return nil, nil
	}

	categoryIDs := make([]string, 0, len(schedules))
	for _, sc := range schedules {
		categoryIDs = append(categoryIDs, sc.CategoryID)
	}
	var categories []models.Category
	if err := db.Where("id IN ?", categoryIDs).Find(&categories).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDependencyFailure, err)
	}
	names := make(map[string]string, len(categories))
	for _, c := range categories {
		names[c.ID] = c.Name
	}

	out := make([]analytics.ScheduledPayment, 0, len(schedules))
	for _, sc := range schedules {
		name := names[sc.CategoryID]
		if name == "" {
			name = reconcile.UncategorizedName
		}
		out = append(out, analytics.ScheduledPayment{
			CategoryID:   sc.CategoryID,
			CategoryName: name,
			Amount:       sc.Amount,
		})
	}
	return out, nil
}

// Forecast projects weekly spending per category starting next week.
func (s *analyticsService) Forecast(ctx context.Context, userID string, weeks int) (*analytics.Forecast, error) {
	points, _, _, err := s.history(ctx, userID, 0)
	if err != nil {
		return nil, err
	}
	first := week.Of(s.now().UTC()).Next().Start
	forecast := analytics.Project(analytics.ExtractPatterns(points), weeks, first, s.newRand())
	return &forecast, nil
}
