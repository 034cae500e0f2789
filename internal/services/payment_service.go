package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	apperrors "tally/internal/errors"
	"tally/internal/events"
	"tally/internal/logger"
	"tally/internal/models"
	"tally/internal/reconcile"
	"tally/internal/uuid"
	"tally/internal/week"
)

// paymentService manages payment entries inside weekly budgets and keeps the
// ledger and payment schedules in step with them.
type paymentService struct {
	store *budgetStore
	now   func() time.Time
}

// NewPaymentService creates a new PaymentServicer.
func NewPaymentService(db *gorm.DB, access AccessServicer, publisher events.Publisher, opts Options) PaymentServicer {
	return &paymentService{
		store: newBudgetStore(db, access, publisher, opts),
		now:   time.Now,
	}
}

// AddPayment schedules a new pending payment in a budget category. The
// category reference may be a budget category id or a category id.
func (s *paymentService) AddPayment(ctx context.Context, userID, budgetID, categoryRef string, in AddPaymentInput) (*PaymentResult, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "name is required")
	}
	if !in.Amount.IsPositive() {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidAmount, "amount must be greater than zero")
	}
	recurrence := in.Recurrence
	if recurrence == "" {
		recurrence = models.RecurrenceNone
	}

	budget, err := s.store.loadFor(ctx, userID, budgetID)
	if err != nil {
		return nil, err
	}
	categoryID, categoryName, err := s.resolveCategoryRef(ctx, budget, categoryRef)
	if err != nil {
		return nil, err
	}
	dueDate, err := s.scheduledDate(budget, in.ScheduledDate)
	if err != nil {
		return nil, err
	}

	scheduleID := uuid.New()
	entry := models.PaymentEntry{
		ID:            uuid.New(),
		Name:          name,
		Amount:        in.Amount,
		ScheduledDate: dueDate,
		Status:        models.PaymentStatusPending,
		Notes:         in.Notes,
		Source:        models.ScheduleRef(scheduleID),
	}

	saved, err := s.store.mutate(ctx, userID, budgetID, func(b *models.WeeklyBudget) error {
		ci := reconcile.EnsureCategory(b, categoryID, categoryName)
		bc := &b.Categories[ci]
		bc.Payments = append(bc.Payments, entry)
		if bc.Allocated.IsZero() {
			bc.Allocated = bc.PaymentTotal()
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	schedule := &models.PaymentSchedule{
		Base:           models.Base{ID: scheduleID},
		UserID:         saved.UserID,
		Name:           name,
		Amount:         in.Amount,
		CategoryID:     categoryID,
		DueDate:        dueDate,
		Status:         models.PaymentStatusPending,
		Recurrence:     recurrence,
		Notes:          in.Notes,
		WeeklyBudgetID: &saved.ID,
	}
	ref := effectRef{PaymentID: entry.ID, ScheduleID: scheduleID}
	if err := s.store.applySideEffects(ctx, saved, ref, func(tx *gorm.DB) error {
		return tx.Create(schedule).Error
	}); err != nil {
		return nil, err
	}

	logger.FromContext(ctx).Infow("Added payment",
		"budget_id", saved.ID,
		"payment_id", entry.ID,
		"schedule_id", scheduleID,
		"category_id", categoryID,
	)
	return s.result(ctx, saved, entry.ID)
}

func (s *paymentService) resolveCategoryRef(ctx context.Context, budget *models.WeeklyBudget, ref string) (string, string, error) {
	if ci := budget.FindCategory(ref); ci >= 0 {
		bc := budget.Categories[ci]
		if bc.CategoryID == "" {
			return "", "", apperrors.WithMessage(apperrors.ErrInvalidInput, "payments cannot be added to the uncategorized bucket")
		}
		return bc.CategoryID, bc.CategoryName, nil
	}
	category, err := findVisibleCategory(ctx, s.store.db, budget.UserID, ref)
	if err != nil {
		return "", "", err
	}
	return category.ID, category.Name, nil
}

// scheduledDate validates a requested date against the budget's week. With
// no date, today is used, clamped into the week.
func (s *paymentService) scheduledDate(budget *models.WeeklyBudget, requested *time.Time) (time.Time, error) {
	if requested != nil {
		day := week.Day(requested.UTC())
		if !budget.Contains(day) {
			return time.Time{}, apperrors.WithMessage(apperrors.ErrInvalidInput, "scheduled_date must fall within the budget week")
		}
		return day, nil
	}
	today := week.Day(s.now().UTC())
	switch {
	case today.Before(budget.WeekStart):
		return budget.WeekStart, nil
	case today.After(budget.WeekEnd):
		return budget.WeekEnd, nil
	}
	return today, nil
}

// UpdatePaymentStatus moves a payment between pending and paid.
func (s *paymentService) UpdatePaymentStatus(ctx context.Context, userID, budgetID, paymentID string, status models.PaymentStatus, paidBy *string) (*PaymentResult, error) {
	return s.applyChange(ctx, userID, budgetID, paymentID, PaymentChange{Status: &status, PaidBy: paidBy})
}

// UpdatePayment edits a payment's fields and, optionally, its status.
func (s *paymentService) UpdatePayment(ctx context.Context, userID, budgetID, paymentID string, change PaymentChange) (*PaymentResult, error) {
	return s.applyChange(ctx, userID, budgetID, paymentID, change)
}

// paymentPlan is what a payment change requires outside the budget row.
type paymentPlan struct {
	transition reconcile.Transition
	entry      models.PaymentEntry
	categoryID string
	txID       string
	createTx   bool
	linkTx     bool
	mirrorTx   bool
	revertTxs  []string
}

func (s *paymentService) applyChange(ctx context.Context, userID, budgetID, paymentID string, c PaymentChange) (*PaymentResult, error) {
	var name string
	if c.Name != nil {
		name = strings.TrimSpace(*c.Name)
		if name == "" {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "name must not be empty")
		}
	}
	if c.Amount != nil && !c.Amount.IsPositive() {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidAmount, "amount must be greater than zero")
	}
	if c.Status != nil && *c.Status != models.PaymentStatusPending && *c.Status != models.PaymentStatusPaid {
		return nil, apperrors.ErrInvalidPaymentStatus
	}

	budget, err := s.store.loadFor(ctx, userID, budgetID)
	if err != nil {
		return nil, err
	}
	paymentID = resolveEntryID(budget, paymentID)
	if _, _, ok := budget.FindPayment(paymentID); !ok {
		return nil, s.missingPayment(ctx, budget, paymentID)
	}

	var dueDate *time.Time
	if c.ScheduledDate != nil {
		day := week.Day(c.ScheduledDate.UTC())
		if !budget.Contains(day) {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "scheduled_date must fall within the budget week")
		}
		dueDate = &day
	}
	var target *models.Category
	if c.CategoryID != nil {
		target, err = findVisibleCategory(ctx, s.store.db, budget.UserID, *c.CategoryID)
		if err != nil {
			return nil, err
		}
	}
	payer := userID
	if c.PaidBy != nil && *c.PaidBy != "" {
		payer = *c.PaidBy
	}

	var plan paymentPlan
	saved, err := s.store.mutate(ctx, userID, budgetID, func(b *models.WeeklyBudget) error {
		plan = paymentPlan{}
		ci, pi, ok := b.FindPayment(paymentID)
		if !ok {
			return apperrors.ErrPaymentNotFound
		}
		e := &b.Categories[ci].Payments[pi]
		before := *e
		beforeCategory := b.Categories[ci].CategoryID

		if c.Name != nil {
			e.Name = name
		}
		if c.Amount != nil {
			e.Amount = *c.Amount
		}
		if dueDate != nil {
			e.ScheduledDate = *dueDate
		}
		if c.Notes != nil {
			e.Notes = *c.Notes
		}
		if target != nil {
			ci, pi = reconcile.MoveEntry(b, ci, pi, target.ID, target.Name)
			e = &b.Categories[ci].Payments[pi]
		}
		categoryChanged := b.Categories[ci].CategoryID != beforeCategory

		if c.Status != nil {
			plan.transition = reconcile.PlanTransition(before.Status, *c.Status)
		}
		switch plan.transition {
		case reconcile.TransitionPay:
			existing, err := s.findPaymentTransactions(ctx, b.UserID, e)
			if err != nil {
				return err
			}
			if len(existing) > 0 {
				plan.txID = existing[0]
				plan.linkTx = true
			} else {
				plan.txID = uuid.New()
				plan.createTx = true
			}
			reconcile.MarkPaid(e, payer, s.now().UTC(), plan.txID)

		case reconcile.TransitionRevert:
			if e.TransactionID != nil {
				plan.txID = *e.TransactionID
				plan.revertTxs = append(plan.revertTxs, *e.TransactionID)
			}
			reconcile.MarkPending(e)

		default:
			if e.IsPaid() && e.TransactionID != nil &&
				(!e.Amount.Equal(before.Amount) || e.Name != before.Name || categoryChanged) {
				plan.txID = *e.TransactionID
				plan.mirrorTx = true
			}
		}

		plan.entry = *e
		plan.categoryID = b.Categories[ci].CategoryID
		return nil
	})
	if err != nil {
		return nil, err
	}

	ref := effectRef{PaymentID: plan.entry.ID, TransactionID: plan.txID, ScheduleID: plan.entry.ScheduleID()}
	if err := s.store.applySideEffects(ctx, saved, ref, func(tx *gorm.DB) error {
		return s.syncLedger(tx, saved.UserID, plan)
	}); err != nil {
		return nil, err
	}

	s.announce(ctx, saved, userID, plan)
	return s.result(ctx, saved, plan.entry.ID)
}

// syncLedger applies a payment plan to the transactions and the schedule
// behind the entry.
func (s *paymentService) syncLedger(tx *gorm.DB, ownerID string, plan paymentPlan) error {
	entry := plan.entry
	scheduleID := entry.ScheduleID()
	var categoryID *string
	if plan.categoryID != "" {
		id := plan.categoryID
		categoryID = &id
	}

	switch plan.transition {
	case reconcile.TransitionPay:
		if plan.createTx {
			transaction := &models.Transaction{
				Base:           models.Base{ID: plan.txID},
				UserID:         ownerID,
				CategoryID:     categoryID,
				Type:           models.TransactionTypeExpense,
				Amount:         entry.Amount,
				Description:    entry.Name,
				Date:           *entry.PaidAt,
				PaymentEntryID: &entry.ID,
			}
			if scheduleID != "" {
				transaction.PaymentScheduleID = &scheduleID
			}
			if err := tx.Create(transaction).Error; err != nil {
				return err
			}
		} else if plan.linkTx {
			updates := map[string]interface{}{
				"payment_entry_id": entry.ID,
				"amount":           entry.Amount,
				"category_id":      categoryID,
				"description":      entry.Name,
			}
			if err := tx.Model(&models.Transaction{}).
				Where("id = ? AND user_id = ?", plan.txID, ownerID).
				Updates(updates).Error; err != nil {
				return err
			}
		}

	case reconcile.TransitionRevert:
		var scheduleIDs []string
		if scheduleID != "" {
			scheduleIDs = []string{scheduleID}
		}
		if err := deletePaymentTransactions(tx, ownerID, plan.revertTxs, scheduleIDs, []string{entry.ID}); err != nil {
			return err
		}
	}

	if plan.mirrorTx {
		if err := tx.Model(&models.Transaction{}).
			Where("id = ? AND user_id = ?", plan.txID, ownerID).
			Updates(map[string]interface{}{
				"amount":      entry.Amount,
				"category_id": categoryID,
				"description": entry.Name,
			}).Error; err != nil {
			return err
		}
	}

	if scheduleID == "" {
		return nil
	}
	updates := map[string]interface{}{
		"name":     entry.Name,
		"amount":   entry.Amount,
		"due_date": entry.ScheduledDate,
		"notes":    entry.Notes,
	}
	if categoryID != nil {
		updates["category_id"] = *categoryID
	}
	switch plan.transition {
	case reconcile.TransitionPay:
		updates["status"] = models.PaymentStatusPaid
		updates["paid_by"] = *entry.PaidBy
		updates["paid_at"] = *entry.PaidAt
	case reconcile.TransitionRevert:
		updates["status"] = models.PaymentStatusPending
		updates["paid_by"] = nil
		updates["paid_at"] = nil
	}
	return tx.Model(&models.PaymentSchedule{}).
		Where("id = ? AND user_id = ?", scheduleID, ownerID).
		Updates(updates).Error
}

// findPaymentTransactions returns ids of ledger transactions already
// recording the entry, by link or by either back-reference marker.
func (s *paymentService) findPaymentTransactions(ctx context.Context, ownerID string, e *models.PaymentEntry) ([]string, error) {
	db := s.store.db.WithContext(ctx)
	match := db.Where("payment_entry_id = ?", e.ID)
	if e.TransactionID != nil {
		match = match.Or("id = ?", *e.TransactionID)
	}
	if sid := e.ScheduleID(); sid != "" {
		match = match.Or("payment_schedule_id = ?", sid)
	}

	var ids []string
	if err := db.Model(&models.Transaction{}).
		Where("user_id = ?", ownerID).
		Where(match).
		Order("created_at ASC").
		Pluck("id", &ids).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDependencyFailure, err)
	}
	return ids, nil
}

func (s *paymentService) announce(ctx context.Context, budget *models.WeeklyBudget, userID string, plan paymentPlan) {
	var eventType string
	switch plan.transition {
	case reconcile.TransitionPay:
		eventType = events.TypePaymentPaid
	case reconcile.TransitionRevert:
		eventType = events.TypePaymentReverted
	default:
		return
	}

	amount := plan.entry.Amount
	logger.FromContext(ctx).Infow("Payment status changed",
		"budget_id", budget.ID,
		"payment_id", plan.entry.ID,
		"transaction_id", plan.txID,
		"transition", plan.transition.String(),
	)
	s.store.publish(ctx, events.Event{
		Type:          eventType,
		BudgetID:      budget.ID,
		PaymentID:     plan.entry.ID,
		TransactionID: plan.txID,
		ScheduleID:    plan.entry.ScheduleID(),
		UserID:        userID,
		Amount:        &amount,
	})
}

func (s *paymentService) result(ctx context.Context, saved *models.WeeklyBudget, paymentID string) (*PaymentResult, error) {
	view, err := s.store.view(ctx, saved)
	if err != nil {
		return nil, err
	}
	res := &PaymentResult{Budget: view}
	if ci, pi, ok := view.FindPayment(paymentID); ok {
		res.Payment = view.Categories[ci].Payments[pi]
	}
	return res, nil
}

// resolveEntryID maps the id of a transaction linked to an entry back to
// that entry's id. Other ids are returned unchanged.
func resolveEntryID(budget *models.WeeklyBudget, id string) string {
	if _, _, ok := budget.FindPayment(id); ok {
		return id
	}
	for _, c := range budget.Categories {
		for _, e := range c.Payments {
			if e.TransactionID != nil && *e.TransactionID == id {
				return e.ID
			}
		}
	}
	return id
}

// missingPayment explains an id that is not a stored entry. Ledger expenses
// of the week show up as entries in the view but cannot be edited here.
func (s *paymentService) missingPayment(ctx context.Context, budget *models.WeeklyBudget, id string) error {
	transaction, err := s.weekTransaction(ctx, budget, id)
	if err != nil {
		return err
	}
	if transaction != nil {
		return apperrors.ErrPaymentReadOnly
	}
	return apperrors.ErrPaymentNotFound
}

func (s *paymentService) weekTransaction(ctx context.Context, budget *models.WeeklyBudget, id string) (*models.Transaction, error) {
	var transaction models.Transaction
	err := s.store.db.WithContext(ctx).
		Where("id = ? AND user_id = ? AND type = ? AND date >= ? AND date < ?",
			id, budget.UserID, models.TransactionTypeExpense, budget.WeekStart, budget.WeekEnd.AddDate(0, 0, 1)).
		First(&transaction).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, apperrors.Wrap(apperrors.ErrDependencyFailure, err)
	}
	return &transaction, nil
}

// checkViewTransaction rejects ledger rows that the budget view never shows:
// transactions owned by a paid entry (possibly in another week's budget) and
// instant payments.
func (s *paymentService) checkViewTransaction(ctx context.Context, transaction *models.Transaction) error {
	if transaction.IsPaymentLinked() {
		return apperrors.ErrPaymentReadOnly
	}
	instantID, err := instantPaymentCategoryID(ctx, s.store.db, s.store.opts.InstantPaymentCategory)
	if err != nil {
		return err
	}
	if instantID != "" && transaction.CategoryID != nil && *transaction.CategoryID == instantID {
		return apperrors.ErrPaymentReadOnly
	}
	return nil
}

// DeletePayment removes a payment entry with its schedule and transaction.
// When the id names a ledger expense of the budget's week instead, that
// transaction is deleted.
func (s *paymentService) DeletePayment(ctx context.Context, userID, budgetID, paymentID string) (*DeletePaymentResult, error) {
	budget, err := s.store.loadFor(ctx, userID, budgetID)
	if err != nil {
		return nil, err
	}
	paymentID = resolveEntryID(budget, paymentID)

	if _, _, ok := budget.FindPayment(paymentID); !ok {
		transaction, err := s.weekTransaction(ctx, budget, paymentID)
		if err != nil {
			return nil, err
		}
		if transaction == nil {
			return nil, apperrors.ErrPaymentNotFound
		}
		if err := s.checkViewTransaction(ctx, transaction); err != nil {
			return nil, err
		}
		if err := s.store.db.WithContext(ctx).Delete(transaction).Error; err != nil {
			return nil, apperrors.Wrap(apperrors.ErrDependencyFailure, err)
		}
		logger.FromContext(ctx).Infow("Deleted ledger transaction from budget view",
			"budget_id", budget.ID,
			"transaction_id", transaction.ID,
		)
		return &DeletePaymentResult{Kind: DeletedTransaction, ID: transaction.ID}, nil
	}

	var removed models.PaymentEntry
	saved, err := s.store.mutate(ctx, userID, budgetID, func(b *models.WeeklyBudget) error {
		ci, pi, ok := b.FindPayment(paymentID)
		if !ok {
			return apperrors.ErrPaymentNotFound
		}
		removed = reconcile.RemoveEntry(b, ci, pi)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := s.store.cascadeDelete(ctx, saved, []models.PaymentEntry{removed}); err != nil {
		return nil, err
	}
	logger.FromContext(ctx).Infow("Deleted payment",
		"budget_id", saved.ID,
		"payment_id", removed.ID,
	)
	return &DeletePaymentResult{Kind: DeletedPayment, ID: removed.ID}, nil
}
