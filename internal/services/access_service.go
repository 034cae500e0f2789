package services

import (
	"context"
	"errors"

	"gorm.io/gorm"

	apperrors "tally/internal/errors"
	"tally/internal/models"
)

// accessService resolves budget visibility from household membership.
type accessService struct {
	db *gorm.DB
}

// NewAccessService creates a new AccessServicer.
func NewAccessService(db *gorm.DB) AccessServicer {
	return &accessService{db: db}
}

// CanAccess reports whether userID owns the budget or belongs to the
// household it is shared with.
func (s *accessService) CanAccess(ctx context.Context, userID string, budget *models.WeeklyBudget) (bool, error) {
	if budget.UserID == userID {
		return true, nil
	}
	if !budget.SharedWithHousehold || budget.HouseholdID == nil {
		return false, nil
	}
	return s.IsHouseholdMember(ctx, userID, *budget.HouseholdID)
}

// IsHouseholdMember reports whether userID owns or is listed in the household.
func (s *accessService) IsHouseholdMember(ctx context.Context, userID, householdID string) (bool, error) {
	var household models.Household
	if err := s.db.WithContext(ctx).Where("id = ?", householdID).First(&household).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, apperrors.Wrap(apperrors.ErrDependencyFailure, err)
	}
	if household.OwnerID == userID {
		return true, nil
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.HouseholdMember{}).
		Where("household_id = ? AND user_id = ?", householdID, userID).
		Count(&count).Error; err != nil {
		return false, apperrors.Wrap(apperrors.ErrDependencyFailure, err)
	}
	return count > 0, nil
}

// HouseholdIDs lists every household userID owns or is a member of.
func (s *accessService) HouseholdIDs(ctx context.Context, userID string) ([]string, error) {
	var owned []string
	if err := s.db.WithContext(ctx).Model(&models.Household{}).
		Where("owner_id = ?", userID).
		Pluck("id", &owned).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDependencyFailure, err)
	}

	var member []string
	if err := s.db.WithContext(ctx).Model(&models.HouseholdMember{}).
		Where("user_id = ?", userID).
		Pluck("household_id", &member).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDependencyFailure, err)
	}

	seen := make(map[string]struct{}, len(owned)+len(member))
	ids := make([]string, 0, len(owned)+len(member))
	for _, id := range append(owned, member...) {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids, nil
}

// DefaultHousehold returns the oldest household userID owns, falling back to
// the oldest one they are a member of.
func (s *accessService) DefaultHousehold(ctx context.Context, userID string) (*models.Household, error) {
	var household models.Household
	err := s.db.WithContext(ctx).Where("owner_id = ?", userID).Order("created_at ASC").First(&household).Error
	if err == nil {
		return &household, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.Wrap(apperrors.ErrDependencyFailure, err)
	}

	err = s.db.WithContext(ctx).
		Joins("JOIN household_members ON household_members.household_id = households.id AND household_members.deleted_at IS NULL").
		Where("household_members.user_id = ?", userID).
		Order("households.created_at ASC").
		First(&household).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrHouseholdNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrDependencyFailure, err)
	}
	return &household, nil
}
