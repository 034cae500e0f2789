package services

import (
	"context"
	"errors"

	"gorm.io/gorm"

	apperrors "tally/internal/errors"
	"tally/internal/logger"
	"tally/internal/models"
	"tally/internal/pagination"
)

// systemCategory is a default category visible to every user.
type systemCategory struct {
	Name        string
	Type        models.CategoryType
	Description string
	Icon        string
	Color       string
}

var defaultCategories = []systemCategory{
	{Name: "Housing", Type: models.CategoryTypeExpense, Description: "Rent, mortgage and home costs", Icon: "home", Color: "#4F46E5"},
	{Name: "Groceries", Type: models.CategoryTypeExpense, Description: "Food and household supplies", Icon: "cart", Color: "#16A34A"},
	{Name: "Transport", Type: models.CategoryTypeExpense, Description: "Fuel, fares and parking", Icon: "car", Color: "#F59E0B"},
	{Name: "Utilities", Type: models.CategoryTypeExpense, Description: "Power, water and internet", Icon: "bolt", Color: "#0EA5E9"},
	{Name: "Salary", Type: models.CategoryTypeIncome, Description: "Employment income", Icon: "briefcase", Color: "#22C55E"},
}

// categoryService handles category lookups.
type categoryService struct {
	db                 *gorm.DB
	instantPaymentName string
}

// NewCategoryService creates a new CategoryServicer. instantPaymentName names
// the system category whose transactions are never merged into budgets.
func NewCategoryService(db *gorm.DB, instantPaymentName string) CategoryServicer {
	return &categoryService{db: db, instantPaymentName: instantPaymentName}
}

// visibleTo scopes a category query to system defaults and the user's own.
func visibleTo(userID string) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("(user_id IS NULL OR user_id = ?)", userID)
	}
}

// GetUserCategories retrieves a paginated list of categories visible to a user.
func (s *categoryService) GetUserCategories(ctx context.Context, userID string, page pagination.PageRequest) (*pagination.PageResponse[models.Category], error) {
	page.Defaults()

	var totalItems int64
	base := s.db.WithContext(ctx).Model(&models.Category{}).Scopes(visibleTo(userID))
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var categories []models.Category
	if err := base.Order("name ASC").Scopes(pagination.Paginate(page)).Find(&categories).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(categories, page.Page, page.PageSize, totalItems)
	return &result, nil
}

// GetUserCategoriesByType retrieves a paginated list of visible categories of one type.
func (s *categoryService) GetUserCategoriesByType(ctx context.Context, userID string, categoryType models.CategoryType, page pagination.PageRequest) (*pagination.PageResponse[models.Category], error) {
	page.Defaults()

	var totalItems int64
	base := s.db.WithContext(ctx).Model(&models.Category{}).Scopes(visibleTo(userID)).Where("type = ?", categoryType)
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var categories []models.Category
	if err := base.Order("name ASC").Scopes(pagination.Paginate(page)).Find(&categories).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(categories, page.Page, page.PageSize, totalItems)
	return &result, nil
}

// GetCategoryByID retrieves a category visible to the user.
func (s *categoryService) GetCategoryByID(ctx context.Context, userID, categoryID string) (*models.Category, error) {
	return findVisibleCategory(ctx, s.db, userID, categoryID)
}

func findVisibleCategory(ctx context.Context, db *gorm.DB, userID, categoryID string) (*models.Category, error) {
	var category models.Category
	err := db.WithContext(ctx).Scopes(visibleTo(userID)).Where("id = ?", categoryID).First(&category).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrCategoryNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &category, nil
}

// SeedSystemCategories creates the default categories, including the
// instant-payment category, when they do not exist yet.
func (s *categoryService) SeedSystemCategories(ctx context.Context) error {
	seeds := append([]systemCategory(nil), defaultCategories...)
	if s.instantPaymentName != "" {
		seeds = append(seeds, systemCategory{
			Name:        s.instantPaymentName,
			Type:        models.CategoryTypeExpense,
			Description: "Paid through instant payments",
			Icon:        "flash",
			Color:       "#6B7280",
		})
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, seed := range seeds {
			var count int64
			if err := tx.Model(&models.Category{}).
				Where("user_id IS NULL AND name = ?", seed.Name).
				Count(&count).Error; err != nil {
				return apperrors.Wrap(apperrors.ErrInternalServer, err)
			}
			if count > 0 {
				continue
			}
			category := &models.Category{
				Name:        seed.Name,
				Type:        seed.Type,
				Description: seed.Description,
				Icon:        seed.Icon,
				Color:       seed.Color,
			}
			if err := tx.Create(category).Error; err != nil {
				return apperrors.Wrap(apperrors.ErrInternalServer, err)
			}
			logger.FromContext(ctx).Infow("Seeded system category", "name", seed.Name, "id", category.ID)
		}
		return nil
	})
}

// instantPaymentCategoryID resolves the system instant-payment category.
// It returns "" when none is configured or seeded.
func instantPaymentCategoryID(ctx context.Context, db *gorm.DB, name string) (string, error) {
	if name == "" {
		return "", nil
	}
	var ids []string
	if err := db.WithContext(ctx).Model(&models.Category{}).
		Where("user_id IS NULL AND name = ?", name).
		Limit(1).
		Pluck("id", &ids).Error; err != nil {
		return "", apperrors.Wrap(apperrors.ErrDependencyFailure, err)
	}
	if len(ids) == 0 {
		return "", nil
	}
	return ids[0], nil
}
