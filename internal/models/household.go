package models

// Household groups users that may see each other's shared budgets.
// Membership is managed elsewhere; this service only reads it.
type Household struct {
	Base
	OwnerID string            `gorm:"type:uuid;not null;index" json:"owner_id"`
	Name    string            `gorm:"not null" json:"name"`
	Members []HouseholdMember `gorm:"foreignKey:HouseholdID" json:"members,omitempty"`
}

// HouseholdMember lists a non-owner member of a household.
type HouseholdMember struct {
	Base
	HouseholdID string `gorm:"type:uuid;not null;uniqueIndex:idx_household_member" json:"household_id"`
	UserID      string `gorm:"type:uuid;not null;uniqueIndex:idx_household_member" json:"user_id"`
}
