package models

// User is the minimal principal record. Credentials live with the external
// identity provider.
type User struct {
	Base
	Email     string `gorm:"uniqueIndex;not null" json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}
