package model

import "time"

// AuthProviderLocal marks accounts that log in with a stored password.
const AuthProviderLocal = "local"

// User is a client account of the ticketing product.
type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Name         string    `gorm:"type:varchar(120);not null" json:"name"`
	Email        string    `gorm:"type:varchar(255);not null;uniqueIndex" json:"email"`
	Phone        string    `gorm:"type:varchar(32)" json:"phone"`
	PasswordHash string    `gorm:"type:varchar(255)" json:"-"`
	AuthProvider string    `gorm:"type:varchar(16);not null;default:local" json:"authProvider"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// TeamRole is the role of a maintenance-team member.
type TeamRole string

const (
	RoleAdmin      TeamRole = "admin"
	RoleTechnician TeamRole = "technician"
	RoleReviewer   TeamRole = "reviewer"
)

// Valid reports whether r is one of the known team roles.
func (r TeamRole) Valid() bool {
	switch r {
	case RoleAdmin, RoleTechnician, RoleReviewer:
		return true
	}
	return false
}

// UserType maps a team role onto the token owner type.
// Reviewers receive client-typed notifications. Team ids overlap users ids,
// so reviewer N shares the (N, client) token key with client user N.
func (r TeamRole) UserType() UserType {
	switch r {
	case RoleAdmin:
		return UserTypeAdmin
	case RoleTechnician:
		return UserTypeTechnician
	}
	return UserTypeClient
}

// TeamMember is an admin, technician or reviewer.
type TeamMember struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Name         string    `gorm:"type:varchar(120);not null" json:"name"`
	Email        *string   `gorm:"type:varchar(255);uniqueIndex" json:"email"`
	Phone        string    `gorm:"type:varchar(32);not null;uniqueIndex" json:"phone"`
	PasswordHash string    `gorm:"type:varchar(255);not null" json:"-"`
	Role         TeamRole  `gorm:"type:varchar(16);not null;index" json:"role"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

func (TeamMember) TableName() string {
	return "maintenance_team"
}
