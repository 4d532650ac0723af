package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// UserType identifies which principal table a token owner belongs to.
type UserType string

const (
	UserTypeClient     UserType = "client"
	UserTypeTechnician UserType = "technician"
	UserTypeAdmin      UserType = "admin"
)

// ParseUserType accepts the closed set of user types, case-insensitively.
func ParseUserType(raw string) (UserType, bool) {
	switch UserType(strings.ToLower(strings.TrimSpace(raw))) {
	case UserTypeClient:
		return UserTypeClient, true
	case UserTypeTechnician:
		return UserTypeTechnician, true
	case UserTypeAdmin:
		return UserTypeAdmin, true
	}
	return "", false
}

// DeviceToken is a push registration token owned by one principal.
type DeviceToken struct {
	ID         string         `gorm:"type:varchar(36);primaryKey" json:"id"`
	UserID     uint           `gorm:"not null;index:idx_device_tokens_owner" json:"userId"`
	UserType   UserType       `gorm:"type:varchar(16);not null;index:idx_device_tokens_owner" json:"userType"`
	Token      string         `gorm:"type:varchar(512);not null;uniqueIndex" json:"token"`
	DeviceInfo datatypes.JSON `json:"deviceInfo,omitempty"`
	IsActive   bool           `gorm:"not null;default:true" json:"isActive"`
	LastUsedAt time.Time      `json:"lastUsedAt"`
	CreatedAt  time.Time      `json:"createdAt"`
	UpdatedAt  time.Time      `json:"updatedAt"`
}

func (t *DeviceToken) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	return nil
}

// TokenView hides most of the token value for debug listings.
type TokenView struct {
	ID           string    `json:"id"`
	TokenPreview string    `json:"tokenPreview"`
	TokenLength  int       `json:"tokenLength"`
	Kind         string    `json:"kind"`
	IsActive     bool      `json:"isActive"`
	LastUsedAt   time.Time `json:"lastUsedAt"`
	CreatedAt    time.Time `json:"createdAt"`
}

// PurgeResult reports the outcome of a token cleanup sweep.
type PurgeResult struct {
	DeletedCount int `json:"deletedCount"`
	KeptCount    int `json:"keptCount"`
}
