package models

import (
	"time"

	"gorm.io/gorm"
)

// Alert represents a user-defined threshold alert. Once triggered it is
// terminal: re-arming requires creating a new alert, never resetting the flag.
type Alert struct {
	ID               uint       `gorm:"primaryKey" json:"id"`
	UserID           uint       `gorm:"index" json:"ownerUserId"`
	User             User       `gorm:"foreignKey:UserID" json:"-"`
	Symbol           string     `gorm:"index;not null" json:"symbol"`
	AlertType        string     `json:"alertType"` // price, volume, change_percent
	Condition        string     `json:"condition"` // above, below, equals
	TargetValue      float64    `json:"targetValue"`
	CurrentValue     float64    `json:"currentValue"`
	Message          string     `json:"message"`
	IsActive         bool       `gorm:"default:true" json:"isActive"`
	IsTriggered      bool       `gorm:"default:false" json:"isTriggered"`
	TriggeredAt      *time.Time `json:"triggeredAt,omitempty"`
	NotificationSent bool       `gorm:"default:false" json:"notificationSent"`
	Priority         string     `gorm:"default:'medium'" json:"priority"` // low, medium, high
	ExpiresAt        *time.Time `json:"expiresAt,omitempty"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"-"`
}

// Alert type constants
const (
	AlertTypePrice         = "price"
	AlertTypeVolume        = "volume"
	AlertTypeChangePercent = "change_percent"
)

// Alert condition constants
const (
	ConditionAbove  = "above"
	ConditionBelow  = "below"
	ConditionEquals = "equals"
)

// Alert priority constants
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

// ValidAlertTypes returns valid alert types
func ValidAlertTypes() []string {
	return []string{AlertTypePrice, AlertTypeVolume, AlertTypeChangePercent}
}

// ValidAlertConditions returns valid alert conditions
func ValidAlertConditions() []string {
	return []string{ConditionAbove, ConditionBelow, ConditionEquals}
}

// ValidAlertPriorities returns valid alert priorities
func ValidAlertPriorities() []string {
	return []string{PriorityLow, PriorityMedium, PriorityHigh}
}

// IsValidAlertType checks if the alert type is valid
func IsValidAlertType(alertType string) bool {
	for _, valid := range ValidAlertTypes() {
		if alertType == valid {
			return true
		}
	}
	return false
}

// IsValidAlertCondition checks if the condition is valid
func IsValidAlertCondition(condition string) bool {
	for _, valid := range ValidAlertConditions() {
		if condition == valid {
			return true
		}
	}
	return false
}

// IsValidAlertPriority checks if the priority is valid
func IsValidAlertPriority(priority string) bool {
	for _, valid := range ValidAlertPriorities() {
		if priority == valid {
			return true
		}
	}
	return false
}

// IsEligible reports whether the alert should be evaluated: active, not yet
// triggered, and not past its expiry.
func (a *Alert) IsEligible(now time.Time) bool {
	if !a.IsActive || a.IsTriggered {
		return false
	}
	if a.ExpiresAt != nil && !a.ExpiresAt.After(now) {
		return false
	}
	return true
}

// MigrateAlertModels runs database migrations for alert models
func MigrateAlertModels(db *gorm.DB) error {
	return db.AutoMigrate(&Alert{})
}
