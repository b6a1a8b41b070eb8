package alerts

import (
	"context"
	"fmt"
	"time"

	"marketpulse/models"

	"gorm.io/gorm"
)

// Store is the durable alert collection as seen by the engine. The engine
// only ever mutates trigger state and the last observed value; definition
// fields belong to the owning user.
type Store interface {
	// ListEligible returns alerts that are active, untriggered and unexpired.
	ListEligible(ctx context.Context) ([]models.Alert, error)
	// MarkTriggered atomically flips an alert to triggered. Returns false if
	// the alert was already triggered (lost race), in which case nothing was
	// written.
	MarkTriggered(ctx context.Context, id uint, observed float64, at time.Time) (bool, error)
	// UpdateCurrentValue persists the last observed value of an untriggered alert.
	UpdateCurrentValue(ctx context.Context, id uint, observed float64) error
	// MarkNotified records that the trigger notification was delivered.
	MarkNotified(ctx context.Context, id uint) error
	// DeactivateExpired soft-disables active alerts whose expiry has passed.
	DeactivateExpired(ctx context.Context, now time.Time) (int64, error)
}

// GormStore is the gorm-backed alert store
type GormStore struct {
	db *gorm.DB
}

// NewGormStore creates an alert store on the given database
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) ListEligible(ctx context.Context) ([]models.Alert, error) {
	var alerts []models.Alert
	err := s.db.WithContext(ctx).
		Where("is_active = ? AND is_triggered = ?", true, false).
		Where("expires_at IS NULL OR expires_at > ?", time.Now()).
		Find(&alerts).Error
	if err != nil {
		return nil, fmt.Errorf("list eligible alerts: %w", err)
	}
	return alerts, nil
}

func (s *GormStore) MarkTriggered(ctx context.Context, id uint, observed float64, at time.Time) (bool, error) {
	// The is_triggered guard makes the transition atomic: a concurrent cycle
	// racing on the same alert sees zero rows affected.
	result := s.db.WithContext(ctx).Model(&models.Alert{}).
		Where("id = ? AND is_triggered = ?", id, false).
		Updates(map[string]interface{}{
			"is_triggered":  true,
			"triggered_at":  at,
			"current_value": observed,
		})
	if result.Error != nil {
		return false, fmt.Errorf("mark alert %d triggered: %w", id, result.Error)
	}
	return result.RowsAffected == 1, nil
}

func (s *GormStore) UpdateCurrentValue(ctx context.Context, id uint, observed float64) error {
	err := s.db.WithContext(ctx).Model(&models.Alert{}).
		Where("id = ? AND is_triggered = ?", id, false).
		Update("current_value", observed).Error
	if err != nil {
		return fmt.Errorf("update alert %d current value: %w", id, err)
	}
	return nil
}

func (s *GormStore) MarkNotified(ctx context.Context, id uint) error {
	err := s.db.WithContext(ctx).Model(&models.Alert{}).
		Where("id = ?", id).
		Update("notification_sent", true).Error
	if err != nil {
		return fmt.Errorf("mark alert %d notified: %w", id, err)
	}
	return nil
}

func (s *GormStore) DeactivateExpired(ctx context.Context, now time.Time) (int64, error) {
	result := s.db.WithContext(ctx).Model(&models.Alert{}).
		Where("is_active = ? AND expires_at IS NOT NULL AND expires_at < ?", true, now).
		Update("is_active", false)
	if result.Error != nil {
		return 0, fmt.Errorf("deactivate expired alerts: %w", result.Error)
	}
	return result.RowsAffected, nil
}
