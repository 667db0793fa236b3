package repository

import (
	"context"
	"time"

	"github.com/Eursukkul/booking-microservice/allocation-service/internal/models"
)

type holdRepository struct {
	conn gormConn
}

func (r *holdRepository) Create(ctx context.Context, hold *models.CapacityHold) error {
	return translate(r.conn.get(ctx).Create(hold).Error)
}

func (r *holdRepository) FindByToken(ctx context.Context, token string) (*models.CapacityHold, error) {
	var hold models.CapacityHold
	if err := r.conn.get(ctx).Where("token = ?", token).First(&hold).Error; err != nil {
		return nil, translate(err)
	}
	return &hold, nil
}

func (r *holdRepository) FindByTokenForUpdate(ctx context.Context, token string) (*models.CapacityHold, error) {
	var hold models.CapacityHold
	if err := r.conn.locked(ctx).Where("token = ?", token).First(&hold).Error; err != nil {
		return nil, translate(err)
	}
	return &hold, nil
}

// UpdateStatus moves the hold out of its current status. Losing a race
// against another writer yields ErrConflict.
func (r *holdRepository) UpdateStatus(ctx context.Context, hold *models.CapacityHold, status models.HoldStatus) error {
	res := r.conn.get(ctx).
		Model(&models.CapacityHold{}).
		Where("id = ? AND status = ?", hold.ID, hold.Status).
		Updates(map[string]any{"status": status, "updated_at": time.Now()})
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrConflict
	}
	hold.Status = status
	return nil
}

func (r *holdRepository) FindExpired(ctx context.Context, now time.Time, limit int) ([]models.CapacityHold, error) {
	var holds []models.CapacityHold
	live := r.conn.get(ctx).
		Model(&models.TableReservation{}).
		Select("hold_token").
		Where("status = ? AND hold_token IS NOT NULL", models.ReservationHeld)
	err := r.conn.get(ctx).
		Where("status = ? AND expires_at <= ?", models.HoldHeld, now).
		Where("token NOT IN (?)", live).
		Order("expires_at ASC").
		Limit(limit).
		Find(&holds).Error
	if err != nil {
		return nil, translate(err)
	}
	return holds, nil
}
