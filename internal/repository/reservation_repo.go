package repository

import (
	"context"
	"time"

	"github.com/Eursukkul/booking-microservice/allocation-service/internal/models"
)

type reservationRepository struct {
	conn gormConn
}

// Create relies on idx_reservation_live_table to reject a second live
// reservation on the same table.
func (r *reservationRepository) Create(ctx context.Context, res *models.TableReservation) error {
	if res.Version == 0 {
		res.Version = 1
	}
	return translate(r.conn.get(ctx).Create(res).Error)
}

func (r *reservationRepository) FindByID(ctx context.Context, id uint) (*models.TableReservation, error) {
	var res models.TableReservation
	if err := r.conn.get(ctx).First(&res, id).Error; err != nil {
		return nil, translate(err)
	}
	return &res, nil
}

func (r *reservationRepository) FindByIDForUpdate(ctx context.Context, id uint) (*models.TableReservation, error) {
	var res models.TableReservation
	if err := r.conn.locked(ctx).First(&res, id).Error; err != nil {
		return nil, translate(err)
	}
	return &res, nil
}

func (r *reservationRepository) Update(ctx context.Context, res *models.TableReservation) error {
	return updateVersioned(r.conn.get(ctx), res, &res.Version)
}

func (r *reservationRepository) FindStaleIDs(ctx context.Context, now time.Time, limit int) ([]uint, error) {
	var ids []uint
	err := r.conn.get(ctx).
		Model(&models.TableReservation{}).
		Where("status = ? AND hold_deadline <= ?", models.ReservationHeld, now).
		Order("hold_deadline ASC").
		Limit(limit).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, translate(err)
	}
	return ids, nil
}
