package repository

import (
	"context"

	"github.com/Eursukkul/booking-microservice/allocation-service/internal/models"
)

type paymentRepository struct {
	conn gormConn
}

func (r *paymentRepository) Create(ctx context.Context, p *models.Payment) error {
	return translate(r.conn.get(ctx).Create(p).Error)
}

func (r *paymentRepository) FindByReference(ctx context.Context, ref string) (*models.Payment, error) {
	var p models.Payment
	if err := r.conn.get(ctx).Where("reference = ?", ref).First(&p).Error; err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

func (r *paymentRepository) ListByReservation(ctx context.Context, reservationID uint) ([]models.Payment, error) {
	var payments []models.Payment
	err := r.conn.get(ctx).
		Where("reservation_id = ?", reservationID).
		Order("id ASC").
		Find(&payments).Error
	if err != nil {
		return nil, translate(err)
	}
	return payments, nil
}
