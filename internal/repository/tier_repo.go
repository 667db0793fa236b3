package repository

import (
	"context"

	"github.com/Eursukkul/booking-microservice/allocation-service/internal/models"
)

type tierRepository struct {
	conn gormConn
}

func (r *tierRepository) Create(ctx context.Context, tier *models.TicketTier) error {
	if tier.Version == 0 {
		tier.Version = 1
	}
	return translate(r.conn.get(ctx).Create(tier).Error)
}

func (r *tierRepository) FindByID(ctx context.Context, id uint) (*models.TicketTier, error) {
	var tier models.TicketTier
	if err := r.conn.get(ctx).First(&tier, id).Error; err != nil {
		return nil, translate(err)
	}
	return &tier, nil
}

// FindByIDForUpdate locks the tier row until the surrounding transaction ends.
func (r *tierRepository) FindByIDForUpdate(ctx context.Context, id uint) (*models.TicketTier, error) {
	var tier models.TicketTier
	if err := r.conn.locked(ctx).First(&tier, id).Error; err != nil {
		return nil, translate(err)
	}
	return &tier, nil
}

func (r *tierRepository) Update(ctx context.Context, tier *models.TicketTier) error {
	return updateVersioned(r.conn.get(ctx), tier, &tier.Version)
}
