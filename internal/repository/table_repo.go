package repository

import (
	"context"

	"github.com/Eursukkul/booking-microservice/allocation-service/internal/models"
)

type tableRepository struct {
	conn gormConn
}

func (r *tableRepository) Create(ctx context.Context, table *models.Table) error {
	if table.Version == 0 {
		table.Version = 1
	}
	if table.Status == "" {
		table.Status = models.TableAvailable
	}
	return translate(r.conn.get(ctx).Create(table).Error)
}

func (r *tableRepository) FindByID(ctx context.Context, id uint) (*models.Table, error) {
	var table models.Table
	if err := r.conn.get(ctx).First(&table, id).Error; err != nil {
		return nil, translate(err)
	}
	return &table, nil
}

func (r *tableRepository) FindByIDForUpdate(ctx context.Context, id uint) (*models.Table, error) {
	var table models.Table
	if err := r.conn.locked(ctx).First(&table, id).Error; err != nil {
		return nil, translate(err)
	}
	return &table, nil
}

func (r *tableRepository) Update(ctx context.Context, table *models.Table) error {
	return updateVersioned(r.conn.get(ctx), table, &table.Version)
}
