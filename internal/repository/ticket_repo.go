package repository

import (
	"context"

	"github.com/Eursukkul/booking-microservice/allocation-service/internal/models"
)

type ticketRepository struct {
	conn gormConn
}

func (r *ticketRepository) Create(ctx context.Context, t *models.Ticket) error {
	if t.Version == 0 {
		t.Version = 1
	}
	return translate(r.conn.get(ctx).Create(t).Error)
}

func (r *ticketRepository) FindByID(ctx context.Context, id uint) (*models.Ticket, error) {
	var t models.Ticket
	if err := r.conn.get(ctx).First(&t, id).Error; err != nil {
		return nil, translate(err)
	}
	return &t, nil
}

func (r *ticketRepository) FindByIDForUpdate(ctx context.Context, id uint) (*models.Ticket, error) {
	var t models.Ticket
	if err := r.conn.locked(ctx).First(&t, id).Error; err != nil {
		return nil, translate(err)
	}
	return &t, nil
}

func (r *ticketRepository) FindByCode(ctx context.Context, code string) (*models.Ticket, error) {
	var t models.Ticket
	if err := r.conn.get(ctx).Where("code = ?", code).First(&t).Error; err != nil {
		return nil, translate(err)
	}
	return &t, nil
}

func (r *ticketRepository) Update(ctx context.Context, t *models.Ticket) error {
	return updateVersioned(r.conn.get(ctx), t, &t.Version)
}

func (r *ticketRepository) AddTransition(ctx context.Context, tr *models.TicketTransition) error {
	return translate(r.conn.get(ctx).Create(tr).Error)
}

func (r *ticketRepository) ListTransitions(ctx context.Context, ticketID uint) ([]models.TicketTransition, error) {
	var history []models.TicketTransition
	err := r.conn.get(ctx).
		Where("ticket_id = ?", ticketID).
		Order("at ASC, id ASC").
		Find(&history).Error
	if err != nil {
		return nil, translate(err)
	}
	return history, nil
}
