package repository

import (
	"context"

	"github.com/Eursukkul/booking-microservice/allocation-service/internal/models"
)

type rewardRepository struct {
	conn gormConn
}

func (r *rewardRepository) Create(ctx context.Context, reward *models.Reward) error {
	return translate(r.conn.get(ctx).Create(reward).Error)
}

func (r *rewardRepository) FindByID(ctx context.Context, id uint) (*models.Reward, error) {
	var reward models.Reward
	if err := r.conn.get(ctx).First(&reward, id).Error; err != nil {
		return nil, translate(err)
	}
	return &reward, nil
}

func (r *rewardRepository) Grant(ctx context.Context, ur *models.UserReward) error {
	if ur.Status == "" {
		ur.Status = models.UserRewardGranted
	}
	return translate(r.conn.get(ctx).Create(ur).Error)
}

func (r *rewardRepository) FindGrantByTicketForUpdate(ctx context.Context, ticketID uint) (*models.UserReward, error) {
	var ur models.UserReward
	if err := r.conn.locked(ctx).Where("ticket_id = ?", ticketID).First(&ur).Error; err != nil {
		return nil, translate(err)
	}
	return &ur, nil
}

func (r *rewardRepository) UpdateGrant(ctx context.Context, ur *models.UserReward) error {
	res := r.conn.get(ctx).
		Model(&models.UserReward{}).
		Where("id = ?", ur.ID).
		Updates(map[string]any{"status": ur.Status, "redeemed_at": ur.RedeemedAt})
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
