package services

import (
	"context"
	"socialconnect/internal/db"
	"socialconnect/internal/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type FollowService struct {
	db       *gorm.DB
	notifier Notifier
	log      *zap.Logger
}

func NewFollowService(conn *gorm.DB, notifier Notifier, log *zap.Logger) *FollowService {
	return &FollowService{db: conn, notifier: notifier, log: log}
}

// FollowStats 关注统计
type FollowStats struct {
	FollowersCount int64  `json:"followers_count"`
	FollowingCount int64  `json:"following_count"`
	FollowerIDs    []uint `json:"followers"`
}

func (s *FollowService) loadUser(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, id).Error; err != nil {
		if db.IsNotFound(err) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// Follow creates the edge follower → target. It is idempotent: an existing
// edge, or one created concurrently, comes back with created=false.
func (s *FollowService) Follow(ctx context.Context, follower *models.User, targetID uint) (*models.Follow, bool, error) {
	if follower.ID == targetID {
		return nil, false, ErrSelfFollow
	}
	target, err := s.loadUser(ctx, targetID)
	if err != nil {
		return nil, false, err
	}

	tx := s.db.WithContext(ctx)
	var existing models.Follow
	err = tx.Where("follower_id = ? AND following_id = ?", follower.ID, target.ID).First(&existing).Error
	if err == nil {
		return &existing, false, nil
	}
	if !db.IsNotFound(err) {
		return nil, false, err
	}

	edge := models.Follow{FollowerID: follower.ID, FollowingID: target.ID}
	if err := tx.Create(&edge).Error; err != nil {
		if db.IsUniqueViolation(err) {
			// Lost the race to a parallel follow; report the winner's row.
			if err := tx.Where("follower_id = ? AND following_id = ?", follower.ID, target.ID).First(&existing).Error; err != nil {
				return nil, false, err
			}
			return &existing, false, nil
		}
		return nil, false, err
	}

	notifyQuietly(ctx, s.notifier, s.log, follower, target.ID, models.NotificationTypeFollow, nil)
	edge.Following = target
	return &edge, true, nil
}

// Unfollow removes the edge and reports whether one existed.
func (s *FollowService) Unfollow(ctx context.Context, followerID, targetID uint) (bool, error) {
	if _, err := s.loadUser(ctx, targetID); err != nil {
		return false, err
	}
	res := s.db.WithContext(ctx).
		Where("follower_id = ? AND following_id = ?", followerID, targetID).
		Delete(&models.Follow{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// ListFollowers returns edges pointing at userID, oldest first.
func (s *FollowService) ListFollowers(ctx context.Context, userID uint) ([]models.Follow, error) {
	if _, err := s.loadUser(ctx, userID); err != nil {
		return nil, err
	}
	var follows []models.Follow
	err := s.db.WithContext(ctx).Preload("Follower").
		Where("following_id = ?", userID).
		Order("id ASC").
		Find(&follows).Error
	return follows, err
}

// ListFollowing returns edges leaving userID, oldest first.
func (s *FollowService) ListFollowing(ctx context.Context, userID uint) ([]models.Follow, error) {
	if _, err := s.loadUser(ctx, userID); err != nil {
		return nil, err
	}
	var follows []models.Follow
	err := s.db.WithContext(ctx).Preload("Following").
		Where("follower_id = ?", userID).
		Order("id ASC").
		Find(&follows).Error
	return follows, err
}

func (s *FollowService) Stats(ctx context.Context, userID uint) (*FollowStats, error) {
	if _, err := s.loadUser(ctx, userID); err != nil {
		return nil, err
	}
	stats := &FollowStats{FollowerIDs: []uint{}}
	tx := s.db.WithContext(ctx)
	if err := tx.Model(&models.Follow{}).Where("following_id = ?", userID).
		Order("id ASC").Pluck("follower_id", &stats.FollowerIDs).Error; err != nil {
		return nil, err
	}
	stats.FollowersCount = int64(len(stats.FollowerIDs))
	if err := tx.Model(&models.Follow{}).Where("follower_id = ?", userID).Count(&stats.FollowingCount).Error; err != nil {
		return nil, err
	}
	return stats, nil
}

// FollowingIDs lists the users userID follows.
func (s *FollowService) FollowingIDs(ctx context.Context, userID uint) ([]uint, error) {
	var ids []uint
	err := s.db.WithContext(ctx).Model(&models.Follow{}).
		Where("follower_id = ?", userID).
		Pluck("following_id", &ids).Error
	return ids, err
}

// IsFollowing reports whether followerID follows targetID.
func (s *FollowService) IsFollowing(ctx context.Context, followerID, targetID uint) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Follow{}).
		Where("follower_id = ? AND following_id = ?", followerID, targetID).
		Count(&count).Error
	return count > 0, err
}
