package services

import (
	"context"
	"socialconnect/internal/db"
	"socialconnect/internal/models"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// AdminStats is the dashboard summary.
type AdminStats struct {
	TotalUsers  int64 `json:"total_users"`
	TotalPosts  int64 `json:"total_posts"`
	ActiveToday int64 `json:"active_today"`
}

// AdminService backs the staff-only endpoints. Permission checks live in
// the middleware.
type AdminService struct {
	db    *gorm.DB
	posts *PostService
	log   *zap.Logger
	now   func() time.Time
}

func NewAdminService(conn *gorm.DB, posts *PostService, log *zap.Logger) *AdminService {
	return &AdminService{db: conn, posts: posts, log: log, now: time.Now}
}

func (s *AdminService) ListUsers(ctx context.Context) ([]models.User, error) {
	var users []models.User
	err := s.db.WithContext(ctx).Preload("Profile").Order("id ASC").Find(&users).Error
	return users, err
}

func (s *AdminService) GetUser(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Preload("Profile").First(&user, id).Error; err != nil {
		if db.IsNotFound(err) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// DeactivateUser clears is_active so the account can no longer log in.
func (s *AdminService) DeactivateUser(ctx context.Context, id uint) (*models.User, error) {
	user, err := s.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Model(user).Update("is_active", false).Error; err != nil {
		return nil, err
	}
	user.IsActive = false
	s.log.Info("user deactivated", zap.Uint("user_id", id))
	return user, nil
}

func (s *AdminService) ListPosts(ctx context.Context, viewer *models.User) ([]models.Post, error) {
	return s.posts.ListAll(ctx, viewer)
}

// DeletePost hard-deletes any post.
func (s *AdminService) DeletePost(ctx context.Context, id uint) error {
	if err := deletePostCascade(ctx, s.db, id); err != nil {
		return err
	}
	s.log.Info("post deleted by staff", zap.Uint("post_id", id))
	return nil
}

func (s *AdminService) SetPostActive(ctx context.Context, id uint, active bool) (*models.Post, error) {
	return s.posts.SetActive(ctx, id, active)
}

// Stats counts users, posts and users who logged in since local midnight.
func (s *AdminService) Stats(ctx context.Context) (*AdminStats, error) {
	var stats AdminStats
	tx := s.db.WithContext(ctx)
	if err := tx.Model(&models.User{}).Count(&stats.TotalUsers).Error; err != nil {
		return nil, err
	}
	if err := tx.Model(&models.Post{}).Count(&stats.TotalPosts).Error; err != nil {
		return nil, err
	}
	now := s.now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if err := tx.Model(&models.User{}).Where("last_login >= ?", midnight).Count(&stats.ActiveToday).Error; err != nil {
		return nil, err
	}
	return &stats, nil
}
