package services

import (
	"context"
	"socialconnect/internal/db"
	"socialconnect/internal/models"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// EngagementService handles likes and comments on posts.
type EngagementService struct {
	db       *gorm.DB
	notifier Notifier
	log      *zap.Logger
}

func NewEngagementService(conn *gorm.DB, notifier Notifier, log *zap.Logger) *EngagementService {
	return &EngagementService{db: conn, notifier: notifier, log: log}
}

func (s *EngagementService) loadPost(ctx context.Context, id uint) (*models.Post, error) {
	var post models.Post
	if err := s.db.WithContext(ctx).First(&post, id).Error; err != nil {
		if db.IsNotFound(err) {
			return nil, ErrPostNotFound
		}
		return nil, err
	}
	return &post, nil
}

// ToggleLike flips user's like on the post and returns the new state and
// total like count. Inactive posts cannot be liked.
func (s *EngagementService) ToggleLike(ctx context.Context, user *models.User, postID uint) (bool, int64, error) {
	post, err := s.loadPost(ctx, postID)
	if err != nil {
		return false, 0, err
	}
	if !post.IsActive {
		return false, 0, ErrPostNotFound
	}

	tx := s.db.WithContext(ctx)
	res := tx.Where("user_id = ? AND post_id = ?", user.ID, post.ID).Delete(&models.Like{})
	if res.Error != nil {
		return false, 0, res.Error
	}

	liked := false
	if res.RowsAffected == 0 {
		like := models.Like{UserID: user.ID, PostID: post.ID}
		err := tx.Omit(clause.Associations).Create(&like).Error
		switch {
		case err == nil:
			liked = true
			notifyQuietly(ctx, s.notifier, s.log, user, post.UserID, models.NotificationTypeLike, &post.ID)
		case db.IsUniqueViolation(err):
			// A concurrent toggle inserted first; the like exists.
			liked = true
		default:
			return false, 0, err
		}
	}

	total, err := s.LikeCount(ctx, post.ID)
	if err != nil {
		return false, 0, err
	}
	return liked, total, nil
}

// LikeCount counts likes on a post.
func (s *EngagementService) LikeCount(ctx context.Context, postID uint) (int64, error) {
	var total int64
	err := s.db.WithContext(ctx).Model(&models.Like{}).Where("post_id = ?", postID).Count(&total).Error
	return total, err
}

// AddComment appends a comment to an active post.
func (s *EngagementService) AddComment(ctx context.Context, user *models.User, postID uint, content string) (*models.Comment, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, Validationf("content may not be blank")
	}
	if utf8.RuneCountInString(content) > models.MaxCommentLength {
		return nil, Validationf("content must be at most %d characters", models.MaxCommentLength)
	}

	post, err := s.loadPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	if !post.IsActive {
		return nil, ErrPostInactive
	}

	comment := models.Comment{
		PostID:   post.ID,
		UserID:   user.ID,
		Content:  content,
		IsActive: true,
	}
	if err := s.db.WithContext(ctx).Omit(clause.Associations).Create(&comment).Error; err != nil {
		return nil, err
	}
	comment.User = *user

	notifyQuietly(ctx, s.notifier, s.log, user, post.UserID, models.NotificationTypeComment, &post.ID)
	return &comment, nil
}

// DeleteComment removes a comment. Only its author or staff may do so.
func (s *EngagementService) DeleteComment(ctx context.Context, user *models.User, commentID uint) error {
	var comment models.Comment
	if err := s.db.WithContext(ctx).First(&comment, commentID).Error; err != nil {
		if db.IsNotFound(err) {
			return ErrCommentNotFound
		}
		return err
	}
	if comment.UserID != user.ID && !user.IsStaff {
		return ErrForbidden
	}
	return s.db.WithContext(ctx).Delete(&comment).Error
}

// ListComments returns the post's active comments, newest first.
func (s *EngagementService) ListComments(ctx context.Context, viewer *models.User, postID uint) ([]models.Comment, error) {
	if _, err := findPost(ctx, s.db, viewer, postID); err != nil {
		return nil, err
	}
	var comments []models.Comment
	err := s.db.WithContext(ctx).Preload("User").
		Where("post_id = ? AND is_active = ?", postID, true).
		Order("created_at DESC, id DESC").
		Find(&comments).Error
	return comments, err
}
