package services

import (
	"context"
	"fmt"
	"socialconnect/internal/db"
	"socialconnect/internal/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Notifier receives the fan-out calls made after a follow, like or comment
// is written.
type Notifier interface {
	Notify(ctx context.Context, sender *models.User, recipientID uint, typ models.NotificationType, postID *uint) error
}

type NotificationService struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewNotificationService(conn *gorm.DB, log *zap.Logger) *NotificationService {
	return &NotificationService{db: conn, log: log}
}

func notificationMessage(username string, typ models.NotificationType) string {
	switch typ {
	case models.NotificationTypeFollow:
		return fmt.Sprintf("%s started following you", username)
	case models.NotificationTypeLike:
		return fmt.Sprintf("%s liked your post", username)
	case models.NotificationTypeComment:
		return fmt.Sprintf("%s commented on your post", username)
	}
	return username
}

// Notify inserts a notification for recipientID. Self-notifications are
// dropped silently.
func (s *NotificationService) Notify(ctx context.Context, sender *models.User, recipientID uint, typ models.NotificationType, postID *uint) error {
	if sender.ID == recipientID {
		return nil
	}
	n := models.Notification{
		RecipientID: recipientID,
		SenderID:    sender.ID,
		Type:        typ,
		PostID:      postID,
		Message:     notificationMessage(sender.Username, typ),
	}
	return s.db.WithContext(ctx).Create(&n).Error
}

// List 返回用户的全部通知，最新的在前
func (s *NotificationService) List(ctx context.Context, userID uint) ([]models.Notification, error) {
	var notifications []models.Notification
	err := s.db.WithContext(ctx).Preload("Sender").
		Where("recipient_id = ?", userID).
		Order("created_at DESC, id DESC").
		Find(&notifications).Error
	if err != nil {
		return nil, err
	}
	for i := range notifications {
		notifications[i].SenderUsername = notifications[i].Sender.Username
	}
	return notifications, nil
}

func (s *NotificationService) UnreadCount(ctx context.Context, userID uint) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("recipient_id = ? AND is_read = ?", userID, false).
		Count(&count).Error
	return count, err
}

// MarkRead flags one of the caller's notifications as read.
func (s *NotificationService) MarkRead(ctx context.Context, userID, id uint) error {
	var notification models.Notification
	if err := s.db.WithContext(ctx).Where("id = ? AND recipient_id = ?", id, userID).First(&notification).Error; err != nil {
		if db.IsNotFound(err) {
			return ErrNotificationNotFound
		}
		return err
	}
	if notification.IsRead {
		return nil
	}
	return s.db.WithContext(ctx).Model(&notification).Update("is_read", true).Error
}

// MarkAllRead flips every unread notification of the caller and returns how
// many changed.
func (s *NotificationService) MarkAllRead(ctx context.Context, userID uint) (int64, error) {
	res := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("recipient_id = ? AND is_read = ?", userID, false).
		Update("is_read", true)
	return res.RowsAffected, res.Error
}

func (s *NotificationService) Delete(ctx context.Context, userID, id uint) error {
	res := s.db.WithContext(ctx).Where("id = ? AND recipient_id = ?", id, userID).Delete(&models.Notification{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotificationNotFound
	}
	return nil
}

// notifyQuietly runs the fan-out after the primary write. Failures are
// logged and never returned.
func notifyQuietly(ctx context.Context, n Notifier, log *zap.Logger, sender *models.User, recipientID uint, typ models.NotificationType, postID *uint) {
	if n == nil {
		return
	}
	if err := n.Notify(ctx, sender, recipientID, typ, postID); err != nil {
		log.Warn("notification fan-out failed",
			zap.String("type", string(typ)),
			zap.Uint("sender", sender.ID),
			zap.Uint("recipient", recipientID),
			zap.Error(err))
	}
}
