package models

import (
	"time"
)

type NotificationType string

const (
	NotificationTypeFollow  NotificationType = "follow"
	NotificationTypeLike    NotificationType = "like"
	NotificationTypeComment NotificationType = "comment"
)

type Notification struct {
	ID          uint             `gorm:"primaryKey" json:"id"`
	RecipientID uint             `gorm:"not null;index" json:"recipient_id"`
	Recipient   *User            `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	SenderID    uint             `gorm:"not null;index" json:"sender_id"`
	Sender      User             `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	Type        NotificationType `gorm:"type:varchar(20);not null" json:"notification_type"`
	PostID      *uint            `gorm:"index" json:"post"`
	Post        *Post            `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	Message     string           `gorm:"size:200" json:"message"`
	IsRead      bool             `gorm:"default:false;not null;index" json:"is_read"`
	CreatedAt   time.Time        `gorm:"index" json:"created_at"`

	SenderUsername string `gorm:"-" json:"sender_username"`
}
