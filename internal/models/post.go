package models

import (
	"encoding/json"
	"time"
)

type Category string

const (
	CategoryGeneral      Category = "general"
	CategoryAnnouncement Category = "announcement"
	CategoryQuestion     Category = "question"
)

type Post struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;index" json:"author_id"`
	User      User      `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	Content   string    `gorm:"size:280;not null" json:"content"`
	ImageURL  string    `json:"image_url"`
	Category  Category  `gorm:"type:varchar(20);default:'general';not null" json:"category"`
	IsActive  bool      `gorm:"default:true;not null;index" json:"is_active"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// 非数据库字段，用于查询时填充
	Author       Author `gorm:"-" json:"author"`
	ContentHTML  string `gorm:"-" json:"content_html"`
	LikeCount    int64  `gorm:"-" json:"like_count"`
	CommentCount int64  `gorm:"-" json:"comment_count"`
	LikedByMe    bool   `gorm:"-" json:"liked_by_me"`
}

// MarshalJSON exposes the preloaded author through Author only.
func (p Post) MarshalJSON() ([]byte, error) {
	type post Post
	if p.User.ID != 0 {
		p.Author = p.User.Public()
	}
	return json.Marshal(post(p))
}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryGeneral, CategoryAnnouncement, CategoryQuestion:
		return true
	}
	return false
}
