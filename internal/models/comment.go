package models

import (
	"encoding/json"
	"time"
)

const MaxCommentLength = 200

type Comment struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	PostID    uint      `gorm:"not null;index" json:"post"`
	Post      *Post     `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	UserID    uint      `gorm:"not null;index" json:"author_id"`
	User      User      `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	Content   string    `gorm:"size:200;not null" json:"content"`
	IsActive  bool      `gorm:"default:true;not null" json:"-"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`

	Author Author `gorm:"-" json:"author"`
}

func (c Comment) MarshalJSON() ([]byte, error) {
	type comment Comment
	if c.User.ID != 0 {
		c.Author = c.User.Public()
	}
	return json.Marshal(comment(c))
}
