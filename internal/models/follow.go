package models

import (
	"encoding/json"
	"time"
)

// Follow 关注关系（Follower 关注 Following）
type Follow struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	FollowerID  uint      `gorm:"not null;index;uniqueIndex:idx_follower_following" json:"follower_id"`
	Follower    *User     `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	FollowingID uint      `gorm:"not null;index;uniqueIndex:idx_follower_following" json:"following_id"`
	Following   *User     `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	CreatedAt   time.Time `json:"created_at"`

	FollowerAuthor  *Author `gorm:"-" json:"follower,omitempty"`
	FollowingAuthor *Author `gorm:"-" json:"following,omitempty"`
}

// MarshalJSON shows whichever side of the edge was preloaded as an Author.
func (f Follow) MarshalJSON() ([]byte, error) {
	type follow Follow
	if a := publicPtr(f.Follower); a != nil {
		f.FollowerAuthor = a
	}
	if a := publicPtr(f.Following); a != nil {
		f.FollowingAuthor = a
	}
	return json.Marshal(follow(f))
}
