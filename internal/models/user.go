package models

import (
	"time"
)

type User struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	Email      string     `gorm:"uniqueIndex;size:254;not null" json:"email"`
	Username   string     `gorm:"uniqueIndex;size:30;not null" json:"username"`
	FirstName  string     `gorm:"size:30" json:"first_name"`
	LastName   string     `gorm:"size:30" json:"last_name"`
	Password   string     `gorm:"not null" json:"-"`                       // bcrypt hash, mirrors the identity provider
	IsActive   bool       `gorm:"default:false;not null" json:"is_active"` // flipped once the provider confirms the email
	IsStaff    bool       `gorm:"default:false;not null" json:"is_staff"`  // gates /api/admin
	Profile    *Profile   `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"profile,omitempty"`
	DateJoined time.Time  `gorm:"autoCreateTime" json:"date_joined"`
	LastLogin  *time.Time `json:"last_login"`
	UpdatedAt  time.Time  `json:"-"`
}

// Author is the public view of a user attached to posts, comments, follow
// edges and search results. It never carries email or account flags.
type Author struct {
	ID        uint   `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

func (u *User) Public() Author {
	return Author{ID: u.ID, Username: u.Username, FirstName: u.FirstName, LastName: u.LastName}
}

// publicPtr returns nil for users that were not loaded.
func publicPtr(u *User) *Author {
	if u == nil || u.ID == 0 {
		return nil
	}
	a := u.Public()
	return &a
}
