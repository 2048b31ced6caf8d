package models

// Profile 用户资料，和 User 一对一
type Profile struct {
	ID                uint   `gorm:"primaryKey" json:"id"`
	UserID            uint   `gorm:"uniqueIndex;not null" json:"user"`
	Bio               string `gorm:"type:text" json:"bio"`
	Location          string `gorm:"size:255" json:"location"`
	Website           string `gorm:"size:255" json:"website"`
	ProfileVisibility bool   `gorm:"default:true;not null" json:"profile_visibility"`
	AvatarURL         string `json:"avatar_url"` // public URL from object storage
}
