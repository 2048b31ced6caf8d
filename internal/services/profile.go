package services

import (
	"context"
	"socialconnect/internal/db"
	"socialconnect/internal/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ProfileView is a profile joined with its user and follow counts.
type ProfileView struct {
	ID                uint   `json:"id"`
	UserID            uint   `json:"user"`
	Username          string `json:"username"`
	Email             string `json:"user_email,omitempty"`
	FirstName         string `json:"first_name"`
	LastName          string `json:"last_name"`
	Bio               string `json:"bio"`
	Location          string `json:"location"`
	Website           string `json:"website"`
	ProfileVisibility bool   `json:"profile_visibility"`
	AvatarURL         string `json:"avatar_url"`
	FollowersCount    int64  `json:"followers_count"`
	FollowingCount    int64  `json:"following_count"`
	IsFollowing       bool   `json:"is_following"`
}

// ProfileUpdate is a partial profile update.
type ProfileUpdate struct {
	Bio               *string `validate:"omitempty,max=2000"`
	Location          *string `validate:"omitempty,max=255"`
	Website           *string `validate:"omitempty,max=255"`
	ProfileVisibility *bool
	Avatar            *ImageUpload
}

type ProfileService struct {
	db       *gorm.DB
	follows  *FollowService
	storage  ObjectStorage
	bucket   string
	maxImage int64
	log      *zap.Logger
}

func NewProfileService(conn *gorm.DB, follows *FollowService, storage ObjectStorage, bucket string, maxImage int64, log *zap.Logger) *ProfileService {
	return &ProfileService{db: conn, follows: follows, storage: storage, bucket: bucket, maxImage: maxImage, log: log}
}

// ensureProfile returns the user's profile, creating an empty one if the
// user predates profiles.
func (s *ProfileService) ensureProfile(ctx context.Context, user *models.User) (*models.Profile, error) {
	var profile models.Profile
	err := s.db.WithContext(ctx).Where("user_id = ?", user.ID).First(&profile).Error
	if err == nil {
		return &profile, nil
	}
	if !db.IsNotFound(err) {
		return nil, err
	}
	profile = models.Profile{UserID: user.ID, ProfileVisibility: true}
	if err := s.db.WithContext(ctx).Create(&profile).Error; err != nil {
		return nil, err
	}
	return &profile, nil
}

// view assembles the response. Private profiles show only identity fields
// to anyone but the owner and staff.
func (s *ProfileService) view(ctx context.Context, viewer, owner *models.User, profile *models.Profile) (*ProfileView, error) {
	stats, err := s.follows.Stats(ctx, owner.ID)
	if err != nil {
		return nil, err
	}
	v := &ProfileView{
		ID:                profile.ID,
		UserID:            owner.ID,
		Username:          owner.Username,
		FirstName:         owner.FirstName,
		LastName:          owner.LastName,
		ProfileVisibility: profile.ProfileVisibility,
		AvatarURL:         profile.AvatarURL,
		FollowersCount:    stats.FollowersCount,
		FollowingCount:    stats.FollowingCount,
	}
	privileged := viewer != nil && (viewer.ID == owner.ID || viewer.IsStaff)
	if profile.ProfileVisibility || privileged {
		v.Bio = profile.Bio
		v.Location = profile.Location
		v.Website = profile.Website
	}
	if privileged {
		v.Email = owner.Email
	}
	if viewer != nil && viewer.ID != owner.ID {
		v.IsFollowing, err = s.follows.IsFollowing(ctx, viewer.ID, owner.ID)
		if err != nil {
			return nil, err
		}
	}
	return v, nil
}

// List returns the profiles of all active users.
func (s *ProfileService) List(ctx context.Context, viewer *models.User) ([]ProfileView, error) {
	var users []models.User
	if err := s.db.WithContext(ctx).Preload("Profile").
		Where("is_active = ?", true).Order("id ASC").Find(&users).Error; err != nil {
		return nil, err
	}
	views := make([]ProfileView, 0, len(users))
	for i := range users {
		u := &users[i]
		profile := u.Profile
		if profile == nil {
			var err error
			if profile, err = s.ensureProfile(ctx, u); err != nil {
				return nil, err
			}
		}
		v, err := s.view(ctx, viewer, u, profile)
		if err != nil {
			return nil, err
		}
		views = append(views, *v)
	}
	return views, nil
}

// Get returns the profile of user id.
func (s *ProfileService) Get(ctx context.Context, viewer *models.User, userID uint) (*ProfileView, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, userID).Error; err != nil {
		if db.IsNotFound(err) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	profile, err := s.ensureProfile(ctx, &user)
	if err != nil {
		return nil, err
	}
	return s.view(ctx, viewer, &user, profile)
}

// Me returns the caller's own profile.
func (s *ProfileService) Me(ctx context.Context, user *models.User) (*ProfileView, error) {
	profile, err := s.ensureProfile(ctx, user)
	if err != nil {
		return nil, err
	}
	return s.view(ctx, user, user, profile)
}

// UpdateMe applies a partial update to the caller's profile, uploading a
// new avatar when one is given.
func (s *ProfileService) UpdateMe(ctx context.Context, user *models.User, in ProfileUpdate) (*ProfileView, error) {
	if err := validate.Struct(in); err != nil {
		return nil, validationError(err)
	}
	// an empty website clears it
	if in.Website != nil && *in.Website != "" {
		if err := validate.Var(*in.Website, "url"); err != nil {
			return nil, Validationf("website must be a valid URL")
		}
	}
	profile, err := s.ensureProfile(ctx, user)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if in.Bio != nil {
		updates["bio"] = *in.Bio
	}
	if in.Location != nil {
		updates["location"] = *in.Location
	}
	if in.Website != nil {
		updates["website"] = *in.Website
	}
	if in.ProfileVisibility != nil {
		updates["profile_visibility"] = *in.ProfileVisibility
	}
	if in.Avatar != nil {
		contentType, err := ValidateImage(in.Avatar, s.maxImage)
		if err != nil {
			return nil, err
		}
		url, err := s.storage.Upload(ctx, s.bucket, objectName("avatars", user.ID, in.Avatar.Filename), contentType, in.Avatar.Data)
		if err != nil {
			return nil, err
		}
		updates["avatar_url"] = url
	}

	if len(updates) > 0 {
		if err := s.db.WithContext(ctx).Model(profile).Updates(updates).Error; err != nil {
			return nil, err
		}
		if err := s.db.WithContext(ctx).First(profile, profile.ID).Error; err != nil {
			return nil, err
		}
	}
	return s.view(ctx, user, user, profile)
}
