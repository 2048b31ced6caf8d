package services

import (
	"context"
	"socialconnect/internal/models"

	"gorm.io/gorm"
)

// Page is one page of a paginated listing.
type Page[T any] struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	Results    []T   `json:"results"`
}

type FeedService struct {
	db       *gorm.DB
	follows  *FollowService
	pageSize int
}

func NewFeedService(conn *gorm.DB, follows *FollowService, pageSize int) *FeedService {
	if pageSize <= 0 {
		pageSize = 10
	}
	return &FeedService{db: conn, follows: follows, pageSize: pageSize}
}

// GetFeed assembles the viewer's timeline: active posts by the viewer and
// everyone they follow, newest first. Nothing is cached.
func (s *FeedService) GetFeed(ctx context.Context, viewer *models.User, page int) (*Page[models.Post], error) {
	if page < 1 {
		page = 1
	}
	authors, err := s.follows.FollowingIDs(ctx, viewer.ID)
	if err != nil {
		return nil, err
	}
	authors = append(authors, viewer.ID)

	base := s.db.WithContext(ctx).Model(&models.Post{}).
		Where("user_id IN ? AND is_active = ?", authors, true)

	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, err
	}

	posts := []models.Post{}
	size := int64(s.pageSize)
	// Compare page numbers rather than offsets so huge pages cannot overflow.
	if total > 0 && int64(page-1) <= (total-1)/size {
		offset := int(int64(page-1) * size)
		if err := base.Session(&gorm.Session{}).Preload("User").
			Order("created_at DESC, id DESC").
			Offset(offset).Limit(s.pageSize).
			Find(&posts).Error; err != nil {
			return nil, err
		}
		if err := fillPostMeta(ctx, s.db, posts, viewer.ID); err != nil {
			return nil, err
		}
	}

	totalPages := int((total + size - 1) / size)
	return &Page[models.Post]{
		Page:       page,
		PageSize:   s.pageSize,
		Total:      total,
		TotalPages: totalPages,
		Results:    posts,
	}, nil
}
