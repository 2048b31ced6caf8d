package services

import (
	"context"
	"errors"
	"socialconnect/internal/db"
	"socialconnect/internal/models"
	"socialconnect/internal/utils"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterValidation("category", func(fl validator.FieldLevel) bool {
		return models.Category(fl.Field().String()).Valid()
	})
	return v
}

// PostInput is the payload for creating a post.
type PostInput struct {
	Content  string          `validate:"required,max=280"`
	Category models.Category `validate:"omitempty,category"`
	Image    *ImageUpload
}

// PostUpdate carries a partial update; nil fields are left unchanged.
type PostUpdate struct {
	Content  *string          `validate:"omitempty,min=1,max=280"`
	Category *models.Category `validate:"omitempty,category"`
	Image    *ImageUpload
}

type PostService struct {
	db       *gorm.DB
	storage  ObjectStorage
	bucket   string
	maxImage int64
	log      *zap.Logger
}

func NewPostService(conn *gorm.DB, storage ObjectStorage, bucket string, maxImage int64, log *zap.Logger) *PostService {
	return &PostService{db: conn, storage: storage, bucket: bucket, maxImage: maxImage, log: log}
}

// validationError turns validator output into a client-facing message.
func validationError(err error) error {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) || len(ve) == 0 {
		return Validationf("%v", err)
	}
	fe := ve[0]
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required", "min":
		return Validationf("%s may not be blank", field)
	case "max":
		return Validationf("%s must be at most %s characters", field, fe.Param())
	case "category":
		return Validationf("category must be one of: %s, %s, %s",
			models.CategoryGeneral, models.CategoryAnnouncement, models.CategoryQuestion)
	case "email":
		return Validationf("enter a valid email address")
	}
	return Validationf("%s is invalid", field)
}

// canSeeInactive reports whether viewer may see post while it is inactive.
func canSeeInactive(viewer *models.User, post *models.Post) bool {
	return viewer != nil && (viewer.IsStaff || viewer.ID == post.UserID)
}

// findPost loads a post with its author, hiding inactive posts from
// everyone but the author and staff.
func findPost(ctx context.Context, conn *gorm.DB, viewer *models.User, id uint) (*models.Post, error) {
	var post models.Post
	if err := conn.WithContext(ctx).Preload("User").First(&post, id).Error; err != nil {
		if db.IsNotFound(err) {
			return nil, ErrPostNotFound
		}
		return nil, err
	}
	if !post.IsActive && !canSeeInactive(viewer, &post) {
		return nil, ErrPostNotFound
	}
	return &post, nil
}

// fillPostMeta sets like/comment counts, liked_by_me and content_html on
// posts using one grouped query per counter.
func fillPostMeta(ctx context.Context, conn *gorm.DB, posts []models.Post, viewerID uint) error {
	if len(posts) == 0 {
		return nil
	}
	ids := make([]uint, len(posts))
	for i := range posts {
		ids[i] = posts[i].ID
	}

	type countResult struct {
		PostID uint
		Count  int64
	}
	tx := conn.WithContext(ctx)

	var likes []countResult
	if err := tx.Model(&models.Like{}).Select("post_id, count(*) as count").
		Where("post_id IN ?", ids).Group("post_id").Scan(&likes).Error; err != nil {
		return err
	}
	var comments []countResult
	if err := tx.Model(&models.Comment{}).Select("post_id, count(*) as count").
		Where("post_id IN ? AND is_active = ?", ids, true).Group("post_id").Scan(&comments).Error; err != nil {
		return err
	}
	var liked []uint
	if viewerID != 0 {
		if err := tx.Model(&models.Like{}).Where("user_id = ? AND post_id IN ?", viewerID, ids).
			Pluck("post_id", &liked).Error; err != nil {
			return err
		}
	}

	likeMap := make(map[uint]int64, len(likes))
	for _, r := range likes {
		likeMap[r.PostID] = r.Count
	}
	commentMap := make(map[uint]int64, len(comments))
	for _, r := range comments {
		commentMap[r.PostID] = r.Count
	}
	likedSet := make(map[uint]bool, len(liked))
	for _, id := range liked {
		likedSet[id] = true
	}

	for i := range posts {
		p := &posts[i]
		p.LikeCount = likeMap[p.ID]
		p.CommentCount = commentMap[p.ID]
		p.LikedByMe = likedSet[p.ID]
		p.ContentHTML = utils.RenderMarkdown(p.Content)
	}
	return nil
}

func viewerID(viewer *models.User) uint {
	if viewer == nil {
		return 0
	}
	return viewer.ID
}

func (s *PostService) uploadImage(ctx context.Context, postID uint, img *ImageUpload) (string, error) {
	contentType, err := ValidateImage(img, s.maxImage)
	if err != nil {
		return "", err
	}
	return s.storage.Upload(ctx, s.bucket, objectName("posts", postID, img.Filename), contentType, img.Data)
}

// Create stores a new active post and uploads its image, if any. A failed
// upload rolls the post back.
func (s *PostService) Create(ctx context.Context, author *models.User, in PostInput) (*models.Post, error) {
	in.Content = strings.TrimSpace(in.Content)
	if err := validate.Struct(in); err != nil {
		return nil, validationError(err)
	}
	if in.Category == "" {
		in.Category = models.CategoryGeneral
	}
	if in.Image != nil {
		if _, err := ValidateImage(in.Image, s.maxImage); err != nil {
			return nil, err
		}
	}

	post := models.Post{
		UserID:   author.ID,
		Content:  in.Content,
		Category: in.Category,
		IsActive: true,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(&post).Error; err != nil {
			return err
		}
		if in.Image == nil {
			return nil
		}
		url, err := s.uploadImage(ctx, post.ID, in.Image)
		if err != nil {
			return err
		}
		post.ImageURL = url
		return tx.Model(&post).Update("image_url", url).Error
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("post created", zap.Uint("post_id", post.ID), zap.Uint("author_id", author.ID))
	return s.Get(ctx, author, post.ID)
}

// Get returns a single post with derived fields.
func (s *PostService) Get(ctx context.Context, viewer *models.User, id uint) (*models.Post, error) {
	post, err := findPost(ctx, s.db, viewer, id)
	if err != nil {
		return nil, err
	}
	posts := []models.Post{*post}
	if err := fillPostMeta(ctx, s.db, posts, viewerID(viewer)); err != nil {
		return nil, err
	}
	return &posts[0], nil
}

// Update applies a partial update. Only the author may edit; is_active is
// never touched here.
func (s *PostService) Update(ctx context.Context, user *models.User, id uint, in PostUpdate) (*models.Post, error) {
	post, err := findPost(ctx, s.db, user, id)
	if err != nil {
		return nil, err
	}
	if post.UserID != user.ID {
		return nil, ErrForbidden
	}
	if in.Content != nil {
		trimmed := strings.TrimSpace(*in.Content)
		in.Content = &trimmed
	}
	if err := validate.Struct(in); err != nil {
		return nil, validationError(err)
	}

	updates := map[string]any{}
	if in.Content != nil {
		updates["content"] = *in.Content
	}
	if in.Category != nil {
		updates["category"] = *in.Category
	}
	if in.Image != nil {
		url, err := s.uploadImage(ctx, post.ID, in.Image)
		if err != nil {
			return nil, err
		}
		updates["image_url"] = url
	}
	if len(updates) > 0 {
		if err := s.db.WithContext(ctx).Model(&models.Post{}).Where("id = ?", post.ID).Updates(updates).Error; err != nil {
			return nil, err
		}
	}
	return s.Get(ctx, user, post.ID)
}

// Delete hard-deletes the post with its likes, comments and notifications.
// Allowed for the author and staff.
func (s *PostService) Delete(ctx context.Context, user *models.User, id uint) error {
	post, err := findPost(ctx, s.db, user, id)
	if err != nil {
		return err
	}
	if post.UserID != user.ID && !user.IsStaff {
		return ErrForbidden
	}
	return deletePostCascade(ctx, s.db, post.ID)
}

func deletePostCascade(ctx context.Context, conn *gorm.DB, postID uint) error {
	return conn.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("post_id = ?", postID).Delete(&models.Notification{}).Error; err != nil {
			return err
		}
		if err := tx.Where("post_id = ?", postID).Delete(&models.Like{}).Error; err != nil {
			return err
		}
		if err := tx.Where("post_id = ?", postID).Delete(&models.Comment{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&models.Post{}, postID)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrPostNotFound
		}
		return nil
	})
}

func (s *PostService) list(ctx context.Context, viewer *models.User, scope func(*gorm.DB) *gorm.DB) ([]models.Post, error) {
	var posts []models.Post
	q := s.db.WithContext(ctx).Preload("User").Scopes(scope).Order("created_at DESC, id DESC")
	if err := q.Find(&posts).Error; err != nil {
		return nil, err
	}
	if err := fillPostMeta(ctx, s.db, posts, viewerID(viewer)); err != nil {
		return nil, err
	}
	return posts, nil
}

// ListActive returns every active post, newest first.
func (s *PostService) ListActive(ctx context.Context, viewer *models.User) ([]models.Post, error) {
	return s.list(ctx, viewer, func(db *gorm.DB) *gorm.DB {
		return db.Where("is_active = ?", true)
	})
}

// ListByAuthor returns authorID's posts. Inactive ones are included only
// when the viewer is the author or staff.
func (s *PostService) ListByAuthor(ctx context.Context, viewer *models.User, authorID uint) ([]models.Post, error) {
	includeInactive := viewer != nil && (viewer.IsStaff || viewer.ID == authorID)
	return s.list(ctx, viewer, func(db *gorm.DB) *gorm.DB {
		db = db.Where("user_id = ?", authorID)
		if !includeInactive {
			db = db.Where("is_active = ?", true)
		}
		return db
	})
}

// ListAll returns every post regardless of state, for staff.
func (s *PostService) ListAll(ctx context.Context, viewer *models.User) ([]models.Post, error) {
	return s.list(ctx, viewer, func(db *gorm.DB) *gorm.DB { return db })
}

// SetActive soft-deletes or restores a post.
func (s *PostService) SetActive(ctx context.Context, id uint, active bool) (*models.Post, error) {
	res := s.db.WithContext(ctx).Model(&models.Post{}).Where("id = ?", id).Update("is_active", active)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrPostNotFound
	}
	var post models.Post
	if err := s.db.WithContext(ctx).Preload("User").First(&post, id).Error; err != nil {
		return nil, err
	}
	posts := []models.Post{post}
	if err := fillPostMeta(ctx, s.db, posts, 0); err != nil {
		return nil, err
	}
	return &posts[0], nil
}
