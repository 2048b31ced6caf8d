package handlers

import (
	"net/http"
	"socialconnect/internal/middleware"
	"socialconnect/internal/models"
	"socialconnect/internal/services"

	"github.com/gin-gonic/gin"
)

// PostHandler serves posts, likes and comments.
type PostHandler struct {
	posts      *services.PostService
	engagement *services.EngagementService
	maxImage   int64
}

func NewPostHandler(posts *services.PostService, engagement *services.EngagementService, maxImage int64) *PostHandler {
	return &PostHandler{posts: posts, engagement: engagement, maxImage: maxImage}
}

type postRequest struct {
	Content  *string          `json:"content"`
	Category *models.Category `json:"category"`
}

// readPost parses a JSON body or a multipart form with an optional "image".
func (h *PostHandler) readPost(c *gin.Context) (postRequest, *services.ImageUpload, bool) {
	var req postRequest
	if !isMultipart(c) {
		return req, nil, bindJSON(c, &req)
	}
	req.Content = formString(c, "content")
	if v := formString(c, "category"); v != nil {
		cat := models.Category(*v)
		req.Category = &cat
	}
	img, err := formImage(c, "image", h.maxImage)
	if err != nil {
		respondError(c, err)
		return req, nil, false
	}
	return req, img, true
}

func (h *PostHandler) List(c *gin.Context) {
	posts, err := h.posts.ListActive(c.Request.Context(), middleware.CurrentUser(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, posts)
}

func (h *PostHandler) Mine(c *gin.Context) {
	user := middleware.CurrentUser(c)
	posts, err := h.posts.ListByAuthor(c.Request.Context(), user, user.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, posts)
}

func (h *PostHandler) Create(c *gin.Context) {
	req, img, ok := h.readPost(c)
	if !ok {
		return
	}
	in := services.PostInput{Image: img}
	if req.Content != nil {
		in.Content = *req.Content
	}
	if req.Category != nil {
		in.Category = *req.Category
	}

	post, err := h.posts.Create(c.Request.Context(), middleware.CurrentUser(c), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, post)
}

func (h *PostHandler) Detail(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	post, err := h.posts.Get(c.Request.Context(), middleware.CurrentUser(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, post)
}

// Update serves both PUT and PATCH; fields left out are unchanged.
func (h *PostHandler) Update(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	req, img, ok := h.readPost(c)
	if !ok {
		return
	}
	post, err := h.posts.Update(c.Request.Context(), middleware.CurrentUser(c), id, services.PostUpdate{
		Content:  req.Content,
		Category: req.Category,
		Image:    img,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, post)
}

func (h *PostHandler) Delete(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.posts.Delete(c.Request.Context(), middleware.CurrentUser(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *PostHandler) ToggleLike(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	liked, total, err := h.engagement.ToggleLike(c.Request.Context(), middleware.CurrentUser(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	status := "unliked"
	if liked {
		status = "liked"
	}
	c.JSON(http.StatusOK, gin.H{"status": status, "liked": liked, "like_count": total})
}

func (h *PostHandler) ListComments(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	comments, err := h.engagement.ListComments(c.Request.Context(), middleware.CurrentUser(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, comments)
}

func (h *PostHandler) AddComment(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req struct {
		Content string `json:"content"`
	}
	if !bindJSON(c, &req) {
		return
	}
	comment, err := h.engagement.AddComment(c.Request.Context(), middleware.CurrentUser(c), id, req.Content)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, comment)
}

func (h *PostHandler) DeleteComment(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.engagement.DeleteComment(c.Request.Context(), middleware.CurrentUser(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
