package handlers

import (
	"net/http"
	"socialconnect/internal/middleware"
	"socialconnect/internal/services"
	"strconv"

	"github.com/gin-gonic/gin"
)

// UserHandler serves profiles and the follow graph.
type UserHandler struct {
	profiles *services.ProfileService
	follows  *services.FollowService
	maxImage int64
}

func NewUserHandler(profiles *services.ProfileService, follows *services.FollowService, maxImage int64) *UserHandler {
	return &UserHandler{profiles: profiles, follows: follows, maxImage: maxImage}
}

func (h *UserHandler) List(c *gin.Context) {
	views, err := h.profiles.List(c.Request.Context(), middleware.CurrentUser(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, views)
}

func (h *UserHandler) Me(c *gin.Context) {
	view, err := h.profiles.Me(c.Request.Context(), middleware.CurrentUser(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

type profileRequest struct {
	Bio               *string `json:"bio"`
	Location          *string `json:"location"`
	Website           *string `json:"website"`
	ProfileVisibility *bool   `json:"profile_visibility"`
}

// UpdateMe accepts JSON or a multipart form carrying an "avatar" file.
func (h *UserHandler) UpdateMe(c *gin.Context) {
	var in services.ProfileUpdate
	if isMultipart(c) {
		in.Bio = formString(c, "bio")
		in.Location = formString(c, "location")
		in.Website = formString(c, "website")
		if v := formString(c, "profile_visibility"); v != nil {
			visible, err := strconv.ParseBool(*v)
			if err != nil {
				badRequest(c, "profile_visibility must be a boolean")
				return
			}
			in.ProfileVisibility = &visible
		}
		avatar, err := formImage(c, "avatar", h.maxImage)
		if err != nil {
			respondError(c, err)
			return
		}
		in.Avatar = avatar
	} else {
		var req profileRequest
		if !bindJSON(c, &req) {
			return
		}
		in.Bio, in.Location, in.Website, in.ProfileVisibility = req.Bio, req.Location, req.Website, req.ProfileVisibility
	}

	view, err := h.profiles.UpdateMe(c.Request.Context(), middleware.CurrentUser(c), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *UserHandler) Detail(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	view, err := h.profiles.Get(c.Request.Context(), middleware.CurrentUser(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// Follow answers 201 for a new edge and 200 when it already existed.
func (h *UserHandler) Follow(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	edge, created, err := h.follows.Follow(c.Request.Context(), middleware.CurrentUser(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	if !created {
		c.JSON(http.StatusOK, gin.H{"status": "already following", "follow": edge})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"status": "following", "follow": edge})
}

func (h *UserHandler) Unfollow(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	removed, err := h.follows.Unfollow(c.Request.Context(), middleware.CurrentUser(c).ID, id)
	if err != nil {
		respondError(c, err)
		return
	}
	status := "unfollowed"
	if !removed {
		status = "not following"
	}
	c.JSON(http.StatusOK, gin.H{"status": status, "removed": removed})
}

func (h *UserHandler) Followers(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	edges, err := h.follows.ListFollowers(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, edges)
}

func (h *UserHandler) Following(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	edges, err := h.follows.ListFollowing(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, edges)
}

func (h *UserHandler) Stats(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	stats, err := h.follows.Stats(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}
