package handlers

import (
	"net/http"
	"socialconnect/internal/middleware"
	"socialconnect/internal/services"
	"socialconnect/internal/utils"

	"github.com/gin-gonic/gin"
)

type FeedHandler struct {
	feed *services.FeedService
}

func NewFeedHandler(feed *services.FeedService) *FeedHandler {
	return &FeedHandler{feed: feed}
}

func (h *FeedHandler) Get(c *gin.Context) {
	page := utils.ParsePage(c.Query("page"))
	result, err := h.feed.GetFeed(c.Request.Context(), middleware.CurrentUser(c), page)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
