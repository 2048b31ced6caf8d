package handlers

import (
	"net/http"
	"socialconnect/internal/middleware"
	"socialconnect/internal/services"

	"github.com/gin-gonic/gin"
)

type NotificationHandler struct {
	notifications *services.NotificationService
}

func NewNotificationHandler(notifications *services.NotificationService) *NotificationHandler {
	return &NotificationHandler{notifications: notifications}
}

func (h *NotificationHandler) List(c *gin.Context) {
	user := middleware.CurrentUser(c)
	ctx := c.Request.Context()

	notifications, err := h.notifications.List(ctx, user.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	unread, err := h.notifications.UnreadCount(ctx, user.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"unread_count": unread, "results": notifications})
}

func (h *NotificationHandler) Read(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.notifications.MarkRead(c.Request.Context(), middleware.CurrentUser(c).ID, id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "marked as read"})
}

func (h *NotificationHandler) ReadAll(c *gin.Context) {
	n, err := h.notifications.MarkAllRead(c.Request.Context(), middleware.CurrentUser(c).ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "all marked as read", "updated": n})
}

func (h *NotificationHandler) Delete(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.notifications.Delete(c.Request.Context(), middleware.CurrentUser(c).ID, id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
