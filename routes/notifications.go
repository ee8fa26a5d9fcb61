package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterNotificationRoutes registers the caller's notification inbox.
func RegisterNotificationRoutes(api *gin.RouterGroup, h *handlers, auth gin.HandlerFunc) {
	notifications := api.Group("/notifications", auth)
	{
		notifications.GET("", h.listNotifications)
		notifications.GET("/unread-count", h.unreadCount)
		notifications.PUT("/read-all", h.markAllRead)
		notifications.PUT("/:id/read", h.markRead)
	}
}

func (h *handlers) listNotifications(c *gin.Context) {
	unreadOnly := c.Query("unread") == "true"
	list, err := h.Notifications.List(c.Request.Context(), currentUser(c).ID, unreadOnly)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, list)
}

func (h *handlers) unreadCount(c *gin.Context) {
	count, err := h.Notifications.UnreadCount(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"count": count})
}

func (h *handlers) markRead(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	notification, err := h.Notifications.MarkAsRead(c.Request.Context(), currentUser(c).ID, id)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, notification)
}

func (h *handlers) markAllRead(c *gin.Context) {
	updated, err := h.Notifications.MarkAllAsRead(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"updated": updated})
}
