package routes

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"handyconnect-server/services"
)

// RegisterMessageRoutes registers the HTTP side of intervention chat.
func RegisterMessageRoutes(api *gin.RouterGroup, h *handlers, auth gin.HandlerFunc) {
	messages := api.Group("/messages", auth)
	{
		messages.GET("/:interventionId", h.listMessages)
		messages.POST("", h.sendMessage)
	}
}

// listMessages returns the conversation and marks what was addressed to the caller as read.
func (h *handlers) listMessages(c *gin.Context) {
	interventionID, ok := paramID(c, "interventionId")
	if !ok {
		return
	}
	user := currentUser(c)

	messages, err := h.Messages.ListByIntervention(c.Request.Context(), user, interventionID)
	if err != nil {
		respondError(c, err)
		return
	}
	if _, err := h.Messages.MarkAsRead(c.Request.Context(), user.ID, interventionID); err != nil {
		log.Printf("⚠️ Failed to mark messages read for user %d on intervention %d: %v", user.ID, interventionID, err)
	}
	respondOK(c, http.StatusOK, messages)
}

func (h *handlers) sendMessage(c *gin.Context) {
	var input services.SendMessageInput
	if !bindJSON(c, &input) {
		return
	}
	message, err := h.Messages.Send(c.Request.Context(), currentUser(c), input)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusCreated, message)
}
