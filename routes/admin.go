package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"handyconnect-server/services"
)

// RegisterAdminRoutes registers back-office listings and review moderation.
func RegisterAdminRoutes(api *gin.RouterGroup, h *handlers, auth, admin gin.HandlerFunc) {
	group := api.Group("/admin", auth, admin)
	{
		group.GET("/users", h.adminUsers)
		group.GET("/interventions", h.adminInterventions)
		group.GET("/reviews/unmoderated", h.adminUnmoderatedReviews)
		group.PUT("/reviews/:id/moderate", h.adminModerateReview)
	}
}

func (h *handlers) adminUsers(c *gin.Context) {
	limit, ok := queryInt(c, "limit", 0)
	if !ok {
		return
	}
	offset, ok := queryInt(c, "offset", 0)
	if !ok {
		return
	}
	users, err := h.Users.ListUsers(c.Request.Context(), limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, users)
}

func (h *handlers) adminInterventions(c *gin.Context) {
	limit, ok := queryInt(c, "limit", 0)
	if !ok {
		return
	}
	offset, ok := queryInt(c, "offset", 0)
	if !ok {
		return
	}
	list, err := h.Interventions.ListAll(c.Request.Context(), limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, list)
}

func (h *handlers) adminUnmoderatedReviews(c *gin.Context) {
	reviews, err := h.Reviews.ListUnmoderated(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, reviews)
}

func (h *handlers) adminModerateReview(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var input services.ModerateReviewInput
	if !bindJSON(c, &input) {
		return
	}
	review, err := h.Reviews.Moderate(c.Request.Context(), id, input)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, review)
}
