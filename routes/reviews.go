package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"handyconnect-server/services"
)

func RegisterReviewRoutes(api *gin.RouterGroup, h *handlers, auth gin.HandlerFunc) {
	api.POST("/reviews", auth, h.createReview)
}

func (h *handlers) createReview(c *gin.Context) {
	var input services.CreateReviewInput
	if !bindJSON(c, &input) {
		return
	}
	review, err := h.Reviews.Create(c.Request.Context(), currentUser(c).ID, input)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusCreated, review)
}
