package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"handyconnect-server/services"
)

func RegisterFavoriteRoutes(api *gin.RouterGroup, h *handlers, auth gin.HandlerFunc) {
	favorites := api.Group("/favorites", auth)
	{
		favorites.GET("", h.listFavorites)
		favorites.POST("", h.addFavorite)
		favorites.DELETE("/:workerId", h.removeFavorite)
	}
}

type favoriteRequest struct {
	WorkerID uint `json:"workerId"`
}

func (h *handlers) listFavorites(c *gin.Context) {
	favorites, err := h.Favorites.List(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, favorites)
}

func (h *handlers) addFavorite(c *gin.Context) {
	var req favoriteRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.WorkerID == 0 {
		respondError(c, services.FieldError("workerId", "This field is required"))
		return
	}
	favorite, err := h.Favorites.Add(c.Request.Context(), currentUser(c).ID, req.WorkerID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusCreated, favorite)
}

func (h *handlers) removeFavorite(c *gin.Context) {
	workerID, ok := paramID(c, "workerId")
	if !ok {
		return
	}
	if err := h.Favorites.Remove(c.Request.Context(), currentUser(c).ID, workerID); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"removed": true})
}
