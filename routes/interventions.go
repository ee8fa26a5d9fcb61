package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"handyconnect-server/models"
	"handyconnect-server/services"
)

// RegisterInterventionRoutes registers the request lifecycle endpoints.
func RegisterInterventionRoutes(api *gin.RouterGroup, h *handlers, auth gin.HandlerFunc) {
	interventions := api.Group("/interventions", auth)
	{
		interventions.POST("", h.createIntervention)
		interventions.GET("/my", h.myInterventions)
		interventions.GET("/pending", h.pendingInterventions)
		interventions.GET("/:id", h.getIntervention)
		interventions.PUT("/:id", h.updateIntervention)
	}
}

func (h *handlers) createIntervention(c *gin.Context) {
	var input services.CreateInterventionInput
	if !bindJSON(c, &input) {
		return
	}
	intervention, err := h.Interventions.Create(c.Request.Context(), currentUser(c), input)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusCreated, intervention)
}

func (h *handlers) myInterventions(c *gin.Context) {
	list, err := h.Interventions.ListMine(c.Request.Context(), currentUser(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, list)
}

// pendingInterventions shows workers the open requests they can take and
// clients their own requests still waiting for a worker.
func (h *handlers) pendingInterventions(c *gin.Context) {
	user := currentUser(c)
	var filter services.PendingFilter

	if raw := c.Query("category"); raw != "" {
		category := models.ServiceCategory(raw)
		if !category.IsValid() {
			respondError(c, services.FieldError("category", "Unknown category"))
			return
		}
		filter.Category = &category
	}
	switch {
	case user.IsWorker():
		filter.WorkerID = &user.ID
	case user.IsClient():
		filter.ClientID = &user.ID
	}

	list, err := h.Interventions.ListPending(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, list)
}

func (h *handlers) getIntervention(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	intervention, err := h.Interventions.Get(c.Request.Context(), currentUser(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, intervention)
}

func (h *handlers) updateIntervention(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var patch services.InterventionUpdate
	if !bindJSON(c, &patch) {
		return
	}
	intervention, err := h.Interventions.Update(c.Request.Context(), currentUser(c), id, patch)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, intervention)
}
