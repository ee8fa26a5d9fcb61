package routes

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"handyconnect-server/models"
	"handyconnect-server/services"
)

// RegisterWorkerRoutes registers the public directory and the worker's own profile.
func RegisterWorkerRoutes(api *gin.RouterGroup, h *handlers, auth gin.HandlerFunc) {
	workers := api.Group("/workers")
	{
		workers.GET("/search", h.searchWorkers)
		workers.POST("/profile", auth, h.createWorkerProfile)
		workers.PUT("/profile", auth, h.updateWorkerProfile)
		workers.GET("/:id", h.getWorker)
		workers.GET("/:id/reviews", h.getWorkerReviews)
	}
}

// parseSearchFilters reads the directory filters. Unknown categories, bad
// numbers and isAvailable values other than true/false are rejected.
func parseSearchFilters(c *gin.Context) (services.WorkerSearchFilters, error) {
	var filters services.WorkerSearchFilters
	fields := map[string]string{}

	if raw := c.Query("category"); raw != "" {
		category := models.ServiceCategory(raw)
		if !category.IsValid() {
			fields["category"] = "Unknown category"
		} else {
			filters.Category = &category
		}
	}
	filters.City = c.Query("city")

	parseFloat := func(name string) *float64 {
		raw := c.Query(name)
		if raw == "" {
			return nil
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v < 0 {
			fields[name] = "Must be a non-negative number"
			return nil
		}
		return &v
	}
	filters.MinRating = parseFloat("minRating")
	filters.MaxHourlyRate = parseFloat("maxHourlyRate")

	switch c.Query("isAvailable") {
	case "":
	case "true":
		v := true
		filters.IsAvailable = &v
	case "false":
		v := false
		filters.IsAvailable = &v
	default:
		fields["isAvailable"] = "Must be true or false"
	}

	parseInt := func(name string) int {
		raw := c.Query(name)
		if raw == "" {
			return 0
		}
		v, err := strconv.Atoi(raw)
		if err != nil {
			fields[name] = "Must be an integer"
		}
		return v
	}
	filters.Limit = parseInt("limit")
	filters.Offset = parseInt("offset")

	if len(fields) > 0 {
		return filters, services.ValidationError("Invalid search filters", fields)
	}
	return filters, nil
}

func (h *handlers) searchWorkers(c *gin.Context) {
	filters, err := parseSearchFilters(c)
	if err != nil {
		respondError(c, err)
		return
	}

	result, err := h.Workers.SearchWorkers(c.Request.Context(), filters)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "search_failed",
			"message": "Worker search is temporarily unavailable",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    result.Workers,
		"limit":   result.Limit,
		"offset":  result.Offset,
	})
}

func (h *handlers) getWorker(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	worker, err := h.Workers.GetWorkerWithProfile(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, worker)
}

func (h *handlers) getWorkerReviews(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	reviews, err := h.Reviews.ListForWorker(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, reviews)
}

func (h *handlers) createWorkerProfile(c *gin.Context) {
	var input services.WorkerProfileInput
	if !bindJSON(c, &input) {
		return
	}
	profile, err := h.Workers.CreateProfile(c.Request.Context(), currentUser(c).ID, input)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusCreated, profile)
}

func (h *handlers) updateWorkerProfile(c *gin.Context) {
	var patch services.WorkerProfilePatch
	if !bindJSON(c, &patch) {
		return
	}
	profile, err := h.Workers.UpdateProfile(c.Request.Context(), currentUser(c).ID, patch)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, profile)
}
