package routes

import (
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"handyconnect-server/config"
	"handyconnect-server/middleware"
	"handyconnect-server/models"
	"handyconnect-server/services"
)

// ConnectionCounter reports live real-time connections for /health.
type ConnectionCounter interface {
	ConnectionCount() int
}

// Dependencies carries everything the HTTP layer needs.
type Dependencies struct {
	Config        *config.Config
	Users         *services.UserService
	Sessions      *services.SessionService
	Workers       *services.WorkerService
	Interventions *services.InterventionService
	Reviews       *services.ReviewService
	Messages      *services.MessageService
	Favorites     *services.FavoriteService
	Notifications *services.NotificationService
	Payments      *services.PaymentService
	Dashboard     *services.DashboardService
	Media         *services.MediaService
	Limiter       *middleware.RateLimiter
	Hub           ConnectionCounter
	WebSocket     gin.HandlerFunc
	Ping          func() error
}

type handlers struct {
	*Dependencies
}

// SetupRouter builds the gin engine with the middleware stack and every API route.
func SetupRouter(deps *Dependencies) *gin.Engine {
	h := &handlers{deps}

	router := gin.New()
	router.RedirectTrailingSlash = false
	router.RedirectFixedPath = false

	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.SecurityHeadersMiddleware())
	router.Use(middleware.CORSMiddleware(deps.Config.Server.AllowedOrigins))
	if deps.Limiter != nil {
		router.Use(middleware.RateLimitMiddleware(deps.Limiter))
	}
	router.Use(middleware.InputValidationMiddleware())
	router.Use(middleware.AuditLogMiddleware())

	router.GET("/health", h.health)
	if deps.WebSocket != nil {
		router.GET("/ws", deps.WebSocket)
	}

	api := router.Group("/api")
	auth := middleware.AuthMiddleware(deps.Sessions)
	admin := middleware.RequireRole(models.RoleAdmin)

	RegisterAuthRoutes(api, h, auth)
	RegisterWorkerRoutes(api, h, auth)
	RegisterInterventionRoutes(api, h, auth)
	RegisterReviewRoutes(api, h, auth)
	RegisterMessageRoutes(api, h, auth)
	RegisterFavoriteRoutes(api, h, auth)
	RegisterNotificationRoutes(api, h, auth)
	RegisterPaymentRoutes(api, h, auth)
	RegisterAdminRoutes(api, h, auth, admin)

	api.GET("/dashboard/stats", auth, h.dashboardStats)

	return router
}

func (h *handlers) health(c *gin.Context) {
	status, overall, dbStatus := http.StatusOK, "ok", "ok"
	if h.Ping != nil {
		if err := h.Ping(); err != nil {
			log.Printf("❌ Health check: database unreachable: %v", err)
			status, overall, dbStatus = http.StatusServiceUnavailable, "degraded", "unreachable"
		}
	}

	connections := 0
	if h.Hub != nil {
		connections = h.Hub.ConnectionCount()
	}

	c.JSON(status, gin.H{
		"status":      overall,
		"database":    dbStatus,
		"connections": connections,
		"time":        time.Now().UTC(),
	})
}

func (h *handlers) dashboardStats(c *gin.Context) {
	stats, err := h.Dashboard.Stats(c.Request.Context(), currentUser(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, stats)
}
