package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"handyconnect-server/middleware"
	"handyconnect-server/services"
)

// RegisterAuthRoutes registers session identity and the caller's own profile.
func RegisterAuthRoutes(api *gin.RouterGroup, h *handlers, auth gin.HandlerFunc) {
	api.POST("/register", h.register)
	api.POST("/login", h.login)
	api.POST("/logout", h.logout)

	api.GET("/user", auth, h.getCurrentUser)
	api.PUT("/user/profile", auth, h.updateUserProfile)
	api.POST("/user/profile/photo", auth, h.uploadProfilePhoto)
	api.GET("/ws/token", auth, h.socketTicket)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *handlers) register(c *gin.Context) {
	var input services.RegisterInput
	if !bindJSON(c, &input) {
		return
	}

	user, err := h.Users.Register(c.Request.Context(), input)
	if err != nil {
		respondError(c, err)
		return
	}
	if !h.startSession(c, user.ID) {
		return
	}
	respondOK(c, http.StatusCreated, user)
}

func (h *handlers) login(c *gin.Context) {
	var req loginRequest
	if !bindJSON(c, &req) {
		return
	}

	user, err := h.Users.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}
	if !h.startSession(c, user.ID) {
		return
	}
	respondOK(c, http.StatusOK, user)
}

func (h *handlers) startSession(c *gin.Context, userID uint) bool {
	session, err := h.Sessions.Create(c.Request.Context(), userID, c.Request.UserAgent(), c.ClientIP())
	if err != nil {
		respondError(c, err)
		return false
	}
	middleware.SetSessionCookie(c, session.Token, int(h.Sessions.TTL().Seconds()), h.Config.Session.CookieSecure)
	return true
}

// logout always clears the cookie, even when the session is already gone.
func (h *handlers) logout(c *gin.Context) {
	if token, err := c.Cookie(middleware.SessionCookie); err == nil && token != "" {
		if err := h.Sessions.Revoke(c.Request.Context(), token); err != nil {
			respondError(c, err)
			return
		}
	}
	middleware.SetSessionCookie(c, "", -1, h.Config.Session.CookieSecure)
	respondOK(c, http.StatusOK, gin.H{"loggedOut": true})
}

func (h *handlers) getCurrentUser(c *gin.Context) {
	respondOK(c, http.StatusOK, currentUser(c))
}

func (h *handlers) updateUserProfile(c *gin.Context) {
	var input services.UpdateUserInput
	if !bindJSON(c, &input) {
		return
	}
	user, err := h.Users.UpdateProfile(c.Request.Context(), currentUser(c).ID, input)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, user)
}

func (h *handlers) uploadProfilePhoto(c *gin.Context) {
	if !h.Media.Enabled() {
		respondError(c, services.Unavailable("Image uploads are not configured"))
		return
	}
	header, err := c.FormFile("photo")
	if err != nil {
		respondError(c, services.FieldError("photo", "A photo file is required"))
		return
	}

	url, err := h.Media.UploadProfilePhoto(c.Request.Context(), currentUser(c).ID, header)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"profileImageUrl": url})
}

func (h *handlers) socketTicket(c *gin.Context) {
	token, expiresAt, err := h.Sessions.IssueSocketTicket(currentUser(c).ID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"token": token, "expiresAt": expiresAt})
}
