package middleware

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"handyconnect-server/models"
	"handyconnect-server/services"
)

// SessionCookie is the cookie carrying the session token.
const SessionCookie = "connect.sid"

// Context keys set by the auth middleware.
const (
	ContextUser    = "user"
	ContextUserID  = "user_id"
	ContextSession = "session"
)

// AuthMiddleware resolves the session cookie and sets the user in context.
// Requests without a live session are rejected with 401.
func AuthMiddleware(sessions *services.SessionService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(SessionCookie)
		if err != nil || token == "" {
			abortWithError(c, services.Unauthorized("Authentication required"))
			return
		}

		session, user, err := sessions.Resolve(c.Request.Context(), token)
		if err != nil {
			if services.CodeOf(err) != services.CodeUnauthorized {
				log.Printf("❌ Session lookup failed: %v", err)
			}
			abortWithError(c, err)
			return
		}

		c.Set(ContextUser, user)
		c.Set(ContextUserID, user.ID)
		c.Set(ContextSession, session)
		c.Next()
	}
}

// OptionalAuthMiddleware is like AuthMiddleware but lets anonymous requests through.
func OptionalAuthMiddleware(sessions *services.SessionService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(SessionCookie)
		if err == nil && token != "" {
			if session, user, err := sessions.Resolve(c.Request.Context(), token); err == nil {
				c.Set(ContextUser, user)
				c.Set(ContextUserID, user.ID)
				c.Set(ContextSession, session)
			}
		}
		c.Next()
	}
}

// RequireRole rejects authenticated users whose role is not listed.
func RequireRole(roles ...models.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := CurrentUser(c)
		if user == nil {
			abortWithError(c, services.Unauthorized("Authentication required"))
			return
		}
		for _, role := range roles {
			if user.Role == role {
				c.Next()
				return
			}
		}
		log.Printf("🚫 User %d (%s) denied on %s %s", user.ID, user.Role, c.Request.Method, c.FullPath())
		abortWithError(c, services.Forbidden("Access denied"))
	}
}

// CurrentUser returns the authenticated user or nil.
func CurrentUser(c *gin.Context) *models.User {
	v, ok := c.Get(ContextUser)
	if !ok {
		return nil
	}
	user, _ := v.(*models.User)
	return user
}

// SetSessionCookie writes the session cookie. A negative maxAge clears it.
func SetSessionCookie(c *gin.Context, token string, maxAge int, secure bool) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(SessionCookie, token, maxAge, "/", "", secure, true)
}

func abortWithError(c *gin.Context, err error) {
	appErr, ok := services.AsAppError(err)
	if !ok {
		appErr = &services.AppError{Code: services.CodeInternal, Message: "Internal server error", HTTPCode: http.StatusInternalServerError}
	}
	c.AbortWithStatusJSON(appErr.HTTPCode, gin.H{
		"success": false,
		"error":   appErr.Code,
		"message": appErr.Message,
	})
}
