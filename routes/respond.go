package routes

import (
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"handyconnect-server/middleware"
	"handyconnect-server/models"
	"handyconnect-server/services"
)

func respondOK(c *gin.Context, status int, data interface{}) {
	c.JSON(status, gin.H{"success": true, "data": data})
}

// respondError renders any error as the standard failure body. Errors that
// are not AppErrors become a generic 500.
func respondError(c *gin.Context, err error) {
	appErr, ok := services.AsAppError(err)
	if !ok {
		log.Printf("❌ Unhandled error on %s %s: %v", c.Request.Method, c.FullPath(), err)
		appErr = &services.AppError{
			Code:     services.CodeInternal,
			Message:  "Internal server error",
			HTTPCode: http.StatusInternalServerError,
		}
	}
	if appErr.HTTPCode >= http.StatusInternalServerError && appErr.Err != nil {
		log.Printf("❌ %s %s failed: %v", c.Request.Method, c.FullPath(), appErr)
	}

	body := gin.H{
		"success": false,
		"error":   appErr.Code,
		"message": appErr.Message,
	}
	if len(appErr.Fields) > 0 {
		body["fields"] = appErr.Fields
	}
	c.JSON(appErr.HTTPCode, body)
}

// bindJSON decodes the request body, answering 400 itself on failure.
func bindJSON(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		respondError(c, services.ValidationError("Invalid request body", map[string]string{"body": err.Error()}))
		return false
	}
	return true
}

func paramID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		respondError(c, services.FieldError(name, "Must be a positive integer"))
		return 0, false
	}
	return uint(id), true
}

func queryInt(c *gin.Context, name string, def int) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		respondError(c, services.FieldError(name, "Must be an integer"))
		return 0, false
	}
	return v, true
}

func currentUser(c *gin.Context) *models.User {
	return middleware.CurrentUser(c)
}
