package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"call-review-api/services"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// currentUser pulls the authenticated user id from the gin context.
func currentUser(c *gin.Context) (int, bool) {
	value, exists := c.Get("userID")
	if !exists {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "User context missing"})
		return 0, false
	}
	userID, ok := value.(int)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Invalid user context"})
		return 0, false
	}
	return userID, true
}

// currentOrg pulls the caller's organization id from the gin context.
func currentOrg(c *gin.Context) int {
	if value, exists := c.Get("orgID"); exists {
		if orgID, ok := value.(int); ok {
			return orgID
		}
	}
	return 0
}

// pathID parses a positive integer path parameter.
func pathID(c *gin.Context, name string) (int, bool) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + name})
		return 0, false
	}
	return id, true
}

// respondServiceError maps the engine's error taxonomy onto HTTP codes.
func respondServiceError(c *gin.Context, err error) {
	var validation *services.ValidationError
	var conflictBlocked *services.ConflictBlockedError

	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Record not found"})
	case errors.Is(err, services.ErrNotAuthorized):
		c.JSON(http.StatusForbidden, gin.H{"error": "Not authorized"})
	case errors.As(err, &validation):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Validation failed",
			"details": validation.Missing,
		})
	case errors.As(err, &conflictBlocked):
		c.JSON(http.StatusConflict, gin.H{"error": conflictBlocked.Error()})
	case errors.Is(err, services.ErrImmutable):
		c.JSON(http.StatusConflict, gin.H{"error": "Record is immutable"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error"})
	}
}
