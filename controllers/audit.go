package controllers

import (
	"net/http"
	"strconv"

	"call-review-api/config"
	"call-review-api/models"

	"github.com/gin-gonic/gin"
)

// ListAuditEntries exposes the append-only audit log to org admins.
// There is intentionally no write, update or delete route.
func ListAuditEntries(c *gin.Context) {
	query := config.DB.Model(&models.AuditEntry{}).
		Where("organization_id = ?", currentOrg(c))

	if entity := c.Query("entity"); entity != "" {
		query = query.Where("entity = ?", entity)
		if entityID := c.Query("entity_id"); entityID != "" {
			query = query.Where("entity_id = ?", entityID)
		}
	}
	if action := c.Query("action"); action != "" {
		query = query.Where("action = ?", action)
	}

	limit := 100
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= 1000 {
			limit = parsed
		}
	}

	var entries []models.AuditEntry
	if err := query.Order("audit_id DESC").Limit(limit).Find(&entries).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch audit entries"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "entries": entries, "total": len(entries)})
}
