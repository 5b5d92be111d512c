package controllers

import (
	"net/http"
	"time"

	"call-review-api/config"
	"call-review-api/models"
	"call-review-api/services"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type CallRequest struct {
	Title                   string     `json:"title" binding:"required"`
	Description             *string    `json:"description"`
	MinReviewersPerProposal int        `json:"min_reviewers_per_proposal" binding:"required,min=1"`
	ReviewDeadline          *time.Time `json:"review_deadline"`
	BlindReviewEnabled      *bool      `json:"blind_review_enabled"`
	BlindCodeStrategy       string     `json:"blind_code_strategy"`
	BlindCodePrefix         *string    `json:"blind_code_prefix"`
}

// CreateCall creates a draft call for the manager's organization.
func CreateCall(c *gin.Context) {
	var req CallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID, ok := currentUser(c)
	if !ok {
		return
	}

	strategy := req.BlindCodeStrategy
	if strategy == "" {
		strategy = models.BlindCodeSequential
	}
	if strategy != models.BlindCodeSequential && strategy != models.BlindCodeRandomShort {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid blind code strategy"})
		return
	}

	blindEnabled := true
	if req.BlindReviewEnabled != nil {
		blindEnabled = *req.BlindReviewEnabled
	}

	now := time.Now()
	call := models.Call{
		OrganizationID:          currentOrg(c),
		CreatedBy:               userID,
		Title:                   req.Title,
		Description:             req.Description,
		Status:                  models.CallStatusDraft,
		MinReviewersPerProposal: req.MinReviewersPerProposal,
		ReviewDeadline:          req.ReviewDeadline,
		BlindReviewEnabled:      blindEnabled,
		BlindCodeStrategy:       strategy,
		BlindCodePrefix:         req.BlindCodePrefix,
		CreateAt:                now,
		UpdateAt:                now,
	}

	if err := config.DB.Create(&call).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create call"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"success": true, "call": call})
}

// GetCalls lists the organization's calls. Applicants only see
// published ones.
func GetCalls(c *gin.Context) {
	roleID, _ := c.Get("roleID")

	query := config.DB.Preload("Criteria").
		Where("organization_id = ? AND delete_at IS NULL", currentOrg(c))
	if roleID == models.RoleApplicant || roleID == models.RoleReviewer {
		query = query.Where("status = ?", models.CallStatusPublished)
	}

	var calls []models.Call
	if err := query.Order("create_at DESC").Find(&calls).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch calls"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "calls": calls, "total": len(calls)})
}

// GetCall returns one call with its criteria.
func GetCall(c *gin.Context) {
	callID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var call models.Call
	if err := config.DB.Preload("Criteria", func(db *gorm.DB) *gorm.DB {
		return db.Where("delete_at IS NULL").Order("sort_order ASC")
	}).Where("call_id = ? AND delete_at IS NULL", callID).First(&call).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Call not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "call": call})
}

// PublishCall transitions draft -> published.
func PublishCall(c *gin.Context) {
	transitionCall(c, models.CallStatusDraft, models.CallStatusPublished)
}

// CloseCall transitions published -> closed. Closed calls are immutable
// except by administrative override, which is not exposed here.
func CloseCall(c *gin.Context) {
	transitionCall(c, models.CallStatusPublished, models.CallStatusClosed)
}

func transitionCall(c *gin.Context, from, to string) {
	callID, ok := pathID(c, "id")
	if !ok {
		return
	}
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var call models.Call
	if err := config.DB.Where("call_id = ? AND delete_at IS NULL", callID).First(&call).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Call not found"})
		return
	}
	if call.Status != from {
		c.JSON(http.StatusConflict, gin.H{"error": "Call is not in status " + from})
		return
	}

	err := config.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Call{}).
			Where("call_id = ?", callID).
			Updates(map[string]interface{}{"status": to, "update_at": time.Now()}).Error; err != nil {
			return err
		}
		return services.RecordStatusChange(tx, userID, call.OrganizationID, "call", callID, from, to)
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update call"})
		return
	}

	call.Status = to
	c.JSON(http.StatusOK, gin.H{"success": true, "call": call})
}

type CriterionRequest struct {
	Name      string  `json:"name" binding:"required"`
	MaxScore  float64 `json:"max_score" binding:"required,gt=0"`
	Weight    float64 `json:"weight" binding:"required"`
	SortOrder int     `json:"sort_order"`
}

// SetCriteria replaces the rubric of a draft call.
func SetCriteria(c *gin.Context) {
	callID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req struct {
		Criteria []CriterionRequest `json:"criteria" binding:"required,min=1"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	for _, criterion := range req.Criteria {
		if criterion.Weight <= 0 {
			respondServiceError(c, services.NewValidationError("criterion weight must be greater than zero"))
			return
		}
	}

	var call models.Call
	if err := config.DB.Where("call_id = ? AND delete_at IS NULL", callID).First(&call).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Call not found"})
		return
	}
	if call.Status != models.CallStatusDraft {
		c.JSON(http.StatusConflict, gin.H{"error": "Criteria can only be changed while the call is a draft"})
		return
	}

	now := time.Now()
	err := config.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Criterion{}).
			Where("call_id = ? AND delete_at IS NULL", callID).
			Update("delete_at", now).Error; err != nil {
			return err
		}
		for i, criterion := range req.Criteria {
			sortOrder := criterion.SortOrder
			if sortOrder == 0 {
				sortOrder = i + 1
			}
			row := models.Criterion{
				CallID:    callID,
				Name:      criterion.Name,
				MaxScore:  criterion.MaxScore,
				Weight:    criterion.Weight,
				SortOrder: sortOrder,
				CreateAt:  now,
				UpdateAt:  now,
			}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save criteria"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "total": len(req.Criteria)})
}
