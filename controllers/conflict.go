package controllers

import (
	"net/http"

	"call-review-api/config"
	"call-review-api/models"
	"call-review-api/services"
	"call-review-api/utils"

	"github.com/gin-gonic/gin"
)

// RecordConflict lets staff register a conflict between a reviewer and
// a proposal or an applicant.
func RecordConflict(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req struct {
		ReviewerID  int    `json:"reviewer_id" binding:"required"`
		ProposalID  *int   `json:"proposal_id"`
		ApplicantID *int   `json:"applicant_id"`
		Reason      string `json:"reason" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	record, err := services.NewConflictService(config.DB).Declare(services.DeclareInput{
		ReviewerID:  req.ReviewerID,
		ProposalID:  req.ProposalID,
		ApplicantID: req.ApplicantID,
		Reason:      utils.SanitizeInput(req.Reason),
		Source:      models.ConflictSourceStaff,
		DeclaredBy:  userID,
		OrgID:       currentOrg(c),
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"success": true, "conflict": record})
}

// ListConflicts returns conflict records, optionally filtered by
// reviewer or proposal.
func ListConflicts(c *gin.Context) {
	query := config.DB.Model(&models.ConflictRecord{})

	if reviewerID := c.Query("reviewer_id"); reviewerID != "" {
		query = query.Where("reviewer_id = ?", reviewerID)
	}
	if proposalID := c.Query("proposal_id"); proposalID != "" {
		query = query.Where("proposal_id = ?", proposalID)
	}

	var records []models.ConflictRecord
	if err := query.Order("create_at DESC").Find(&records).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch conflicts"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "conflicts": records, "total": len(records)})
}
