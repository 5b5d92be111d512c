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

type ProposalRequest struct {
	CallID        int    `json:"call_id" binding:"required"`
	Title         string `json:"title" binding:"required"`
	KnowledgeArea string `json:"knowledge_area" binding:"required"`
}

// CreateProposal starts a draft proposal for the authenticated applicant.
func CreateProposal(c *gin.Context) {
	var req ProposalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var call models.Call
	if err := config.DB.Where("call_id = ? AND delete_at IS NULL", req.CallID).First(&call).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Call not found"})
		return
	}
	if call.Status != models.CallStatusPublished {
		c.JSON(http.StatusConflict, gin.H{"error": "Call is not open for submissions"})
		return
	}

	now := time.Now()
	proposal := models.Proposal{
		CallID:        req.CallID,
		ApplicantID:   userID,
		Title:         req.Title,
		KnowledgeArea: req.KnowledgeArea,
		Status:        models.ProposalStatusDraft,
		CreateAt:      now,
		UpdateAt:      now,
	}

	if err := config.DB.Create(&proposal).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create proposal"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"success": true, "proposal": proposal})
}

// UpdateProposal edits a draft. Submitted proposals can no longer be
// reshaped through this endpoint.
func UpdateProposal(c *gin.Context) {
	proposalID, ok := pathID(c, "id")
	if !ok {
		return
	}
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req struct {
		Title         *string `json:"title"`
		KnowledgeArea *string `json:"knowledge_area"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var proposal models.Proposal
	if err := config.DB.Where("proposal_id = ? AND delete_at IS NULL", proposalID).First(&proposal).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Proposal not found"})
		return
	}
	if proposal.ApplicantID != userID {
		c.JSON(http.StatusForbidden, gin.H{"error": "Not authorized"})
		return
	}
	if proposal.Status != models.ProposalStatusDraft {
		c.JSON(http.StatusConflict, gin.H{"error": "Proposal is no longer a draft"})
		return
	}

	updates := map[string]interface{}{"update_at": time.Now()}
	if req.Title != nil {
		updates["title"] = *req.Title
	}
	if req.KnowledgeArea != nil {
		updates["knowledge_area"] = *req.KnowledgeArea
	}

	if err := config.DB.Model(&models.Proposal{}).
		Where("proposal_id = ?", proposalID).
		Updates(updates).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update proposal"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// SubmitProposal finalizes a draft: the blind code is assigned and the
// status flips to submitted in one transaction.
func SubmitProposal(c *gin.Context) {
	proposalID, ok := pathID(c, "id")
	if !ok {
		return
	}
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	proposal, err := services.NewProposalService(config.DB).Submit(proposalID, userID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "proposal": proposal})
}

// SaveAnswers upserts the applicant's answers keyed by question id.
func SaveAnswers(c *gin.Context) {
	proposalID, ok := pathID(c, "id")
	if !ok {
		return
	}
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req struct {
		Answers map[string]string `json:"answers" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var proposal models.Proposal
	if err := config.DB.Where("proposal_id = ? AND delete_at IS NULL", proposalID).First(&proposal).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Proposal not found"})
		return
	}
	if proposal.ApplicantID != userID {
		c.JSON(http.StatusForbidden, gin.H{"error": "Not authorized"})
		return
	}
	if proposal.Status != models.ProposalStatusDraft {
		c.JSON(http.StatusConflict, gin.H{"error": "Proposal is no longer a draft"})
		return
	}

	now := time.Now()
	err := config.DB.Transaction(func(tx *gorm.DB) error {
		for questionID, value := range req.Answers {
			var existing models.ProposalAnswer
			err := tx.Where("proposal_id = ? AND question_id = ?", proposalID, questionID).
				First(&existing).Error
			if err == gorm.ErrRecordNotFound {
				row := models.ProposalAnswer{
					ProposalID: proposalID,
					QuestionID: questionID,
					Value:      value,
					CreateAt:   now,
					UpdateAt:   now,
				}
				if err := tx.Create(&row).Error; err != nil {
					return err
				}
				continue
			}
			if err != nil {
				return err
			}
			if err := tx.Model(&models.ProposalAnswer{}).
				Where("answer_id = ?", existing.AnswerID).
				Updates(map[string]interface{}{"value": value, "update_at": now}).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save answers"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "total": len(req.Answers)})
}

// GetMyProposals lists the applicant's own proposals.
func GetMyProposals(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var proposals []models.Proposal
	if err := config.DB.Preload("Call").
		Where("applicant_id = ? AND delete_at IS NULL", userID).
		Order("create_at DESC").
		Find(&proposals).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch proposals"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "proposals": proposals, "total": len(proposals)})
}

// GetProposal returns one proposal to its applicant or to staff.
func GetProposal(c *gin.Context) {
	proposalID, ok := pathID(c, "id")
	if !ok {
		return
	}
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	roleID, _ := c.Get("roleID")

	var proposal models.Proposal
	if err := config.DB.Preload("Call").Preload("Answers").
		Where("proposal_id = ? AND delete_at IS NULL", proposalID).
		First(&proposal).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Proposal not found"})
		return
	}

	isStaff := roleID == models.RoleCallManager || roleID == models.RoleOrgAdmin || roleID == models.RolePlatformAdmin
	if proposal.ApplicantID != userID && !isStaff {
		c.JSON(http.StatusForbidden, gin.H{"error": "Not authorized"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "proposal": proposal})
}
