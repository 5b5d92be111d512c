package controllers

import (
	"net/http"

	"call-review-api/config"
	"call-review-api/models"
	"call-review-api/services"
	"call-review-api/utils"

	"github.com/gin-gonic/gin"
)

// GetMyAssignments lists the reviewer's active workload. Conflict and
// cancelled assignments never appear here.
func GetMyAssignments(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	assignments, err := services.NewEvaluationService(config.DB).ReviewerWorkload(userID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "assignments": assignments, "total": len(assignments)})
}

// GetAssignment opens the evaluation (assigned -> inProgress on first
// load) and returns the anonymized projection of the proposal.
func GetAssignment(c *gin.Context) {
	assignmentID, ok := pathID(c, "id")
	if !ok {
		return
	}
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	assignment, err := services.NewEvaluationService(config.DB).Open(assignmentID, userID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	projection, err := services.NewAnonymizationService(config.DB).Project(assignmentID, userID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"assignment": gin.H{"status": assignment.Status, "review": assignment.Review},
		"proposal":   projection,
	})
}

// SaveReviewDraft stores a partial evaluation.
func SaveReviewDraft(c *gin.Context) {
	assignmentID, ok := pathID(c, "id")
	if !ok {
		return
	}
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var input services.ReviewInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	review, err := services.NewEvaluationService(config.DB).SaveDraft(assignmentID, userID, input)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "review": review})
}

// SubmitReview finalizes the evaluation: full score validation, overall
// score computation and the terminal transition to submitted.
func SubmitReview(c *gin.Context) {
	assignmentID, ok := pathID(c, "id")
	if !ok {
		return
	}
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var input services.ReviewInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	review, err := services.NewEvaluationService(config.DB).Submit(assignmentID, userID, input)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "review": review})
}

// DeclareOwnConflict lets a reviewer withdraw from an assignment by
// declaring a conflict of interest.
func DeclareOwnConflict(c *gin.Context) {
	assignmentID, ok := pathID(c, "id")
	if !ok {
		return
	}
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req struct {
		Reason string `json:"reason" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var assignment models.Assignment
	if err := config.DB.Where("assignment_id = ?", assignmentID).First(&assignment).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Assignment not found"})
		return
	}
	if assignment.ReviewerID != userID {
		c.JSON(http.StatusForbidden, gin.H{"error": "Not authorized"})
		return
	}
	if assignment.IsTerminal() {
		c.JSON(http.StatusConflict, gin.H{"error": "Assignment is already closed"})
		return
	}

	record, err := services.NewConflictService(config.DB).Declare(services.DeclareInput{
		ReviewerID: userID,
		ProposalID: &assignment.ProposalID,
		Reason:     utils.SanitizeInput(req.Reason),
		Source:     models.ConflictSourceSelf,
		DeclaredBy: userID,
		OrgID:      currentOrg(c),
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "conflict": record})
}
