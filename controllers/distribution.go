package controllers

import (
	"net/http"

	"call-review-api/config"
	"call-review-api/services"

	"github.com/gin-gonic/gin"
)

// AutoDistribute runs the batch distribution for one call. Safe to
// re-run; the engine never double-assigns.
func AutoDistribute(c *gin.Context) {
	callID, ok := pathID(c, "id")
	if !ok {
		return
	}
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	result, err := services.NewDistributionService(config.DB).AutoDistribute(callID, userID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "result": result})
}

// AssignReviewers assigns an explicit reviewer set to one proposal. The
// whole request is rejected when any selected reviewer is conflicted.
func AssignReviewers(c *gin.Context) {
	proposalID, ok := pathID(c, "id")
	if !ok {
		return
	}
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req struct {
		ReviewerIDs []int `json:"reviewer_ids" binding:"required,min=1"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := services.NewDistributionService(config.DB).
		AssignManually(proposalID, req.ReviewerIDs, userID); err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "assigned": len(req.ReviewerIDs)})
}

// GetCoverage reports per-proposal assignment coverage for a call.
func GetCoverage(c *gin.Context) {
	callID, ok := pathID(c, "id")
	if !ok {
		return
	}

	reports, err := services.NewDistributionService(config.DB).Coverage(callID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "coverage": reports, "total": len(reports)})
}
