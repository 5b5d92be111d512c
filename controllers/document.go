package controllers

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"call-review-api/config"
	"call-review-api/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const maxUploadSize = 20 << 20 // 20 MB

// UploadProposalDocument stores one attachment for a draft proposal.
// The stored name is a uuid so nothing applicant-identifying leaks via
// the filesystem; the anonymizer later renames references per blind code.
func UploadProposalDocument(c *gin.Context) {
	proposalID, ok := pathID(c, "id")
	if !ok {
		return
	}
	userID, ok := currentUser(c)
	if !ok {
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

	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "File is required"})
		return
	}
	if file.Size > maxUploadSize {
		c.JSON(http.StatusBadRequest, gin.H{"error": "File exceeds the 20MB limit"})
		return
	}

	mimeType := file.Header.Get("Content-Type")
	upload := models.FileUpload{
		ProposalID:   proposalID,
		OriginalName: file.Filename,
		MimeType:     mimeType,
		FileSize:     file.Size,
		UploadedBy:   userID,
	}
	if !upload.IsValidDocumentType() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unsupported file type"})
		return
	}

	uploadPath := os.Getenv("UPLOAD_PATH")
	if uploadPath == "" {
		uploadPath = "./uploads"
	}
	ext := strings.ToLower(filepath.Ext(file.Filename))
	storedName := uuid.New().String() + ext
	fullPath := filepath.Join(uploadPath, storedName)

	if err := c.SaveUploadedFile(file, fullPath); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store file"})
		return
	}

	now := time.Now()
	upload.StoredName = storedName
	upload.StoredPath = fullPath
	upload.UploadedAt = now
	upload.CreateAt = now

	if err := config.DB.Create(&upload).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to record file"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"success": true, "file": upload})
}

// GetProposalDocuments lists the attachment metadata of a proposal for
// its applicant.
func GetProposalDocuments(c *gin.Context) {
	proposalID, ok := pathID(c, "id")
	if !ok {
		return
	}
	userID, ok := currentUser(c)
	if !ok {
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

	var files []models.FileUpload
	if err := config.DB.Where("proposal_id = ? AND delete_at IS NULL", proposalID).
		Order("uploaded_at ASC").
		Find(&files).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch files"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "files": files, "total": len(files)})
}
