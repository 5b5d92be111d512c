package services

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"call-review-api/models"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestDB opens a file-backed SQLite database in a per-test temp dir
// and migrates the full schema. TranslateError is on, matching the
// production configuration the duplicate-key handling relies on.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	err = db.AutoMigrate(
		&models.User{},
		&models.Role{},
		&models.Call{},
		&models.Criterion{},
		&models.Proposal{},
		&models.ProposalAnswer{},
		&models.FormSnapshot{},
		&models.Assignment{},
		&models.Review{},
		&models.ReviewScore{},
		&models.ConflictRecord{},
		&models.AuditEntry{},
		&models.FileUpload{},
		&models.Notification{},
	)
	if err != nil {
		t.Fatalf("failed to migrate schema: %v", err)
	}
	return db
}

func seedCall(t *testing.T, db *gorm.DB, minReviewers int) *models.Call {
	t.Helper()

	prefix := "ED2026"
	call := &models.Call{
		OrganizationID:          1,
		CreatedBy:               1,
		Title:                   "Edital de Fomento 2026",
		Status:                  models.CallStatusPublished,
		MinReviewersPerProposal: minReviewers,
		BlindReviewEnabled:      true,
		BlindCodeStrategy:       models.BlindCodeSequential,
		BlindCodePrefix:         &prefix,
		CreateAt:                time.Now(),
		UpdateAt:                time.Now(),
	}
	if err := db.Create(call).Error; err != nil {
		t.Fatalf("failed to seed call: %v", err)
	}
	return call
}

func seedCriterion(t *testing.T, db *gorm.DB, callID int, name string, maxScore, weight float64) *models.Criterion {
	t.Helper()

	criterion := &models.Criterion{
		CallID:   callID,
		Name:     name,
		MaxScore: maxScore,
		Weight:   weight,
		CreateAt: time.Now(),
		UpdateAt: time.Now(),
	}
	if err := db.Create(criterion).Error; err != nil {
		t.Fatalf("failed to seed criterion: %v", err)
	}
	return criterion
}

func seedUser(t *testing.T, db *gorm.DB, roleID int, area string) *models.User {
	t.Helper()

	user := &models.User{
		UserFname:      "Test",
		UserLname:      "User",
		Email:          randomEmail(t),
		RoleID:         roleID,
		OrganizationID: 1,
		IsActive:       true,
	}
	if area != "" {
		user.KnowledgeArea = &area
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to seed user: %v", err)
	}
	return user
}

var (
	emailCounter     int
	blindCodeCounter int
)

func randomEmail(t *testing.T) string {
	t.Helper()
	emailCounter++
	return fmt.Sprintf("user%d@example.org", emailCounter)
}

func seedProposal(t *testing.T, db *gorm.DB, callID, applicantID int, area, status string) *models.Proposal {
	t.Helper()

	proposal := &models.Proposal{
		CallID:        callID,
		ApplicantID:   applicantID,
		Title:         "Projeto de Pesquisa",
		KnowledgeArea: area,
		Status:        status,
		CreateAt:      time.Now(),
		UpdateAt:      time.Now(),
	}
	if status != models.ProposalStatusDraft {
		blindCodeCounter++
		code := fmt.Sprintf("ED2026-%03d", blindCodeCounter)
		proposal.BlindCode = &code
		now := time.Now()
		proposal.SubmittedAt = &now
	}
	if err := db.Create(proposal).Error; err != nil {
		t.Fatalf("failed to seed proposal: %v", err)
	}
	return proposal
}

func seedAssignment(t *testing.T, db *gorm.DB, proposalID, reviewerID int, status string) *models.Assignment {
	t.Helper()

	assignment := &models.Assignment{
		ProposalID: proposalID,
		ReviewerID: reviewerID,
		AssignedBy: 1,
		Status:     status,
		AssignedAt: time.Now(),
		CreateAt:   time.Now(),
		UpdateAt:   time.Now(),
	}
	if err := db.Create(assignment).Error; err != nil {
		t.Fatalf("failed to seed assignment: %v", err)
	}
	return assignment
}

func countValidAssignments(t *testing.T, db *gorm.DB, proposalID int) int {
	t.Helper()

	var count int64
	err := db.Model(&models.Assignment{}).
		Where("proposal_id = ? AND status NOT IN ?", proposalID,
			[]string{models.AssignmentStatusConflict, models.AssignmentStatusCancelled}).
		Count(&count).Error
	if err != nil {
		t.Fatalf("failed to count assignments: %v", err)
	}
	return int(count)
}
