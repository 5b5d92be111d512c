package services

import (
	"time"

	"call-review-api/models"

	"gorm.io/gorm"
)

// ConflictService owns the conflict registry: declared and
// staff-recorded conflicts between reviewers and proposals/applicants.
type ConflictService struct {
	db *gorm.DB
}

func NewConflictService(db *gorm.DB) *ConflictService {
	return &ConflictService{db: db}
}

// HasConflict reports whether a conflict record blocks the reviewer
// from the proposal, either directly or through the proposal's
// applicant. Checked at assignment time, not only at declaration time.
func (s *ConflictService) HasConflict(tx *gorm.DB, reviewerID, proposalID int) (bool, error) {
	if tx == nil {
		tx = s.db
	}

	var proposal models.Proposal
	if err := tx.Select("proposal_id", "applicant_id").
		Where("proposal_id = ?", proposalID).
		First(&proposal).Error; err != nil {
		return false, err
	}

	var count int64
	err := tx.Model(&models.ConflictRecord{}).
		Where("reviewer_id = ? AND (proposal_id = ? OR applicant_id = ?)",
			reviewerID, proposalID, proposal.ApplicantID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// ConflictedReviewerIDs returns the set of reviewers blocked from the
// proposal, for building eligibility pools in one query instead of one
// HasConflict call per candidate.
func (s *ConflictService) ConflictedReviewerIDs(tx *gorm.DB, proposalID, applicantID int) (map[int]bool, error) {
	if tx == nil {
		tx = s.db
	}

	var ids []int
	err := tx.Model(&models.ConflictRecord{}).
		Where("proposal_id = ? OR applicant_id = ?", proposalID, applicantID).
		Pluck("reviewer_id", &ids).Error
	if err != nil {
		return nil, err
	}

	blocked := make(map[int]bool, len(ids))
	for _, id := range ids {
		blocked[id] = true
	}
	return blocked, nil
}

// DeclareInput describes one conflict declaration. Exactly one of
// ProposalID / ApplicantID is normally set; a declaration against a
// proposal also blocks through that proposal forever.
type DeclareInput struct {
	ReviewerID  int
	ProposalID  *int
	ApplicantID *int
	Reason      string
	Source      string
	DeclaredBy  int
	OrgID       int
}

// Declare records a conflict. When the reviewer holds an active
// assignment for the proposal, the declaration is a compound operation:
// the record insert, the assignment transition to conflict and the
// audit entry all commit or none do.
func (s *ConflictService) Declare(in DeclareInput) (*models.ConflictRecord, error) {
	if in.Reason == "" {
		return nil, NewValidationError("conflict reason is required")
	}
	if in.ProposalID == nil && in.ApplicantID == nil {
		return nil, NewValidationError("conflict target (proposal or applicant) is required")
	}
	if in.Source == "" {
		in.Source = models.ConflictSourceSelf
	}

	record := models.ConflictRecord{
		ReviewerID:  in.ReviewerID,
		ProposalID:  in.ProposalID,
		ApplicantID: in.ApplicantID,
		Reason:      in.Reason,
		Source:      in.Source,
		DeclaredBy:  in.DeclaredBy,
		CreateAt:    time.Now(),
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&record).Error; err != nil {
			return err
		}

		// Existing active assignments the record now blocks become
		// conflict-status; they are never silently deleted. An
		// applicant-level record covers every proposal of that
		// applicant, mirroring HasConflict.
		query := tx.Model(&models.Assignment{}).
			Select("assignments.*").
			Joins("JOIN proposals ON proposals.proposal_id = assignments.proposal_id").
			Where("assignments.reviewer_id = ? AND assignments.status IN ?",
				in.ReviewerID,
				[]string{models.AssignmentStatusAssigned, models.AssignmentStatusInProgress})
		switch {
		case in.ProposalID != nil && in.ApplicantID != nil:
			query = query.Where("assignments.proposal_id = ? OR proposals.applicant_id = ?",
				*in.ProposalID, *in.ApplicantID)
		case in.ProposalID != nil:
			query = query.Where("assignments.proposal_id = ?", *in.ProposalID)
		default:
			query = query.Where("proposals.applicant_id = ?", *in.ApplicantID)
		}

		var assignments []models.Assignment
		if err := query.Find(&assignments).Error; err != nil {
			return err
		}

		now := time.Now()
		for _, assignment := range assignments {
			oldStatus := assignment.Status
			if err := tx.Model(&models.Assignment{}).
				Where("assignment_id = ?", assignment.AssignmentID).
				Updates(map[string]interface{}{
					"status":            models.AssignmentStatusConflict,
					"conflict_declared": true,
					"conflict_reason":   in.Reason,
					"update_at":         now,
				}).Error; err != nil {
				return err
			}

			if err := RecordAudit(tx, in.DeclaredBy, in.OrgID,
				"assignment", assignment.AssignmentID,
				models.AuditActionConflictDeclared, map[string]interface{}{
					"old_status":  oldStatus,
					"new_status":  models.AssignmentStatusConflict,
					"reviewer_id": in.ReviewerID,
					"reason":      in.Reason,
				}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &record, nil
}
