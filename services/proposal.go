package services

import (
	"time"

	"call-review-api/models"

	"gorm.io/gorm"
)

// ProposalService owns the proposal lifecycle up to the hand-off to the
// distribution engine.
type ProposalService struct {
	db *gorm.DB
}

func NewProposalService(db *gorm.DB) *ProposalService {
	return &ProposalService{db: db}
}

// Submit moves a draft proposal to submitted and assigns its blind code
// in the same transaction, so the code and the status change are
// atomic. Submitting a non-draft proposal is rejected; the blind code
// is never reassigned.
func (s *ProposalService) Submit(proposalID, actorID int) (*models.Proposal, error) {
	var proposal models.Proposal
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("proposal_id = ? AND delete_at IS NULL", proposalID).
			First(&proposal).Error; err != nil {
			return err
		}
		if proposal.ApplicantID != actorID {
			return ErrNotAuthorized
		}
		if proposal.Status != models.ProposalStatusDraft {
			return NewValidationError("proposal has already been submitted")
		}

		var call models.Call
		if err := tx.Where("call_id = ? AND delete_at IS NULL", proposal.CallID).
			First(&call).Error; err != nil {
			return err
		}
		if call.Status != models.CallStatusPublished {
			return NewValidationError("call is not open for submissions")
		}

		if err := AssignBlindCode(tx, &call, &proposal); err != nil {
			return err
		}

		now := time.Now()
		if err := tx.Model(&models.Proposal{}).
			Where("proposal_id = ?", proposalID).
			Updates(map[string]interface{}{
				"status":       models.ProposalStatusSubmitted,
				"blind_code":   proposal.BlindCode,
				"submitted_at": now,
				"update_at":    now,
			}).Error; err != nil {
			return err
		}
		proposal.Status = models.ProposalStatusSubmitted
		proposal.SubmittedAt = &now

		return RecordStatusChange(tx, actorID, call.OrganizationID,
			"proposal", proposalID,
			models.ProposalStatusDraft, models.ProposalStatusSubmitted)
	})
	if err != nil {
		return nil, err
	}
	return &proposal, nil
}
