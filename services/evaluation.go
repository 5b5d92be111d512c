package services

import (
	"errors"
	"fmt"
	"time"

	"call-review-api/models"

	"gorm.io/gorm"
)

// EvaluationService drives the life of one reviewer-proposal pairing:
// assigned -> inProgress -> submitted, with conflict as the other
// terminal state (reached only through the conflict registry). No
// transition ever leaves submitted or conflict.
type EvaluationService struct {
	db       *gorm.DB
	notifier *NotificationService
}

func NewEvaluationService(db *gorm.DB) *EvaluationService {
	return &EvaluationService{db: db, notifier: NewNotificationService(db)}
}

// loadOwnAssignment fetches the assignment and authorizes the reviewer.
// Cancelled assignments are invisible to their former reviewer.
func (s *EvaluationService) loadOwnAssignment(tx *gorm.DB, assignmentID, reviewerID int) (*models.Assignment, error) {
	var assignment models.Assignment
	err := tx.Preload("Review").Preload("Review.Scores").
		Where("assignment_id = ?", assignmentID).
		First(&assignment).Error
	if err != nil {
		return nil, err
	}
	if assignment.ReviewerID != reviewerID || assignment.Status == models.AssignmentStatusCancelled {
		return nil, ErrNotAuthorized
	}
	return &assignment, nil
}

// Open transitions assigned -> inProgress the first time the reviewer
// loads the evaluation. Reopening an inProgress assignment is a no-op;
// terminal assignments refuse the transition.
func (s *EvaluationService) Open(assignmentID, reviewerID int) (*models.Assignment, error) {
	var assignment *models.Assignment
	err := s.db.Transaction(func(tx *gorm.DB) error {
		loaded, err := s.loadOwnAssignment(tx, assignmentID, reviewerID)
		if err != nil {
			return err
		}
		assignment = loaded

		switch assignment.Status {
		case models.AssignmentStatusInProgress, models.AssignmentStatusSubmitted:
			return nil
		case models.AssignmentStatusConflict:
			return NewValidationError("assignment is closed by a conflict declaration")
		}

		now := time.Now()
		if err := tx.Model(&models.Assignment{}).
			Where("assignment_id = ? AND status = ?", assignmentID, models.AssignmentStatusAssigned).
			Updates(map[string]interface{}{
				"status":    models.AssignmentStatusInProgress,
				"update_at": now,
			}).Error; err != nil {
			return err
		}
		assignment.Status = models.AssignmentStatusInProgress

		orgID, err := s.orgForAssignment(tx, assignment)
		if err != nil {
			return err
		}
		return RecordStatusChange(tx, reviewerID, orgID,
			"assignment", assignmentID,
			models.AssignmentStatusAssigned, models.AssignmentStatusInProgress)
	})
	if err != nil {
		return nil, err
	}
	return assignment, nil
}

// ScoreInput is one per-criterion score sent by the reviewer.
type ScoreInput struct {
	CriterionID int     `json:"criterion_id" binding:"required"`
	Score       float64 `json:"score"`
	Comment     *string `json:"comment,omitempty"`
}

// ReviewInput carries a draft save or a submission payload.
type ReviewInput struct {
	Recommendation      *string      `json:"recommendation,omitempty"`
	CommentsToCommittee *string      `json:"comments_to_committee,omitempty"`
	Scores              []ScoreInput `json:"scores"`
}

// SaveDraft upserts the review and replaces its scores while the
// assignment has not been submitted. Prior scores are fully replaced,
// not merged.
func (s *EvaluationService) SaveDraft(assignmentID, reviewerID int, input ReviewInput) (*models.Review, error) {
	var review *models.Review
	err := s.db.Transaction(func(tx *gorm.DB) error {
		assignment, err := s.loadOwnAssignment(tx, assignmentID, reviewerID)
		if err != nil {
			return err
		}
		if assignment.IsTerminal() {
			return ErrImmutable
		}

		criteria, err := s.criteriaForAssignment(tx, assignment)
		if err != nil {
			return err
		}
		if err := validateScoreBounds(criteria, input.Scores); err != nil {
			return err
		}

		review, err = s.upsertReview(tx, assignment, input, nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	return review, nil
}

// Submit finalizes the evaluation. It requires a recommendation and a
// score greater than zero for every criterion of the call; otherwise it
// fails with a ValidationError listing the missing items and writes
// nothing. On success the overall score is computed and stored, the
// assignment becomes submitted and an audit entry is written, all in
// one transaction.
func (s *EvaluationService) Submit(assignmentID, reviewerID int, input ReviewInput) (*models.Review, error) {
	var (
		review    *models.Review
		blindCode string
	)
	err := s.db.Transaction(func(tx *gorm.DB) error {
		assignment, err := s.loadOwnAssignment(tx, assignmentID, reviewerID)
		if err != nil {
			return err
		}
		switch assignment.Status {
		case models.AssignmentStatusSubmitted:
			return ErrImmutable
		case models.AssignmentStatusConflict:
			return NewValidationError("assignment is closed by a conflict declaration")
		}

		criteria, err := s.criteriaForAssignment(tx, assignment)
		if err != nil {
			return err
		}
		if err := validateSubmission(criteria, input); err != nil {
			return err
		}
		if err := validateScoreBounds(criteria, input.Scores); err != nil {
			return err
		}

		scores := make(map[int]float64, len(input.Scores))
		for _, score := range input.Scores {
			scores[score.CriterionID] = score.Score
		}
		overall := ComputeOverallScore(criteria, scores)

		now := time.Now()
		review, err = s.upsertReview(tx, assignment, input, &overall)
		if err != nil {
			return err
		}
		if err := tx.Model(&models.Review{}).
			Where("review_id = ?", review.ReviewID).
			Updates(map[string]interface{}{
				"submitted_at": now,
				"update_at":    now,
			}).Error; err != nil {
			return err
		}
		review.SubmittedAt = &now

		oldStatus := assignment.Status
		if err := tx.Model(&models.Assignment{}).
			Where("assignment_id = ?", assignmentID).
			Updates(map[string]interface{}{
				"status":       models.AssignmentStatusSubmitted,
				"submitted_at": now,
				"update_at":    now,
			}).Error; err != nil {
			return err
		}

		orgID, err := s.orgForAssignment(tx, assignment)
		if err != nil {
			return err
		}
		if err := RecordAudit(tx, reviewerID, orgID,
			"assignment", assignmentID, models.AuditActionReviewSubmitted,
			map[string]interface{}{
				"old_status":    oldStatus,
				"new_status":    models.AssignmentStatusSubmitted,
				"overall_score": overall,
			}); err != nil {
			return err
		}

		if assignment.Proposal != nil && assignment.Proposal.BlindCode != nil {
			blindCode = *assignment.Proposal.BlindCode
		} else {
			var proposal models.Proposal
			if err := tx.Select("blind_code").
				Where("proposal_id = ?", assignment.ProposalID).
				First(&proposal).Error; err == nil && proposal.BlindCode != nil {
				blindCode = *proposal.BlindCode
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifier.NotifySubmitted(reviewerID, blindCode)
	return review, nil
}

// upsertReview creates the review lazily on first save, otherwise
// replaces its scores wholesale.
func (s *EvaluationService) upsertReview(tx *gorm.DB, assignment *models.Assignment, input ReviewInput, overall *float64) (*models.Review, error) {
	now := time.Now()

	review := assignment.Review
	if review == nil {
		review = &models.Review{
			AssignmentID: assignment.AssignmentID,
			CreateAt:     now,
			UpdateAt:     now,
		}
		if err := tx.Create(review).Error; err != nil {
			return nil, err
		}
	}

	updates := map[string]interface{}{
		"update_at": now,
	}
	if input.Recommendation != nil {
		updates["recommendation"] = *input.Recommendation
	}
	if input.CommentsToCommittee != nil {
		updates["comments_to_committee"] = *input.CommentsToCommittee
	}
	if overall != nil {
		updates["overall_score"] = *overall
	}
	if err := tx.Model(&models.Review{}).
		Where("review_id = ?", review.ReviewID).
		Updates(updates).Error; err != nil {
		return nil, err
	}
	if input.Recommendation != nil {
		review.Recommendation = input.Recommendation
	}
	if input.CommentsToCommittee != nil {
		review.CommentsToCommittee = input.CommentsToCommittee
	}
	review.OverallScore = overall

	// Replace, never merge.
	if err := tx.Where("review_id = ?", review.ReviewID).
		Delete(&models.ReviewScore{}).Error; err != nil {
		return nil, err
	}
	review.Scores = review.Scores[:0]
	for _, score := range input.Scores {
		row := models.ReviewScore{
			ReviewID:    review.ReviewID,
			CriterionID: score.CriterionID,
			Score:       score.Score,
			Comment:     score.Comment,
		}
		if err := tx.Create(&row).Error; err != nil {
			return nil, err
		}
		review.Scores = append(review.Scores, row)
	}

	return review, nil
}

func (s *EvaluationService) criteriaForAssignment(tx *gorm.DB, assignment *models.Assignment) ([]models.Criterion, error) {
	var proposal models.Proposal
	if err := tx.Select("call_id").
		Where("proposal_id = ?", assignment.ProposalID).
		First(&proposal).Error; err != nil {
		return nil, err
	}

	var criteria []models.Criterion
	if err := tx.Where("call_id = ? AND delete_at IS NULL", proposal.CallID).
		Order("sort_order ASC").
		Find(&criteria).Error; err != nil {
		return nil, err
	}
	return criteria, nil
}

func (s *EvaluationService) orgForAssignment(tx *gorm.DB, assignment *models.Assignment) (int, error) {
	var row struct{ OrganizationID int }
	err := tx.Model(&models.Proposal{}).
		Select("calls.organization_id AS organization_id").
		Joins("JOIN calls ON calls.call_id = proposals.call_id").
		Where("proposals.proposal_id = ?", assignment.ProposalID).
		Scan(&row).Error
	return row.OrganizationID, err
}

// validateSubmission collects every missing requirement so the reviewer
// sees all of them at once.
func validateSubmission(criteria []models.Criterion, input ReviewInput) error {
	var missing []string

	if input.Recommendation == nil || *input.Recommendation == "" {
		missing = append(missing, "recommendation is required")
	} else {
		switch *input.Recommendation {
		case models.RecommendationApproved,
			models.RecommendationWithReservations,
			models.RecommendationNotApproved:
		default:
			missing = append(missing, fmt.Sprintf("unknown recommendation %q", *input.Recommendation))
		}
	}

	scored := make(map[int]float64, len(input.Scores))
	for _, score := range input.Scores {
		scored[score.CriterionID] = score.Score
	}
	for _, criterion := range criteria {
		value, ok := scored[criterion.CriterionID]
		if !ok || value <= 0 {
			missing = append(missing, fmt.Sprintf("score for criterion %q is required", criterion.Name))
		}
	}

	if len(missing) > 0 {
		return &ValidationError{Missing: missing}
	}
	return nil
}

// validateScoreBounds rejects scores outside 0..maxScore or scores for
// criteria that do not belong to the call.
func validateScoreBounds(criteria []models.Criterion, scores []ScoreInput) error {
	known := make(map[int]models.Criterion, len(criteria))
	for _, criterion := range criteria {
		known[criterion.CriterionID] = criterion
	}

	var violations []string
	for _, score := range scores {
		criterion, ok := known[score.CriterionID]
		if !ok {
			violations = append(violations, fmt.Sprintf("criterion %d does not belong to this call", score.CriterionID))
			continue
		}
		if score.Score < 0 || score.Score > criterion.MaxScore {
			violations = append(violations,
				fmt.Sprintf("score for criterion %q must be between 0 and %g", criterion.Name, criterion.MaxScore))
		}
	}
	if len(violations) > 0 {
		return &ValidationError{Missing: violations}
	}
	return nil
}

// ReviewerWorkload lists a reviewer's active assignments; conflict and
// cancelled rows are excluded from active workload everywhere.
func (s *EvaluationService) ReviewerWorkload(reviewerID int) ([]models.Assignment, error) {
	var assignments []models.Assignment
	err := s.db.Preload("Proposal", func(db *gorm.DB) *gorm.DB {
		return db.Select("proposal_id", "call_id", "blind_code", "knowledge_area", "status")
	}).
		Where("reviewer_id = ? AND status NOT IN ?", reviewerID,
			[]string{models.AssignmentStatusConflict, models.AssignmentStatusCancelled}).
		Order("assigned_at DESC").
		Find(&assignments).Error
	if err != nil {
		return nil, err
	}
	return assignments, nil
}

// IsRecordNotFound is a small helper for controllers translating lookup
// misses into 404s.
func IsRecordNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
