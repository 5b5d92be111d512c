package services

import (
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"call-review-api/models"

	"gorm.io/gorm"
)

// DistributionService computes and persists reviewer-proposal
// assignments, automatically in batch or manually for one proposal. All
// reads it needs (reviewer pool, current assignments, conflict registry)
// happen behind this service; callers receive pre-joined results.
type DistributionService struct {
	db        *gorm.DB
	conflicts *ConflictService
	notifier  *NotificationService
}

func NewDistributionService(db *gorm.DB) *DistributionService {
	return &DistributionService{
		db:        db,
		conflicts: NewConflictService(db),
		notifier:  NewNotificationService(db),
	}
}

// DistributionResult aggregates one automatic distribution run.
type DistributionResult struct {
	CallID             int `json:"call_id"`
	ProposalsProcessed int `json:"proposals_processed"`
	AssignmentsCreated int `json:"assignments_created"`
	FullyCovered       int `json:"fully_covered"`
	StillPending       int `json:"still_pending"`
}

// reviewerCandidate is one entry of the in-memory ranking pool. Load is
// derived fresh from valid assignment rows at batch start and mutated
// locally as the batch assigns, so later proposals see updated loads.
type reviewerCandidate struct {
	UserID        int
	KnowledgeArea string
	Load          int
}

// AutoDistribute assigns reviewers to every proposal of the call whose
// valid assignment count is below the call's minimum. It is idempotent:
// re-running never duplicates an assignment, and an interrupted run is
// safely resumable. Partial progress is never rolled back.
func (s *DistributionService) AutoDistribute(callID, actorID int) (*DistributionResult, error) {
	var call models.Call
	if err := s.db.Where("call_id = ? AND delete_at IS NULL", callID).First(&call).Error; err != nil {
		return nil, err
	}
	if call.Status != models.CallStatusPublished {
		return nil, NewValidationError("call is not published")
	}

	pool, err := s.loadReviewerPool(call.OrganizationID, callID)
	if err != nil {
		return nil, err
	}

	var proposals []models.Proposal
	if err := s.db.Where("call_id = ? AND status IN ? AND delete_at IS NULL",
		callID, []string{models.ProposalStatusSubmitted, models.ProposalStatusUnderReview}).
		Order("proposal_id ASC").
		Find(&proposals).Error; err != nil {
		return nil, err
	}

	result := &DistributionResult{CallID: callID}
	var notifyReviewers []int

	for i := range proposals {
		proposal := &proposals[i]

		assigned, cancelled, err := s.assignmentStateFor(proposal.ProposalID)
		if err != nil {
			return result, err
		}
		validCount := len(assigned)
		if validCount >= call.MinReviewersPerProposal {
			continue
		}
		result.ProposalsProcessed++

		blocked, err := s.conflicts.ConflictedReviewerIDs(nil, proposal.ProposalID, proposal.ApplicantID)
		if err != nil {
			return result, err
		}

		eligible := make([]*reviewerCandidate, 0, len(pool))
		for _, candidate := range pool {
			if candidate.UserID == proposal.ApplicantID {
				continue
			}
			if assigned[candidate.UserID] || blocked[candidate.UserID] {
				continue
			}
			eligible = append(eligible, candidate)
		}

		rankCandidates(eligible, proposal.KnowledgeArea)

		needed := call.MinReviewersPerProposal - validCount
		if needed > len(eligible) {
			needed = len(eligible)
		}
		selected := eligible[:needed]

		added, err := s.persistSelection(&call, proposal, selected, cancelled, actorID)
		if err != nil {
			return result, err
		}

		for _, candidate := range selected {
			candidate.Load++
			notifyReviewers = append(notifyReviewers, candidate.UserID)
		}
		result.AssignmentsCreated += added
		if validCount+added >= call.MinReviewersPerProposal {
			result.FullyCovered++
		} else {
			result.StillPending++
		}
	}

	if err := s.db.Transaction(func(tx *gorm.DB) error {
		return RecordAudit(tx, actorID, call.OrganizationID, "call", callID,
			models.AuditActionAutoDistribution, map[string]interface{}{
				"proposals_processed": result.ProposalsProcessed,
				"assignments_created": result.AssignmentsCreated,
				"fully_covered":       result.FullyCovered,
				"still_pending":       result.StillPending,
			})
	}); err != nil {
		return result, err
	}

	s.notifier.NotifyAssigned(notifyReviewers, call.Title)
	return result, nil
}

// AssignManually inserts an explicit reviewer set for one proposal. The
// whole request is rejected when any selected reviewer is conflicted or
// already assigned; manual assignment is an explicit user request and
// deserves explicit feedback, not silent skipping.
func (s *DistributionService) AssignManually(proposalID int, reviewerIDs []int, actorID int) error {
	if len(reviewerIDs) == 0 {
		return NewValidationError("at least one reviewer is required")
	}

	var proposal models.Proposal
	if err := s.db.Preload("Call").
		Where("proposal_id = ? AND delete_at IS NULL", proposalID).
		First(&proposal).Error; err != nil {
		return err
	}
	if proposal.Status == models.ProposalStatusDraft {
		return NewValidationError("proposal has not been submitted")
	}

	assigned, cancelled, err := s.assignmentStateFor(proposalID)
	if err != nil {
		return err
	}

	var missing []string
	for _, reviewerID := range reviewerIDs {
		if reviewerID == proposal.ApplicantID {
			return NewValidationError(fmt.Sprintf("reviewer %d is the proposal applicant", reviewerID))
		}
		hasConflict, err := s.conflicts.HasConflict(nil, reviewerID, proposalID)
		if err != nil {
			return err
		}
		if hasConflict {
			return &ConflictBlockedError{ReviewerID: reviewerID, ProposalID: proposalID}
		}
		if assigned[reviewerID] {
			missing = append(missing, fmt.Sprintf("reviewer %d is already assigned", reviewerID))
		}
	}
	if len(missing) > 0 {
		return NewValidationError(missing...)
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		for _, reviewerID := range reviewerIDs {
			if err := s.insertAssignment(tx, proposalID, reviewerID, actorID, cancelled); err != nil {
				if errors.Is(err, ErrAlreadySatisfied) {
					log.Printf("[debug] assignment proposal=%d reviewer=%d already satisfied", proposalID, reviewerID)
					continue
				}
				return err
			}
		}

		if err := s.markUnderReview(tx, &proposal, actorID); err != nil {
			return err
		}

		return RecordAudit(tx, actorID, proposal.Call.OrganizationID,
			"proposal", proposalID, models.AuditActionManualAssignment,
			map[string]interface{}{
				"call_id":        proposal.CallID,
				"reviewer_count": len(reviewerIDs),
			})
	})
	if err != nil {
		return err
	}

	s.notifier.NotifyAssigned(reviewerIDs, proposal.Call.Title)
	return nil
}

// CoverageReport summarizes assignment coverage for every non-draft
// proposal of a call.
type CoverageReport struct {
	ProposalID   int     `json:"proposal_id"`
	BlindCode    *string `json:"blind_code,omitempty"`
	Status       string  `json:"status"`
	ValidCount   int     `json:"valid_count"`
	MinReviewers int     `json:"min_reviewers"`
	Deficient    bool    `json:"deficient"`
}

func (s *DistributionService) Coverage(callID int) ([]CoverageReport, error) {
	var call models.Call
	if err := s.db.Where("call_id = ? AND delete_at IS NULL", callID).First(&call).Error; err != nil {
		return nil, err
	}

	var proposals []models.Proposal
	if err := s.db.Where("call_id = ? AND status <> ? AND delete_at IS NULL",
		callID, models.ProposalStatusDraft).
		Order("proposal_id ASC").
		Find(&proposals).Error; err != nil {
		return nil, err
	}

	reports := make([]CoverageReport, 0, len(proposals))
	for _, proposal := range proposals {
		var count int64
		if err := s.db.Model(&models.Assignment{}).
			Where("proposal_id = ? AND status NOT IN ?", proposal.ProposalID,
				[]string{models.AssignmentStatusConflict, models.AssignmentStatusCancelled}).
			Count(&count).Error; err != nil {
			return nil, err
		}
		reports = append(reports, CoverageReport{
			ProposalID:   proposal.ProposalID,
			BlindCode:    proposal.BlindCode,
			Status:       proposal.Status,
			ValidCount:   int(count),
			MinReviewers: call.MinReviewersPerProposal,
			Deficient:    int(count) < call.MinReviewersPerProposal,
		})
	}
	return reports, nil
}

// loadReviewerPool builds the candidate list with loads derived fresh
// from valid assignment rows within the call. The load counter is never
// persisted; it only lives for one batch invocation.
func (s *DistributionService) loadReviewerPool(orgID, callID int) ([]*reviewerCandidate, error) {
	var reviewers []models.User
	if err := s.db.Where("role_id = ? AND organization_id = ? AND is_active = ? AND delete_at IS NULL",
		models.RoleReviewer, orgID, true).
		Order("user_id ASC").
		Find(&reviewers).Error; err != nil {
		return nil, err
	}

	type loadRow struct {
		ReviewerID int
		N          int
	}
	var rows []loadRow
	if err := s.db.Model(&models.Assignment{}).
		Select("assignments.reviewer_id AS reviewer_id, COUNT(*) AS n").
		Joins("JOIN proposals ON proposals.proposal_id = assignments.proposal_id").
		Where("proposals.call_id = ? AND assignments.status NOT IN ?", callID,
			[]string{models.AssignmentStatusConflict, models.AssignmentStatusCancelled}).
		Group("assignments.reviewer_id").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	loads := make(map[int]int, len(rows))
	for _, row := range rows {
		loads[row.ReviewerID] = row.N
	}

	pool := make([]*reviewerCandidate, 0, len(reviewers))
	for _, reviewer := range reviewers {
		area := ""
		if reviewer.KnowledgeArea != nil {
			area = *reviewer.KnowledgeArea
		}
		pool = append(pool, &reviewerCandidate{
			UserID:        reviewer.UserID,
			KnowledgeArea: area,
			Load:          loads[reviewer.UserID],
		})
	}
	return pool, nil
}

// assignmentStateFor returns the valid-assignment reviewer set and the
// cancelled-row ids keyed by reviewer for one proposal.
func (s *DistributionService) assignmentStateFor(proposalID int) (map[int]bool, map[int]int, error) {
	var rows []models.Assignment
	if err := s.db.Where("proposal_id = ?", proposalID).Find(&rows).Error; err != nil {
		return nil, nil, err
	}

	assigned := make(map[int]bool)
	cancelled := make(map[int]int)
	for _, row := range rows {
		switch row.Status {
		case models.AssignmentStatusCancelled:
			cancelled[row.ReviewerID] = row.AssignmentID
		case models.AssignmentStatusConflict:
			// Conflicted rows neither count as valid nor may be reused.
		default:
			assigned[row.ReviewerID] = true
		}
	}
	return assigned, cancelled, nil
}

// persistSelection writes the chosen reviewers for one proposal inside
// a single transaction, together with the proposal's transition to
// underReview. A duplicate-key race with a concurrent run is benign and
// never fails the batch.
func (s *DistributionService) persistSelection(call *models.Call, proposal *models.Proposal, selected []*reviewerCandidate, cancelled map[int]int, actorID int) (int, error) {
	if len(selected) == 0 {
		return 0, nil
	}

	added := 0
	err := s.db.Transaction(func(tx *gorm.DB) error {
		for _, candidate := range selected {
			if err := s.insertAssignment(tx, proposal.ProposalID, candidate.UserID, actorID, cancelled); err != nil {
				if errors.Is(err, ErrAlreadySatisfied) {
					log.Printf("[debug] assignment proposal=%d reviewer=%d already satisfied", proposal.ProposalID, candidate.UserID)
					continue
				}
				return err
			}
			added++
		}

		if added == 0 {
			return nil
		}
		return s.markUnderReview(tx, proposal, actorID)
	})
	if err != nil {
		return 0, err
	}
	return added, nil
}

// insertAssignment creates one assigned row, reactivating a cancelled
// row for the same pair when present so the (proposal, reviewer) unique
// index always holds.
func (s *DistributionService) insertAssignment(tx *gorm.DB, proposalID, reviewerID, actorID int, cancelled map[int]int) error {
	now := time.Now()

	if id, ok := cancelled[reviewerID]; ok {
		res := tx.Model(&models.Assignment{}).
			Where("assignment_id = ? AND status = ?", id, models.AssignmentStatusCancelled).
			Updates(map[string]interface{}{
				"status":      models.AssignmentStatusAssigned,
				"assigned_by": actorID,
				"assigned_at": now,
				"update_at":   now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrAlreadySatisfied
		}
		delete(cancelled, reviewerID)
		return nil
	}

	assignment := models.Assignment{
		ProposalID: proposalID,
		ReviewerID: reviewerID,
		AssignedBy: actorID,
		Status:     models.AssignmentStatusAssigned,
		AssignedAt: now,
		CreateAt:   now,
		UpdateAt:   now,
	}
	if err := tx.Create(&assignment).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrAlreadySatisfied
		}
		return err
	}
	return nil
}

// markUnderReview transitions a submitted proposal to underReview with
// an audit entry. Already underReview is a no-op.
func (s *DistributionService) markUnderReview(tx *gorm.DB, proposal *models.Proposal, actorID int) error {
	if proposal.Status != models.ProposalStatusSubmitted {
		return nil
	}

	if err := tx.Model(&models.Proposal{}).
		Where("proposal_id = ?", proposal.ProposalID).
		Updates(map[string]interface{}{
			"status":    models.ProposalStatusUnderReview,
			"update_at": time.Now(),
		}).Error; err != nil {
		return err
	}

	var call models.Call
	if err := tx.Select("organization_id").
		Where("call_id = ?", proposal.CallID).
		First(&call).Error; err != nil {
		return err
	}
	if err := RecordStatusChange(tx, actorID, call.OrganizationID,
		"proposal", proposal.ProposalID,
		models.ProposalStatusSubmitted, models.ProposalStatusUnderReview); err != nil {
		return err
	}

	proposal.Status = models.ProposalStatusUnderReview
	return nil
}

// rankCandidates orders the eligible pool: knowledge-area matches
// first, then ascending load, then user id for a stable order.
func rankCandidates(candidates []*reviewerCandidate, proposalArea string) {
	sort.SliceStable(candidates, func(i, j int) bool {
		mi := areaMatches(candidates[i].KnowledgeArea, proposalArea)
		mj := areaMatches(candidates[j].KnowledgeArea, proposalArea)
		if mi != mj {
			return mi
		}
		if candidates[i].Load != candidates[j].Load {
			return candidates[i].Load < candidates[j].Load
		}
		return candidates[i].UserID < candidates[j].UserID
	})
}

// areaMatches is a deliberate heuristic: free-text area names are
// tokenized and compared by equality or prefix overlap. It is not a
// semantic or taxonomy comparison.
func areaMatches(reviewerArea, proposalArea string) bool {
	reviewerTokens := areaTokens(reviewerArea)
	proposalTokens := areaTokens(proposalArea)
	if len(reviewerTokens) == 0 || len(proposalTokens) == 0 {
		return false
	}

	for _, rt := range reviewerTokens {
		for _, pt := range proposalTokens {
			if rt == pt {
				return true
			}
			if len(rt) >= 4 && len(pt) >= 4 &&
				(strings.HasPrefix(rt, pt) || strings.HasPrefix(pt, rt)) {
				return true
			}
		}
	}
	return false
}

func areaTokens(area string) []string {
	fields := strings.FieldsFunc(strings.ToLower(area), func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9')
	})
	tokens := make([]string, 0, len(fields))
	for _, field := range fields {
		if len(field) < 3 {
			continue
		}
		tokens = append(tokens, field)
	}
	return tokens
}
