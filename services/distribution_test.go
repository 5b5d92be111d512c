package services

import (
	"errors"
	"testing"

	"call-review-api/models"
)

func TestAutoDistributePrefersAreaMatchThenLoad(t *testing.T) {
	db := newTestDB(t)
	call := seedCall(t, db, 3)
	applicant := seedUser(t, db, models.RoleApplicant, "")
	manager := seedUser(t, db, models.RoleCallManager, "")

	// Two area-matched reviewers with no load, three unmatched with one
	// valid assignment each.
	matched1 := seedUser(t, db, models.RoleReviewer, "Computer Science")
	matched2 := seedUser(t, db, models.RoleReviewer, "computer engineering")
	unmatched1 := seedUser(t, db, models.RoleReviewer, "History")
	unmatched2 := seedUser(t, db, models.RoleReviewer, "Law")
	unmatched3 := seedUser(t, db, models.RoleReviewer, "Medicine")

	other := seedProposal(t, db, call.CallID, applicant.UserID, "History", models.ProposalStatusUnderReview)
	seedAssignment(t, db, other.ProposalID, unmatched1.UserID, models.AssignmentStatusAssigned)
	seedAssignment(t, db, other.ProposalID, unmatched2.UserID, models.AssignmentStatusAssigned)
	seedAssignment(t, db, other.ProposalID, unmatched3.UserID, models.AssignmentStatusAssigned)

	// Proposal A already holds one valid assignment from a sixth reviewer.
	existing := seedUser(t, db, models.RoleReviewer, "Arts")
	proposalA := seedProposal(t, db, call.CallID, applicant.UserID, "Computer Science", models.ProposalStatusSubmitted)
	seedAssignment(t, db, proposalA.ProposalID, existing.UserID, models.AssignmentStatusAssigned)

	result, err := NewDistributionService(db).AutoDistribute(call.CallID, manager.UserID)
	if err != nil {
		t.Fatalf("auto distribution failed: %v", err)
	}
	if result.AssignmentsCreated != 2 {
		t.Fatalf("expected 2 new assignments for proposal A, got %d", result.AssignmentsCreated)
	}

	var rows []models.Assignment
	if err := db.Where("proposal_id = ?", proposalA.ProposalID).Find(&rows).Error; err != nil {
		t.Fatalf("failed to load assignments: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 valid assignments on proposal A, got %d", len(rows))
	}
	assigned := map[int]bool{}
	for _, row := range rows {
		assigned[row.ReviewerID] = true
	}
	if !assigned[matched1.UserID] || !assigned[matched2.UserID] {
		t.Fatalf("expected both area-matched reviewers to be selected, got %v", assigned)
	}

	var reloaded models.Proposal
	if err := db.First(&reloaded, proposalA.ProposalID).Error; err != nil {
		t.Fatalf("failed to reload proposal: %v", err)
	}
	if reloaded.Status != models.ProposalStatusUnderReview {
		t.Fatalf("expected proposal A to move to underReview, got %s", reloaded.Status)
	}
}

func TestAutoDistributeIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	call := seedCall(t, db, 2)
	applicant := seedUser(t, db, models.RoleApplicant, "")
	manager := seedUser(t, db, models.RoleCallManager, "")
	seedUser(t, db, models.RoleReviewer, "biology")
	seedUser(t, db, models.RoleReviewer, "chemistry")
	proposal := seedProposal(t, db, call.CallID, applicant.UserID, "biology", models.ProposalStatusSubmitted)

	engine := NewDistributionService(db)
	first, err := engine.AutoDistribute(call.CallID, manager.UserID)
	if err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	if first.AssignmentsCreated != 2 {
		t.Fatalf("expected 2 assignments, got %d", first.AssignmentsCreated)
	}

	second, err := engine.AutoDistribute(call.CallID, manager.UserID)
	if err != nil {
		t.Fatalf("second run failed: %v", err)
	}
	if second.AssignmentsCreated != 0 {
		t.Fatalf("second run must not create assignments, got %d", second.AssignmentsCreated)
	}
	if got := countValidAssignments(t, db, proposal.ProposalID); got != 2 {
		t.Fatalf("expected 2 valid assignments after both runs, got %d", got)
	}
}

func TestAutoDistributeReactivatesCancelledAssignments(t *testing.T) {
	db := newTestDB(t)
	call := seedCall(t, db, 1)
	applicant := seedUser(t, db, models.RoleApplicant, "")
	manager := seedUser(t, db, models.RoleCallManager, "")
	reviewer := seedUser(t, db, models.RoleReviewer, "biology")
	proposal := seedProposal(t, db, call.CallID, applicant.UserID, "biology", models.ProposalStatusSubmitted)
	cancelled := seedAssignment(t, db, proposal.ProposalID, reviewer.UserID, models.AssignmentStatusCancelled)

	result, err := NewDistributionService(db).AutoDistribute(call.CallID, manager.UserID)
	if err != nil {
		t.Fatalf("auto distribution failed: %v", err)
	}
	if result.AssignmentsCreated != 1 {
		t.Fatalf("expected 1 assignment, got %d", result.AssignmentsCreated)
	}

	// The cancelled row is flipped back to assigned instead of
	// inserting a second (proposal, reviewer) row.
	var reloaded models.Assignment
	if err := db.First(&reloaded, cancelled.AssignmentID).Error; err != nil {
		t.Fatalf("failed to reload assignment: %v", err)
	}
	if reloaded.Status != models.AssignmentStatusAssigned {
		t.Fatalf("expected the cancelled row to be reactivated, got %q", reloaded.Status)
	}
	if reloaded.AssignedBy != manager.UserID {
		t.Fatalf("expected assigned_by to track the new actor, got %d", reloaded.AssignedBy)
	}

	var rows int64
	if err := db.Model(&models.Assignment{}).
		Where("proposal_id = ? AND reviewer_id = ?", proposal.ProposalID, reviewer.UserID).
		Count(&rows).Error; err != nil {
		t.Fatalf("failed to count assignment rows: %v", err)
	}
	if rows != 1 {
		t.Fatalf("expected a single row for the pair, got %d", rows)
	}
}

func TestAutoDistributeExcludesConflictedReviewers(t *testing.T) {
	db := newTestDB(t)
	call := seedCall(t, db, 1)
	applicant := seedUser(t, db, models.RoleApplicant, "")
	manager := seedUser(t, db, models.RoleCallManager, "")
	conflicted := seedUser(t, db, models.RoleReviewer, "biology")
	clean := seedUser(t, db, models.RoleReviewer, "history")
	proposal := seedProposal(t, db, call.CallID, applicant.UserID, "biology", models.ProposalStatusSubmitted)

	if _, err := NewConflictService(db).Declare(DeclareInput{
		ReviewerID: conflicted.UserID,
		ProposalID: &proposal.ProposalID,
		Reason:     "former advisor",
		Source:     models.ConflictSourceStaff,
		DeclaredBy: manager.UserID,
		OrgID:      1,
	}); err != nil {
		t.Fatalf("failed to declare conflict: %v", err)
	}

	if _, err := NewDistributionService(db).AutoDistribute(call.CallID, manager.UserID); err != nil {
		t.Fatalf("auto distribution failed: %v", err)
	}

	var rows []models.Assignment
	if err := db.Where("proposal_id = ? AND status <> ?", proposal.ProposalID,
		models.AssignmentStatusConflict).Find(&rows).Error; err != nil {
		t.Fatalf("failed to load assignments: %v", err)
	}
	if len(rows) != 1 || rows[0].ReviewerID != clean.UserID {
		t.Fatalf("expected only the clean reviewer; despite the area match the conflicted one must be excluded: %+v", rows)
	}
}

func TestAutoDistributeMarksDeficientProposals(t *testing.T) {
	db := newTestDB(t)
	call := seedCall(t, db, 3)
	applicant := seedUser(t, db, models.RoleApplicant, "")
	manager := seedUser(t, db, models.RoleCallManager, "")
	seedUser(t, db, models.RoleReviewer, "biology")
	proposal := seedProposal(t, db, call.CallID, applicant.UserID, "biology", models.ProposalStatusSubmitted)

	result, err := NewDistributionService(db).AutoDistribute(call.CallID, manager.UserID)
	if err != nil {
		t.Fatalf("auto distribution failed: %v", err)
	}
	if result.AssignmentsCreated != 1 {
		t.Fatalf("expected the single eligible reviewer to be assigned, got %d", result.AssignmentsCreated)
	}
	if result.StillPending != 1 || result.FullyCovered != 0 {
		t.Fatalf("expected a still-pending proposal, got %+v", result)
	}
	if got := countValidAssignments(t, db, proposal.ProposalID); got != 1 {
		t.Fatalf("expected 1 assignment, got %d", got)
	}
}

func TestAutoDistributeBalancesLoadAcrossBatch(t *testing.T) {
	db := newTestDB(t)
	call := seedCall(t, db, 1)
	applicant := seedUser(t, db, models.RoleApplicant, "")
	manager := seedUser(t, db, models.RoleCallManager, "")
	reviewer1 := seedUser(t, db, models.RoleReviewer, "history")
	reviewer2 := seedUser(t, db, models.RoleReviewer, "law")

	// Both proposals are unmatched for both reviewers; the batch must
	// spread them instead of stacking the first reviewer twice.
	p1 := seedProposal(t, db, call.CallID, applicant.UserID, "biology", models.ProposalStatusSubmitted)
	p2 := seedProposal(t, db, call.CallID, applicant.UserID, "chemistry", models.ProposalStatusSubmitted)

	if _, err := NewDistributionService(db).AutoDistribute(call.CallID, manager.UserID); err != nil {
		t.Fatalf("auto distribution failed: %v", err)
	}

	var first, second models.Assignment
	if err := db.Where("proposal_id = ?", p1.ProposalID).First(&first).Error; err != nil {
		t.Fatalf("missing assignment for p1: %v", err)
	}
	if err := db.Where("proposal_id = ?", p2.ProposalID).First(&second).Error; err != nil {
		t.Fatalf("missing assignment for p2: %v", err)
	}
	if first.ReviewerID == second.ReviewerID {
		t.Fatalf("expected batch-aware load balancing, both went to reviewer %d", first.ReviewerID)
	}
	got := map[int]bool{first.ReviewerID: true, second.ReviewerID: true}
	if !got[reviewer1.UserID] || !got[reviewer2.UserID] {
		t.Fatalf("expected one assignment per reviewer, got %v", got)
	}
}

func TestAutoDistributeWritesSummaryAudit(t *testing.T) {
	db := newTestDB(t)
	call := seedCall(t, db, 1)
	applicant := seedUser(t, db, models.RoleApplicant, "")
	manager := seedUser(t, db, models.RoleCallManager, "")
	seedUser(t, db, models.RoleReviewer, "biology")
	seedProposal(t, db, call.CallID, applicant.UserID, "biology", models.ProposalStatusSubmitted)

	if _, err := NewDistributionService(db).AutoDistribute(call.CallID, manager.UserID); err != nil {
		t.Fatalf("auto distribution failed: %v", err)
	}

	var entries []models.AuditEntry
	if err := db.Where("entity = ? AND entity_id = ? AND action = ?",
		"call", call.CallID, models.AuditActionAutoDistribution).
		Find(&entries).Error; err != nil {
		t.Fatalf("failed to load audit entries: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected one summary audit entry, got %d", len(entries))
	}
}

func TestManualAssignmentRejectsConflictedReviewer(t *testing.T) {
	db := newTestDB(t)
	call := seedCall(t, db, 2)
	applicant := seedUser(t, db, models.RoleApplicant, "")
	manager := seedUser(t, db, models.RoleCallManager, "")
	clean := seedUser(t, db, models.RoleReviewer, "biology")
	conflicted := seedUser(t, db, models.RoleReviewer, "biology")
	proposal := seedProposal(t, db, call.CallID, applicant.UserID, "biology", models.ProposalStatusSubmitted)

	if _, err := NewConflictService(db).Declare(DeclareInput{
		ReviewerID: conflicted.UserID,
		ProposalID: &proposal.ProposalID,
		Reason:     "co-author",
		Source:     models.ConflictSourceStaff,
		DeclaredBy: manager.UserID,
		OrgID:      1,
	}); err != nil {
		t.Fatalf("failed to declare conflict: %v", err)
	}

	err := NewDistributionService(db).
		AssignManually(proposal.ProposalID, []int{clean.UserID, conflicted.UserID}, manager.UserID)

	var blocked *ConflictBlockedError
	if !errors.As(err, &blocked) {
		t.Fatalf("expected ConflictBlockedError, got %v", err)
	}
	if blocked.ReviewerID != conflicted.UserID {
		t.Fatalf("expected the conflicted reviewer to be named, got %d", blocked.ReviewerID)
	}

	// The whole request is rejected: the clean reviewer must not have
	// been assigned either.
	if got := countValidAssignments(t, db, proposal.ProposalID); got != 0 {
		t.Fatalf("expected no assignments after rejection, got %d", got)
	}
}

func TestManualAssignmentRejectsDuplicates(t *testing.T) {
	db := newTestDB(t)
	call := seedCall(t, db, 2)
	applicant := seedUser(t, db, models.RoleApplicant, "")
	manager := seedUser(t, db, models.RoleCallManager, "")
	reviewer := seedUser(t, db, models.RoleReviewer, "biology")
	proposal := seedProposal(t, db, call.CallID, applicant.UserID, "biology", models.ProposalStatusSubmitted)
	seedAssignment(t, db, proposal.ProposalID, reviewer.UserID, models.AssignmentStatusAssigned)

	err := NewDistributionService(db).
		AssignManually(proposal.ProposalID, []int{reviewer.UserID}, manager.UserID)

	var validation *ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestManualAssignmentTransitionsProposal(t *testing.T) {
	db := newTestDB(t)
	call := seedCall(t, db, 2)
	applicant := seedUser(t, db, models.RoleApplicant, "")
	manager := seedUser(t, db, models.RoleCallManager, "")
	reviewer := seedUser(t, db, models.RoleReviewer, "biology")
	proposal := seedProposal(t, db, call.CallID, applicant.UserID, "biology", models.ProposalStatusSubmitted)

	if err := NewDistributionService(db).
		AssignManually(proposal.ProposalID, []int{reviewer.UserID}, manager.UserID); err != nil {
		t.Fatalf("manual assignment failed: %v", err)
	}

	var reloaded models.Proposal
	if err := db.First(&reloaded, proposal.ProposalID).Error; err != nil {
		t.Fatalf("failed to reload proposal: %v", err)
	}
	if reloaded.Status != models.ProposalStatusUnderReview {
		t.Fatalf("expected underReview, got %s", reloaded.Status)
	}

	var entries []models.AuditEntry
	if err := db.Where("entity = ? AND entity_id = ? AND action = ?",
		"proposal", proposal.ProposalID, models.AuditActionManualAssignment).
		Find(&entries).Error; err != nil {
		t.Fatalf("failed to load audit entries: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected one manual-assignment audit entry, got %d", len(entries))
	}
}

func TestAreaMatchesHeuristic(t *testing.T) {
	cases := []struct {
		reviewer string
		proposal string
		want     bool
	}{
		{"Computer Science", "computer engineering", true},
		{"Biologia Molecular", "biologia", true},
		{"History", "Law", false},
		{"", "biology", false},
		{"biology", "", false},
		{"Engenharia", "engenharias e computacao", true},
	}
	for _, tc := range cases {
		if got := areaMatches(tc.reviewer, tc.proposal); got != tc.want {
			t.Errorf("areaMatches(%q, %q) = %v, want %v", tc.reviewer, tc.proposal, got, tc.want)
		}
	}
}
