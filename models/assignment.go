package models

import "time"

// Assignment statuses
const (
	AssignmentStatusAssigned   = "assigned"
	AssignmentStatusInProgress = "inProgress"
	AssignmentStatusSubmitted  = "submitted"
	AssignmentStatusConflict   = "conflict"
	AssignmentStatusCancelled  = "cancelled"
)

// Recommendation values
const (
	RecommendationApproved         = "approved"
	RecommendationWithReservations = "approvedWithReservations"
	RecommendationNotApproved      = "notApproved"
)

// Assignment pairs one reviewer with one proposal. The unique index on
// (proposal_id, reviewer_id) is the cross-session invariant that makes
// concurrent distribution runs safe; cancelled rows are reactivated
// instead of duplicated so the index always holds.
type Assignment struct {
	AssignmentID     int        `gorm:"primaryKey;column:assignment_id" json:"assignment_id"`
	ProposalID       int        `gorm:"column:proposal_id;uniqueIndex:idx_proposal_reviewer" json:"proposal_id"`
	ReviewerID       int        `gorm:"column:reviewer_id;uniqueIndex:idx_proposal_reviewer" json:"reviewer_id"`
	AssignedBy       int        `gorm:"column:assigned_by" json:"assigned_by"`
	Status           string     `gorm:"column:status" json:"status"`
	ConflictDeclared bool       `gorm:"column:conflict_declared" json:"conflict_declared"`
	ConflictReason   *string    `gorm:"column:conflict_reason" json:"conflict_reason,omitempty"`
	AssignedAt       time.Time  `gorm:"column:assigned_at" json:"assigned_at"`
	SubmittedAt      *time.Time `gorm:"column:submitted_at" json:"submitted_at,omitempty"`
	CreateAt         time.Time  `gorm:"column:create_at" json:"create_at"`
	UpdateAt         time.Time  `gorm:"column:update_at" json:"update_at"`

	// Relations
	Proposal *Proposal `gorm:"foreignKey:ProposalID" json:"proposal,omitempty"`
	Reviewer *User     `gorm:"foreignKey:ReviewerID" json:"reviewer,omitempty"`
	Review   *Review   `gorm:"foreignKey:AssignmentID" json:"review,omitempty"`
}

// IsValid reports whether the assignment counts toward coverage and
// reviewer workload.
func (a *Assignment) IsValid() bool {
	return a.Status != AssignmentStatusConflict && a.Status != AssignmentStatusCancelled
}

// IsTerminal reports whether the assignment can still change state.
func (a *Assignment) IsTerminal() bool {
	return a.Status == AssignmentStatusSubmitted || a.Status == AssignmentStatusConflict
}

// Review is the evaluation a reviewer writes for one assignment. Created
// lazily on first save, immutable once the assignment is submitted.
type Review struct {
	ReviewID            int        `gorm:"primaryKey;column:review_id" json:"review_id"`
	AssignmentID        int        `gorm:"column:assignment_id;uniqueIndex" json:"assignment_id"`
	OverallScore        *float64   `gorm:"column:overall_score" json:"overall_score,omitempty"`
	Recommendation      *string    `gorm:"column:recommendation" json:"recommendation,omitempty"`
	CommentsToCommittee *string    `gorm:"column:comments_to_committee" json:"comments_to_committee,omitempty"`
	SubmittedAt         *time.Time `gorm:"column:submitted_at" json:"submitted_at,omitempty"`
	CreateAt            time.Time  `gorm:"column:create_at" json:"create_at"`
	UpdateAt            time.Time  `gorm:"column:update_at" json:"update_at"`

	Scores []ReviewScore `gorm:"foreignKey:ReviewID" json:"scores,omitempty"`
}

// ReviewScore is one per-criterion score inside a review.
type ReviewScore struct {
	ReviewScoreID int     `gorm:"primaryKey;column:review_score_id" json:"review_score_id"`
	ReviewID      int     `gorm:"column:review_id;uniqueIndex:idx_review_criterion" json:"review_id"`
	CriterionID   int     `gorm:"column:criterion_id;uniqueIndex:idx_review_criterion" json:"criterion_id"`
	Score         float64 `gorm:"column:score" json:"score"`
	Comment       *string `gorm:"column:comment" json:"comment,omitempty"`
}

// TableName overrides
func (Assignment) TableName() string {
	return "assignments"
}

func (Review) TableName() string {
	return "reviews"
}

func (ReviewScore) TableName() string {
	return "review_scores"
}
