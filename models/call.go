package models

import "time"

// Call statuses
const (
	CallStatusDraft     = "draft"
	CallStatusPublished = "published"
	CallStatusClosed    = "closed"
)

// Blind code strategies
const (
	BlindCodeSequential  = "sequential"
	BlindCodeRandomShort = "randomShort"
)

// Call represents a funding call (edital) owned by an organization.
type Call struct {
	CallID                  int        `gorm:"primaryKey;column:call_id" json:"call_id"`
	OrganizationID          int        `gorm:"column:organization_id" json:"organization_id"`
	CreatedBy               int        `gorm:"column:created_by" json:"created_by"`
	Title                   string     `gorm:"column:title" json:"title"`
	Description             *string    `gorm:"column:description" json:"description,omitempty"`
	Status                  string     `gorm:"column:status" json:"status"`
	MinReviewersPerProposal int        `gorm:"column:min_reviewers_per_proposal" json:"min_reviewers_per_proposal"`
	ReviewDeadline          *time.Time `gorm:"column:review_deadline" json:"review_deadline,omitempty"`
	BlindReviewEnabled      bool       `gorm:"column:blind_review_enabled" json:"blind_review_enabled"`
	BlindCodeStrategy       string     `gorm:"column:blind_code_strategy" json:"blind_code_strategy"`
	BlindCodePrefix         *string    `gorm:"column:blind_code_prefix" json:"blind_code_prefix,omitempty"`
	BlindCodeSeq            int        `gorm:"column:blind_code_seq" json:"-"`
	CreateAt                time.Time  `gorm:"column:create_at" json:"create_at"`
	UpdateAt                time.Time  `gorm:"column:update_at" json:"update_at"`
	DeleteAt                *time.Time `gorm:"column:delete_at" json:"delete_at,omitempty"`

	// Relations
	Criteria []Criterion `gorm:"foreignKey:CallID" json:"criteria,omitempty"`
}

// Criterion is one weighted rubric dimension of a call.
type Criterion struct {
	CriterionID int        `gorm:"primaryKey;column:criterion_id" json:"criterion_id"`
	CallID      int        `gorm:"column:call_id" json:"call_id"`
	Name        string     `gorm:"column:name" json:"name"`
	MaxScore    float64    `gorm:"column:max_score" json:"max_score"`
	Weight      float64    `gorm:"column:weight" json:"weight"`
	SortOrder   int        `gorm:"column:sort_order" json:"sort_order"`
	CreateAt    time.Time  `gorm:"column:create_at" json:"create_at"`
	UpdateAt    time.Time  `gorm:"column:update_at" json:"update_at"`
	DeleteAt    *time.Time `gorm:"column:delete_at" json:"delete_at,omitempty"`
}

// TableName overrides
func (Call) TableName() string {
	return "calls"
}

func (Criterion) TableName() string {
	return "call_criteria"
}
