package models

import "time"

// Proposal statuses
const (
	ProposalStatusDraft       = "draft"
	ProposalStatusSubmitted   = "submitted"
	ProposalStatusUnderReview = "underReview"
	ProposalStatusAccepted    = "accepted"
	ProposalStatusRejected    = "rejected"
)

// Proposal represents an application to a call. BlindCode is set exactly
// once on the first transition out of draft and is never reassigned.
// Proposals are never hard-deleted once submitted.
type Proposal struct {
	ProposalID    int        `gorm:"primaryKey;column:proposal_id" json:"proposal_id"`
	CallID        int        `gorm:"column:call_id;uniqueIndex:idx_call_blind_code" json:"call_id"`
	ApplicantID   int        `gorm:"column:applicant_id" json:"applicant_id"`
	Title         string     `gorm:"column:title" json:"title"`
	KnowledgeArea string     `gorm:"column:knowledge_area" json:"knowledge_area"`
	Status        string     `gorm:"column:status" json:"status"`
	BlindCode     *string    `gorm:"column:blind_code;uniqueIndex:idx_call_blind_code" json:"blind_code,omitempty"`
	SubmittedAt   *time.Time `gorm:"column:submitted_at" json:"submitted_at,omitempty"`
	CreateAt      time.Time  `gorm:"column:create_at" json:"create_at"`
	UpdateAt      time.Time  `gorm:"column:update_at" json:"update_at"`
	DeleteAt      *time.Time `gorm:"column:delete_at" json:"delete_at,omitempty"`

	// Relations
	Call        Call             `gorm:"foreignKey:CallID" json:"call,omitempty"`
	Applicant   *User            `gorm:"foreignKey:ApplicantID" json:"applicant,omitempty"`
	Answers     []ProposalAnswer `gorm:"foreignKey:ProposalID" json:"answers,omitempty"`
	Assignments []Assignment     `gorm:"foreignKey:ProposalID" json:"assignments,omitempty"`
}

// ProposalAnswer holds one raw answer keyed by the question id of the
// call's form snapshot.
type ProposalAnswer struct {
	AnswerID   int       `gorm:"primaryKey;column:answer_id" json:"answer_id"`
	ProposalID int       `gorm:"column:proposal_id;uniqueIndex:idx_proposal_question" json:"proposal_id"`
	QuestionID string    `gorm:"column:question_id;uniqueIndex:idx_proposal_question" json:"question_id"`
	Value      string    `gorm:"column:value" json:"value"`
	CreateAt   time.Time `gorm:"column:create_at" json:"create_at"`
	UpdateAt   time.Time `gorm:"column:update_at" json:"update_at"`
}

// FormSnapshot stores the immutable, versioned form schema of a call as
// raw JSON: {sections:[{title, questions:[{id,label,type,order}]}]}.
type FormSnapshot struct {
	SnapshotID int       `gorm:"primaryKey;column:snapshot_id" json:"snapshot_id"`
	CallID     int       `gorm:"column:call_id;uniqueIndex:idx_call_version" json:"call_id"`
	Version    int       `gorm:"column:version;uniqueIndex:idx_call_version" json:"version"`
	SchemaJSON string    `gorm:"column:schema_json;type:text" json:"schema_json"`
	CreateAt   time.Time `gorm:"column:create_at" json:"create_at"`
}

// TableName overrides
func (Proposal) TableName() string {
	return "proposals"
}

func (ProposalAnswer) TableName() string {
	return "proposal_answers"
}

func (FormSnapshot) TableName() string {
	return "form_snapshots"
}
