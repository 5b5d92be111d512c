package models

import "time"

// Conflict sources
const (
	ConflictSourceSelf  = "self"
	ConflictSourceStaff = "staff"
)

// ConflictRecord registers a disqualifying relationship between a
// reviewer and a proposal or an applicant. Once present it permanently
// blocks new assignments of that reviewer; it is never deleted.
type ConflictRecord struct {
	ConflictID  int       `gorm:"primaryKey;column:conflict_id" json:"conflict_id"`
	ReviewerID  int       `gorm:"column:reviewer_id;index" json:"reviewer_id"`
	ProposalID  *int      `gorm:"column:proposal_id;index" json:"proposal_id,omitempty"`
	ApplicantID *int      `gorm:"column:applicant_id;index" json:"applicant_id,omitempty"`
	Reason      string    `gorm:"column:reason" json:"reason"`
	Source      string    `gorm:"column:source" json:"source"`
	DeclaredBy  int       `gorm:"column:declared_by" json:"declared_by"`
	CreateAt    time.Time `gorm:"column:create_at" json:"create_at"`
}

// TableName specifies the table for ConflictRecord.
func (ConflictRecord) TableName() string {
	return "conflict_records"
}
