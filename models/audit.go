package models

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

// ErrAuditImmutable is returned by the GORM hooks below whenever any
// code path attempts to update or delete an audit entry. Reaching it is
// a programming defect, not a recoverable condition.
var ErrAuditImmutable = errors.New("audit entries are append-only and cannot be modified")

// Audit actions written by the engine.
const (
	AuditActionStatusChange     = "statusChange"
	AuditActionAutoDistribution = "autoDistribution"
	AuditActionManualAssignment = "manualAssignment"
	AuditActionConflictDeclared = "conflictDeclared"
	AuditActionReviewSubmitted  = "reviewSubmitted"
)

// AuditEntry is an append-only record of a state transition or a
// distribution decision. Metadata is a JSON document carrying at least
// the previous and new status on transitions.
type AuditEntry struct {
	AuditID        int       `gorm:"primaryKey;column:audit_id" json:"audit_id"`
	ActorID        int       `gorm:"column:actor_id" json:"actor_id"`
	OrganizationID int       `gorm:"column:organization_id" json:"organization_id"`
	Entity         string    `gorm:"column:entity;index:idx_entity" json:"entity"`
	EntityID       int       `gorm:"column:entity_id;index:idx_entity" json:"entity_id"`
	Action         string    `gorm:"column:action" json:"action"`
	Metadata       string    `gorm:"column:metadata;type:text" json:"metadata"`
	CreateAt       time.Time `gorm:"column:create_at" json:"create_at"`
}

// TableName specifies the table for AuditEntry.
func (AuditEntry) TableName() string {
	return "audit_entries"
}

// BeforeUpdate blocks every update path, including bulk updates routed
// through the model.
func (AuditEntry) BeforeUpdate(tx *gorm.DB) error {
	return ErrAuditImmutable
}

// BeforeDelete blocks every delete path.
func (AuditEntry) BeforeDelete(tx *gorm.DB) error {
	return ErrAuditImmutable
}
