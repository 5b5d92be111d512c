package services

import (
	"encoding/json"
	"time"

	"call-review-api/models"

	"gorm.io/gorm"
)

// RecordAudit appends one immutable audit entry inside the caller's
// transaction. This is the only write path to the audit table; no
// update or delete method exists anywhere in the codebase, and the
// model's GORM hooks reject both as a second line of defense.
func RecordAudit(tx *gorm.DB, actorID, orgID int, entity string, entityID int, action string, metadata map[string]interface{}) error {
	payload := "{}"
	if len(metadata) > 0 {
		raw, err := json.Marshal(metadata)
		if err != nil {
			return err
		}
		payload = string(raw)
	}

	entry := models.AuditEntry{
		ActorID:        actorID,
		OrganizationID: orgID,
		Entity:         entity,
		EntityID:       entityID,
		Action:         action,
		Metadata:       payload,
		CreateAt:       time.Now(),
	}
	return tx.Create(&entry).Error
}

// RecordStatusChange writes the canonical transition entry with the
// previous and new status in the metadata.
func RecordStatusChange(tx *gorm.DB, actorID, orgID int, entity string, entityID int, oldStatus, newStatus string) error {
	return RecordAudit(tx, actorID, orgID, entity, entityID, models.AuditActionStatusChange, map[string]interface{}{
		"old_status": oldStatus,
		"new_status": newStatus,
	})
}
