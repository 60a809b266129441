package types

import (
	"encoding/json"
	"time"
)

const (
	AuditActionCreateDocument       = "CREATE_DOCUMENT"
	AuditActionUpdateDocument       = "UPDATE_DOCUMENT"
	AuditActionDeleteDocument       = "DELETE_DOCUMENT"
	AuditActionEnrichmentComplete   = "AI_ENRICHMENT_COMPLETE"
	AuditActionEnrichmentFailed     = "AI_ENRICHMENT_FAILED"
	AuditActionCreateRole           = "ROLE_CREATE"
	AuditActionUpdateRole           = "ROLE_UPDATE"
	AuditActionDeactivateRole       = "ROLE_DEACTIVATE"
	AuditActionCreateFieldConfig    = "FIELD_CONFIG_CREATE"
	AuditActionUpdateFieldConfig    = "FIELD_CONFIG_UPDATE"
	AuditActionDeleteFieldConfig    = "FIELD_CONFIG_DELETE"
	AuditActionSendCommunication    = "COMMUNICATION_SEND"
	AuditActionCommunicationUpdated = "COMMUNICATION_STATUS"
)

const (
	EntityDocument      = "document"
	EntityRole          = "role"
	EntityFieldConfig   = "field_configuration"
	EntityCommunication = "communication"
)

// AuditLogEntry is an immutable record of a state-changing action. EntityID is
// a weak reference and may outlive the entity.
type AuditLogEntry struct {
	ID         string          `db:"id" json:"id"`
	Action     string          `db:"action" json:"action"`
	EntityType string          `db:"entity_type" json:"entityType"`
	EntityID   string          `db:"entity_id" json:"entityId"`
	OldValue   json.RawMessage `db:"old_value" json:"oldValue"`
	NewValue   json.RawMessage `db:"new_value" json:"newValue"`
	Details    *string         `db:"details" json:"details"`
	UserID     *string         `db:"user_id" json:"userId"`
	IPAddress  string          `db:"ip_address" json:"ipAddress"`
	UserAgent  string          `db:"user_agent" json:"userAgent"`
	CreatedAt  time.Time       `db:"created_at" json:"createdAt"`
}

// AuditContext identifies who performed an action and from where. An empty
// UserID marks a system action.
type AuditContext struct {
	UserID    string
	IPAddress string
	UserAgent string
}

// Entry builds an entry for this actor. Snapshots are marshalled as JSON; a
// nil snapshot stays null.
func (a AuditContext) Entry(action, entityType, entityID string, oldValue, newValue any) *AuditLogEntry {
	entry := &AuditLogEntry{
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		OldValue:   snapshot(oldValue),
		NewValue:   snapshot(newValue),
		IPAddress:  a.IPAddress,
		UserAgent:  a.UserAgent,
	}
	if a.UserID != "" {
		userID := a.UserID
		entry.UserID = &userID
	}
	return entry
}

func snapshot(v any) json.RawMessage {
	if v == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil || string(data) == "null" {
		return nil
	}
	return data
}

type AuditFilter struct {
	UserID   string `form:"userId"`
	Action   string `form:"action"`
	EntityID string `form:"entityId"`
	Limit    uint64 `form:"limit"`
}
