package domain

import "time"

// AuditAction enumerates the mutation kinds recorded in the audit log.
type AuditAction string

const (
	AuditAdd        AuditAction = "add"
	AuditEdit       AuditAction = "edit"
	AuditDelete     AuditAction = "delete"
	AuditBulkUpload AuditAction = "bulk_upload"
)

// ParseAuditAction validates an action name; the empty string means all.
func ParseAuditAction(s string) (AuditAction, bool) {
	switch a := AuditAction(s); a {
	case "", AuditAdd, AuditEdit, AuditDelete, AuditBulkUpload:
		return a, true
	}
	return "", false
}

// AuditEntry is an immutable record of one mutation.
type AuditEntry struct {
	ID           string         `json:"id"`
	Action       AuditAction    `json:"action"`
	Partition    string         `json:"event"`
	Data         map[string]any `json:"data"`
	PreviousData map[string]any `json:"previous_data,omitempty"`
	UserEmail    string         `json:"user_email"`
	UserName     string         `json:"user_name"`
	Timestamp    time.Time      `json:"timestamp"`
}
