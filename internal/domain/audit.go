package domain

import "time"

// AuditAction is the closed set of actions recorded on a protocol's
// audit trail. Downstream consumers switch on these values, so
// free-text actions are not allowed; human-readable detail goes in the
// entry's Note.
type AuditAction string

const (
	ActionCreated           AuditAction = "created"
	ActionValidated         AuditAction = "validated"
	ActionValidationRevoked AuditAction = "validation_revoked"
	ActionLaunched          AuditAction = "launched"
	ActionLaunchRevoked     AuditAction = "launch_revoked"
	ActionPartialDelivery   AuditAction = "partial_delivery"
	ActionClosed            AuditAction = "closed"
	ActionForceClosed       AuditAction = "force_closed"
	ActionReopened          AuditAction = "reopened"
	ActionHidden            AuditAction = "hidden"
)

// AuditEntry is one immutable record on a protocol's audit trail.
// Entries are append-only: no edits, no deletes.
type AuditEntry struct {
	ID        string
	ActorID   string
	ActorName string
	Date      string
	Time      string
	Action    AuditAction
	Note      string
}

// NewAuditEntry stamps an entry with the localized date/time strings
// used across the protocol record.
func NewAuditEntry(id string, actor Actor, action AuditAction, note string, now time.Time) AuditEntry {
	return AuditEntry{
		ID:        id,
		ActorID:   actor.ID,
		ActorName: actor.Name,
		Date:      now.Format(DateLayout),
		Time:      now.Format(TimeLayout),
		Action:    action,
		Note:      note,
	}
}

// ClosureActions are the audit actions that mark a protocol's closure
// date. Force closure counts: the protocol stops aging either way.
func (a AuditAction) MarksClosure() bool {
	return a == ActionClosed || a == ActionForceClosed
}
