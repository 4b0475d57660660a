package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ProtocolStatus enumerates lifecycle states for replacement protocols.
type ProtocolStatus string

const (
	ProtocolStatusOpen       ProtocolStatus = "open"
	ProtocolStatusInProgress ProtocolStatus = "in_progress"
	ProtocolStatusClosed     ProtocolStatus = "closed"
)

// ReplacementType enumerates the discrepancy kinds a driver can report.
type ReplacementType string

const (
	ReplacementShortage  ReplacementType = "shortage"
	ReplacementInversion ReplacementType = "inversion"
	ReplacementDamage    ReplacementType = "damage"
)

// DateLayout and TimeLayout are the localized formats used for SLA
// day arithmetic. SLA counts calendar days, so the date carries no
// time-of-day component.
const (
	DateLayout = "02/01/2006"
	TimeLayout = "15:04:05"
)

// DriverRef identifies the reporting driver on a protocol.
type DriverRef struct {
	ID    string
	Name  string
	Unit  string
	Phone string
}

// LineItem is a single product line on a protocol.
type LineItem struct {
	Code                  string
	Name                  string
	Unit                  string
	Quantity              float64
	Expiry                string
	Observation           string
	Delivered             bool
	DeliveredAt           *time.Time
	DeliveredByDriverID   string
	DeliveredByDriverName string
}

// EvidencePhotos holds the photo URLs captured at creation time.
// DriverAtSiteURL and ProductLotURL are mandatory for every type;
// DamageURL is mandatory for damage protocols only.
type EvidencePhotos struct {
	DriverAtSiteURL string
	ProductLotURL   string
	DamageURL       string
}

// ClosureEvidence holds the proof-of-delivery bundle captured when a
// protocol is fully closed.
type ClosureEvidence struct {
	SignedReceiptURL string
	GoodsPhotoURL    string
	Message          string
	ClosedByID       string
	ClosedByName     string
}

// Protocol is the aggregate for replacement tickets.
type Protocol struct {
	ID              string
	Number          string
	Status          ProtocolStatus
	Version         int64
	CreatedAt       time.Time
	CreationDate    string
	CreationTime    string
	Driver          DriverRef
	Unit            string
	PDVCode         string
	InvoiceNumber   string
	ReplacementType ReplacementType
	Cause           string
	LineItems       []LineItem
	Validated       bool
	Launched        bool
	Hidden          bool
	ClosedAt        *time.Time
	EvidencePhotos  EvidencePhotos
	ClosureEvidence *ClosureEvidence
	AuditTrail      []AuditEntry
}

// DeliveredCount returns how many line items are already delivered.
func (p *Protocol) DeliveredCount() int {
	count := 0
	for _, item := range p.LineItems {
		if item.Delivered {
			count++
		}
	}
	return count
}

// UndeliveredIndices lists the indices of line items still pending
// delivery, in order.
func (p *Protocol) UndeliveredIndices() []int {
	var indices []int
	for i, item := range p.LineItems {
		if !item.Delivered {
			indices = append(indices, i)
		}
	}
	return indices
}

// FullyDelivered reports whether every line item has been delivered.
func (p *Protocol) FullyDelivered() bool {
	return p.DeliveredCount() == len(p.LineItems)
}

// IsReopened reports whether the protocol was ever reopened. The audit
// trail is the only durable record of that fact.
func (p *Protocol) IsReopened() bool {
	for _, entry := range p.AuditTrail {
		if entry.Action == ActionReopened {
			return true
		}
	}
	return false
}

// Clone returns a deep copy safe to mutate without touching the
// original aggregate.
func (p *Protocol) Clone() *Protocol {
	clone := *p
	clone.LineItems = append([]LineItem(nil), p.LineItems...)
	clone.AuditTrail = append([]AuditEntry(nil), p.AuditTrail...)
	if p.ClosedAt != nil {
		closedAt := *p.ClosedAt
		clone.ClosedAt = &closedAt
	}
	if p.ClosureEvidence != nil {
		evidence := *p.ClosureEvidence
		clone.ClosureEvidence = &evidence
	}
	return &clone
}

// NewProtocolNumber derives the human-facing number from the creation
// timestamp plus a random suffix. It is unique but never used as a key;
// the UUID id is the key.
func NewProtocolNumber(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:5])
	return fmt.Sprintf("PR-%s-%s", now.Format("20060102150405"), suffix)
}

// ValidStatus reports whether the value is one of the three lifecycle
// states.
func ValidStatus(status ProtocolStatus) bool {
	switch status {
	case ProtocolStatusOpen, ProtocolStatusInProgress, ProtocolStatusClosed:
		return true
	}
	return false
}

// ValidReplacementType reports whether the value is a known type.
func ValidReplacementType(rt ReplacementType) bool {
	switch rt {
	case ReplacementShortage, ReplacementInversion, ReplacementDamage:
		return true
	}
	return false
}
