package service

import (
	"time"

	"github.com/spec-kit/protocol-service/internal/config"
	"github.com/spec-kit/protocol-service/internal/domain"
)

// SLASeverity bands a protocol's age for display and alerting.
type SLASeverity string

const (
	SeverityNormal   SLASeverity = "normal"
	SeverityWarning  SLASeverity = "warning"
	SeverityCritical SLASeverity = "critical"
)

// SLAClock computes protocol age in calendar days. A closed protocol
// stops aging at its closure date; everything else ages against today.
type SLAClock struct {
	warningDays  int
	criticalDays int
}

// NewSLAClock builds a clock with the configured thresholds.
func NewSLAClock(cfg config.SLAConfig) *SLAClock {
	warning := cfg.WarningDays
	if warning <= 0 {
		warning = 7
	}
	critical := cfg.CriticalDays
	if critical <= warning {
		critical = 15
	}
	return &SLAClock{warningDays: warning, criticalDays: critical}
}

// AgeInDays returns the protocol's age in whole calendar days as of
// today. For closed protocols the dedicated ClosedAt field wins; older
// records fall back to the audit entry that marked closure, and on a
// missing entry the open formula applies so callers always get a
// number.
func (c *SLAClock) AgeInDays(protocol *domain.Protocol, today time.Time) int {
	created, err := time.Parse(domain.DateLayout, protocol.CreationDate)
	if err != nil {
		return 0
	}

	if protocol.Status == domain.ProtocolStatusClosed {
		if protocol.ClosedAt != nil {
			return daysBetween(created, *protocol.ClosedAt)
		}
		if closedOn, ok := closureDateFromTrail(protocol.AuditTrail); ok {
			return daysBetween(created, closedOn)
		}
	}
	return daysBetween(created, today)
}

// Severity bands an age value.
func (c *SLAClock) Severity(ageDays int) SLASeverity {
	switch {
	case ageDays >= c.criticalDays:
		return SeverityCritical
	case ageDays > c.warningDays:
		return SeverityWarning
	default:
		return SeverityNormal
	}
}

func closureDateFromTrail(trail []domain.AuditEntry) (time.Time, bool) {
	for i := len(trail) - 1; i >= 0; i-- {
		if !trail[i].Action.MarksClosure() {
			continue
		}
		closedOn, err := time.Parse(domain.DateLayout, trail[i].Date)
		if err != nil {
			return time.Time{}, false
		}
		return closedOn, true
	}
	return time.Time{}, false
}

// daysBetween truncates both sides to plain dates before subtracting,
// so partial days never round up.
func daysBetween(from, to time.Time) int {
	fromDate := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	toDate := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, time.UTC)
	days := int(toDate.Sub(fromDate).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}
