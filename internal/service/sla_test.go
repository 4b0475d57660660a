package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/spec-kit/protocol-service/internal/config"
	"github.com/spec-kit/protocol-service/internal/domain"
)

func testClock() *SLAClock {
	return NewSLAClock(config.SLAConfig{WarningDays: 7, CriticalDays: 15})
}

func TestSLAClock_OpenProtocolAgesAgainstToday(t *testing.T) {
	clock := testClock()
	protocol := &domain.Protocol{
		Status:       domain.ProtocolStatusOpen,
		CreationDate: "01/03/2026",
	}

	today := time.Date(2026, 3, 17, 9, 0, 0, 0, time.UTC)
	age := clock.AgeInDays(protocol, today)
	assert.Equal(t, 16, age)
	assert.Equal(t, SeverityCritical, clock.Severity(age))
}

func TestSLAClock_ClosedProtocolStopsAging(t *testing.T) {
	clock := testClock()
	closedAt := time.Date(2026, 3, 6, 18, 45, 0, 0, time.UTC)
	protocol := &domain.Protocol{
		Status:       domain.ProtocolStatusClosed,
		CreationDate: "01/03/2026",
		ClosedAt:     &closedAt,
	}

	// a month later the age is still frozen at closure
	today := time.Date(2026, 4, 17, 9, 0, 0, 0, time.UTC)
	age := clock.AgeInDays(protocol, today)
	assert.Equal(t, 5, age)
	assert.Equal(t, SeverityNormal, clock.Severity(age))
}

func TestSLAClock_ClosedWithoutTimestampFallsBackToTrail(t *testing.T) {
	clock := testClock()
	protocol := &domain.Protocol{
		Status:       domain.ProtocolStatusClosed,
		CreationDate: "01/03/2026",
		AuditTrail: []domain.AuditEntry{
			{Action: domain.ActionCreated, Date: "01/03/2026"},
			{Action: domain.ActionPartialDelivery, Date: "03/03/2026"},
			{Action: domain.ActionClosed, Date: "09/03/2026"},
		},
	}

	today := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, 8, clock.AgeInDays(protocol, today))
}

func TestSLAClock_ForceClosureMarksClosureDate(t *testing.T) {
	clock := testClock()
	protocol := &domain.Protocol{
		Status:       domain.ProtocolStatusClosed,
		CreationDate: "01/03/2026",
		AuditTrail: []domain.AuditEntry{
			{Action: domain.ActionCreated, Date: "01/03/2026"},
			{Action: domain.ActionForceClosed, Date: "04/03/2026"},
		},
	}

	today := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, 3, clock.AgeInDays(protocol, today))
}

func TestSLAClock_ClosedWithNoMarkerUsesOpenFormula(t *testing.T) {
	clock := testClock()
	protocol := &domain.Protocol{
		Status:       domain.ProtocolStatusClosed,
		CreationDate: "01/03/2026",
	}

	today := time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, 10, clock.AgeInDays(protocol, today))
}

func TestSLAClock_ReopenedProtocolResumesAging(t *testing.T) {
	clock := testClock()
	// the stale closed entry stays in the trail after reopening; only
	// the current status decides whether it freezes the age
	protocol := &domain.Protocol{
		Status:       domain.ProtocolStatusOpen,
		CreationDate: "01/03/2026",
		AuditTrail: []domain.AuditEntry{
			{Action: domain.ActionCreated, Date: "01/03/2026"},
			{Action: domain.ActionClosed, Date: "05/03/2026"},
			{Action: domain.ActionReopened, Date: "20/03/2026"},
		},
	}

	today := time.Date(2026, 3, 21, 9, 0, 0, 0, time.UTC)
	age := clock.AgeInDays(protocol, today)
	assert.Equal(t, 20, age, "a reopened protocol ages against today, not its old closure date")
	assert.Equal(t, SeverityCritical, clock.Severity(age))
}

func TestSLAClock_SeverityBands(t *testing.T) {
	clock := testClock()

	assert.Equal(t, SeverityNormal, clock.Severity(0))
	assert.Equal(t, SeverityNormal, clock.Severity(7), "warning threshold is exclusive")
	assert.Equal(t, SeverityWarning, clock.Severity(8))
	assert.Equal(t, SeverityWarning, clock.Severity(14))
	assert.Equal(t, SeverityCritical, clock.Severity(15), "critical threshold is inclusive")
	assert.Equal(t, SeverityCritical, clock.Severity(40))
}

func TestSLAClock_PartialDaysNeverRoundUp(t *testing.T) {
	clock := testClock()
	protocol := &domain.Protocol{
		Status:       domain.ProtocolStatusOpen,
		CreationDate: "10/03/2026",
	}

	// 23:59 the same calendar day is still age zero
	today := time.Date(2026, 3, 10, 23, 59, 0, 0, time.UTC)
	assert.Equal(t, 0, clock.AgeInDays(protocol, today))
}

func TestSLAClock_MalformedCreationDateIsZero(t *testing.T) {
	clock := testClock()
	protocol := &domain.Protocol{
		Status:       domain.ProtocolStatusOpen,
		CreationDate: "2026-03-01",
	}
	assert.Equal(t, 0, clock.AgeInDays(protocol, time.Now()))
}
