package dto

import (
	"time"

	"github.com/spec-kit/protocol-service/internal/domain"
	"github.com/spec-kit/protocol-service/internal/service"
)

// LineItemRequest describes one product line on a draft.
type LineItemRequest struct {
	Code        string  `json:"code"`
	Name        string  `json:"name"`
	Unit        string  `json:"unit"`
	Quantity    float64 `json:"quantity"`
	Expiry      string  `json:"expiry"`
	Observation string  `json:"observation"`
}

// EvidencePhotosRequest carries creation-time photo URLs.
type EvidencePhotosRequest struct {
	DriverAtSiteURL string `json:"driver_at_site_url"`
	ProductLotURL   string `json:"product_lot_url"`
	DamageURL       string `json:"damage_url"`
}

// CreateProtocolRequest payload.
type CreateProtocolRequest struct {
	ID              string                `json:"id"`
	DriverPhone     string                `json:"driver_phone"`
	Unit            string                `json:"unit"`
	PDVCode         string                `json:"pdv_code"`
	InvoiceNumber   string                `json:"invoice_number"`
	ReplacementType string                `json:"replacement_type"`
	Cause           string                `json:"cause"`
	LineItems       []LineItemRequest     `json:"line_items"`
	EvidencePhotos  EvidencePhotosRequest `json:"evidence_photos"`
}

// GateRequest toggles the validation or launch flag.
type GateRequest struct {
	Value bool `json:"value"`
}

// DeliverRequest payload.
type DeliverRequest struct {
	Indices          []int  `json:"indices"`
	AllRemaining     bool   `json:"all_remaining"`
	SignedReceiptURL string `json:"signed_receipt_url"`
	GoodsPhotoURL    string `json:"goods_photo_url"`
	Note             string `json:"note"`
}

// ReasonRequest carries a free-text reason/message.
type ReasonRequest struct {
	Reason string `json:"reason"`
}

// SyncRequest replays device-queued envelopes in order.
type SyncRequest struct {
	Envelopes []SyncEnvelope `json:"envelopes"`
}

// SyncEnvelope is one queued submission from a device.
type SyncEnvelope struct {
	Op       string           `json:"op"`
	Protocol ProtocolResponse `json:"protocol"`
}

// LineItemResponse representation.
type LineItemResponse struct {
	Code                  string     `json:"code"`
	Name                  string     `json:"name"`
	Unit                  string     `json:"unit"`
	Quantity              float64    `json:"quantity"`
	Expiry                string     `json:"expiry,omitempty"`
	Observation           string     `json:"observation,omitempty"`
	Delivered             bool       `json:"delivered"`
	DeliveredAt           *time.Time `json:"delivered_at,omitempty"`
	DeliveredByDriverID   string     `json:"delivered_by_driver_id,omitempty"`
	DeliveredByDriverName string     `json:"delivered_by_driver_name,omitempty"`
}

// AuditEntryResponse representation.
type AuditEntryResponse struct {
	ID        string `json:"id"`
	ActorID   string `json:"actor_id"`
	ActorName string `json:"actor_name"`
	Date      string `json:"date"`
	Time      string `json:"time"`
	Action    string `json:"action"`
	Note      string `json:"note,omitempty"`
}

// ClosureEvidenceResponse representation.
type ClosureEvidenceResponse struct {
	SignedReceiptURL string `json:"signed_receipt_url"`
	GoodsPhotoURL    string `json:"goods_photo_url"`
	Message          string `json:"message,omitempty"`
	ClosedByID       string `json:"closed_by_id"`
	ClosedByName     string `json:"closed_by_name"`
}

// ProtocolResponse provides the full protocol view.
type ProtocolResponse struct {
	ID              string                   `json:"id"`
	Number          string                   `json:"number"`
	Status          string                   `json:"status"`
	Version         int64                    `json:"version"`
	CreatedAt       time.Time                `json:"created_at"`
	CreationDate    string                   `json:"creation_date"`
	CreationTime    string                   `json:"creation_time"`
	DriverID        string                   `json:"driver_id"`
	DriverName      string                   `json:"driver_name"`
	DriverUnit      string                   `json:"driver_unit,omitempty"`
	DriverPhone     string                   `json:"driver_phone,omitempty"`
	Unit            string                   `json:"unit"`
	PDVCode         string                   `json:"pdv_code,omitempty"`
	InvoiceNumber   string                   `json:"invoice_number,omitempty"`
	ReplacementType string                   `json:"replacement_type"`
	Cause           string                   `json:"cause,omitempty"`
	LineItems       []LineItemResponse       `json:"line_items"`
	Validated       bool                     `json:"validated"`
	Launched        bool                     `json:"launched"`
	Hidden          bool                     `json:"hidden"`
	Reopened        bool                     `json:"reopened"`
	ClosedAt        *time.Time               `json:"closed_at,omitempty"`
	AgeDays         int                      `json:"age_days"`
	AgeSeverity     string                   `json:"age_severity"`
	EvidencePhotos  EvidencePhotosRequest    `json:"evidence_photos"`
	ClosureEvidence *ClosureEvidenceResponse `json:"closure_evidence,omitempty"`
	AuditTrail      []AuditEntryResponse     `json:"audit_trail,omitempty"`
}

// FromDomain maps a protocol to its response, with SLA fields filled
// by the given clock.
func FromDomain(protocol *domain.Protocol, clock *service.SLAClock, now time.Time) ProtocolResponse {
	items := make([]LineItemResponse, 0, len(protocol.LineItems))
	for _, item := range protocol.LineItems {
		items = append(items, LineItemResponse{
			Code:                  item.Code,
			Name:                  item.Name,
			Unit:                  item.Unit,
			Quantity:              item.Quantity,
			Expiry:                item.Expiry,
			Observation:           item.Observation,
			Delivered:             item.Delivered,
			DeliveredAt:           item.DeliveredAt,
			DeliveredByDriverID:   item.DeliveredByDriverID,
			DeliveredByDriverName: item.DeliveredByDriverName,
		})
	}
	trail := make([]AuditEntryResponse, 0, len(protocol.AuditTrail))
	for _, entry := range protocol.AuditTrail {
		trail = append(trail, AuditEntryResponse{
			ID:        entry.ID,
			ActorID:   entry.ActorID,
			ActorName: entry.ActorName,
			Date:      entry.Date,
			Time:      entry.Time,
			Action:    string(entry.Action),
			Note:      entry.Note,
		})
	}

	resp := ProtocolResponse{
		ID:              protocol.ID,
		Number:          protocol.Number,
		Status:          string(protocol.Status),
		Version:         protocol.Version,
		CreatedAt:       protocol.CreatedAt,
		CreationDate:    protocol.CreationDate,
		CreationTime:    protocol.CreationTime,
		DriverID:        protocol.Driver.ID,
		DriverName:      protocol.Driver.Name,
		DriverUnit:      protocol.Driver.Unit,
		DriverPhone:     protocol.Driver.Phone,
		Unit:            protocol.Unit,
		PDVCode:         protocol.PDVCode,
		InvoiceNumber:   protocol.InvoiceNumber,
		ReplacementType: string(protocol.ReplacementType),
		Cause:           protocol.Cause,
		LineItems:       items,
		Validated:       protocol.Validated,
		Launched:        protocol.Launched,
		Hidden:          protocol.Hidden,
		Reopened:        protocol.IsReopened(),
		ClosedAt:        protocol.ClosedAt,
		EvidencePhotos: EvidencePhotosRequest{
			DriverAtSiteURL: protocol.EvidencePhotos.DriverAtSiteURL,
			ProductLotURL:   protocol.EvidencePhotos.ProductLotURL,
			DamageURL:       protocol.EvidencePhotos.DamageURL,
		},
		AuditTrail: trail,
	}
	if protocol.ClosureEvidence != nil {
		resp.ClosureEvidence = &ClosureEvidenceResponse{
			SignedReceiptURL: protocol.ClosureEvidence.SignedReceiptURL,
			GoodsPhotoURL:    protocol.ClosureEvidence.GoodsPhotoURL,
			Message:          protocol.ClosureEvidence.Message,
			ClosedByID:       protocol.ClosureEvidence.ClosedByID,
			ClosedByName:     protocol.ClosureEvidence.ClosedByName,
		}
	}
	if clock != nil {
		resp.AgeDays = clock.AgeInDays(protocol, now)
		resp.AgeSeverity = string(clock.Severity(resp.AgeDays))
	}
	return resp
}

// ToDomain maps a synced protocol payload back into the domain.
func (r ProtocolResponse) ToDomain() domain.Protocol {
	items := make([]domain.LineItem, 0, len(r.LineItems))
	for _, item := range r.LineItems {
		items = append(items, domain.LineItem{
			Code:                  item.Code,
			Name:                  item.Name,
			Unit:                  item.Unit,
			Quantity:              item.Quantity,
			Expiry:                item.Expiry,
			Observation:           item.Observation,
			Delivered:             item.Delivered,
			DeliveredAt:           item.DeliveredAt,
			DeliveredByDriverID:   item.DeliveredByDriverID,
			DeliveredByDriverName: item.DeliveredByDriverName,
		})
	}
	trail := make([]domain.AuditEntry, 0, len(r.AuditTrail))
	for _, entry := range r.AuditTrail {
		trail = append(trail, domain.AuditEntry{
			ID:        entry.ID,
			ActorID:   entry.ActorID,
			ActorName: entry.ActorName,
			Date:      entry.Date,
			Time:      entry.Time,
			Action:    domain.AuditAction(entry.Action),
			Note:      entry.Note,
		})
	}

	protocol := domain.Protocol{
		ID:           r.ID,
		Number:       r.Number,
		Status:       domain.ProtocolStatus(r.Status),
		Version:      r.Version,
		CreatedAt:    r.CreatedAt,
		CreationDate: r.CreationDate,
		CreationTime: r.CreationTime,
		Driver: domain.DriverRef{
			ID:    r.DriverID,
			Name:  r.DriverName,
			Unit:  r.DriverUnit,
			Phone: r.DriverPhone,
		},
		Unit:            r.Unit,
		PDVCode:         r.PDVCode,
		InvoiceNumber:   r.InvoiceNumber,
		ReplacementType: domain.ReplacementType(r.ReplacementType),
		Cause:           r.Cause,
		LineItems:       items,
		Validated:       r.Validated,
		Launched:        r.Launched,
		Hidden:          r.Hidden,
		ClosedAt:        r.ClosedAt,
		EvidencePhotos: domain.EvidencePhotos{
			DriverAtSiteURL: r.EvidencePhotos.DriverAtSiteURL,
			ProductLotURL:   r.EvidencePhotos.ProductLotURL,
			DamageURL:       r.EvidencePhotos.DamageURL,
		},
		AuditTrail: trail,
	}
	if r.ClosureEvidence != nil {
		protocol.ClosureEvidence = &domain.ClosureEvidence{
			SignedReceiptURL: r.ClosureEvidence.SignedReceiptURL,
			GoodsPhotoURL:    r.ClosureEvidence.GoodsPhotoURL,
			Message:          r.ClosureEvidence.Message,
			ClosedByID:       r.ClosureEvidence.ClosedByID,
			ClosedByName:     r.ClosureEvidence.ClosedByName,
		}
	}
	return protocol
}
