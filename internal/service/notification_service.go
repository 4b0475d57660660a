package service

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/protocol-service/internal/config"
	"github.com/spec-kit/protocol-service/internal/domain"
	"github.com/spec-kit/protocol-service/internal/events"
	"github.com/spec-kit/protocol-service/internal/observability"
	"github.com/spec-kit/protocol-service/internal/repository"
)

// NotificationService posts webhook payloads on protocol creation and
// full closure. Delivery is fire-and-forget: failures are logged and
// counted, never surfaced to the mutation that triggered them.
type NotificationService struct {
	dispatcher events.Dispatcher
	protocols  repository.ProtocolRepository
	logger     *zap.Logger
	metrics    *observability.Metrics
	cfg        config.NotificationConfig
	client     *http.Client
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, protocols repository.ProtocolRepository, logger *zap.Logger, metrics *observability.Metrics, cfg config.NotificationConfig) *NotificationService {
	return &NotificationService{
		dispatcher: dispatcher,
		protocols:  protocols,
		logger:     logger,
		metrics:    metrics,
		cfg:        cfg,
		client:     &http.Client{Timeout: cfg.Timeout()},
	}
}

// RegisterHandlers subscribes to the events that produce webhooks.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventProtocolCreated, n.handleProtocolCreated)
	n.dispatcher.Subscribe(events.EventProtocolClosed, n.handleProtocolClosed)
	n.dispatcher.Subscribe(events.EventProtocolForceClosed, n.handleProtocolClosed)
}

// WebhookLineItem is one line in the flat payload.
type WebhookLineItem struct {
	Code        string  `json:"code"`
	Name        string  `json:"name"`
	Quantity    float64 `json:"quantity"`
	Unit        string  `json:"unit"`
	Expiry      string  `json:"expiry,omitempty"`
	Observation string  `json:"observation,omitempty"`
}

// WebhookPayload is the flat JSON contract consumed by the external
// automation service.
type WebhookPayload struct {
	Event            string            `json:"event"`
	Number           string            `json:"number"`
	Status           string            `json:"status"`
	CreationDate     string            `json:"creation_date"`
	CreationTime     string            `json:"creation_time"`
	DriverID         string            `json:"driver_id"`
	DriverName       string            `json:"driver_name"`
	DriverPhone      string            `json:"driver_phone"`
	Unit             string            `json:"unit"`
	ReplacementType  string            `json:"replacement_type"`
	Cause            string            `json:"cause"`
	LineItems        []WebhookLineItem `json:"line_items"`
	DriverAtSiteURL  string            `json:"photo_driver_at_site,omitempty"`
	ProductLotURL    string            `json:"photo_product_lot,omitempty"`
	DamageURL        string            `json:"photo_damage,omitempty"`
	SignedReceiptURL string            `json:"photo_signed_receipt,omitempty"`
	GoodsPhotoURL    string            `json:"photo_delivered_goods,omitempty"`
	ClosingMessage   string            `json:"closing_message,omitempty"`
}

func (n *NotificationService) handleProtocolCreated(ctx context.Context, event events.Event) error {
	n.deliver(event, "protocol_created")
	return nil
}

func (n *NotificationService) handleProtocolClosed(ctx context.Context, event events.Event) error {
	n.deliver(event, "protocol_closed")
	return nil
}

// deliver runs the POST on its own goroutine and context so a slow or
// dead endpoint cannot block the command path.
func (n *NotificationService) deliver(event events.Event, kind string) {
	if strings.TrimSpace(n.cfg.WebhookURL) == "" {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), n.cfg.Timeout())
		defer cancel()

		protocol, err := n.protocols.GetByID(ctx, event.ProtocolID)
		if err != nil {
			n.recordFailure(event, err)
			return
		}
		payload := buildWebhookPayload(protocol, kind)
		body, err := json.Marshal(payload)
		if err != nil {
			n.recordFailure(event, err)
			return
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.cfg.WebhookURL, bytes.NewReader(body))
		if err != nil {
			n.recordFailure(event, err)
			return
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := n.client.Do(req)
		if err != nil {
			n.recordFailure(event, err)
			return
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 300 {
			n.logger.Warn("webhook rejected",
				zap.String("protocol_id", event.ProtocolID),
				zap.Int("status", resp.StatusCode))
			if n.metrics != nil {
				n.metrics.RecordError("webhook", http.MethodPost, "WEBHOOK_REJECTED")
			}
			return
		}
		n.logger.Debug("webhook delivered",
			zap.String("protocol_id", event.ProtocolID),
			zap.String("kind", kind))
	}()
}

func (n *NotificationService) recordFailure(event events.Event, err error) {
	n.logger.Warn("webhook delivery failed",
		zap.String("protocol_id", event.ProtocolID),
		zap.Error(err))
	if n.metrics != nil {
		n.metrics.RecordError("webhook", http.MethodPost, "WEBHOOK_FAILED")
	}
}

func buildWebhookPayload(protocol *domain.Protocol, kind string) WebhookPayload {
	items := make([]WebhookLineItem, 0, len(protocol.LineItems))
	for _, item := range protocol.LineItems {
		items = append(items, WebhookLineItem{
			Code:        item.Code,
			Name:        item.Name,
			Quantity:    item.Quantity,
			Unit:        item.Unit,
			Expiry:      item.Expiry,
			Observation: item.Observation,
		})
	}
	payload := WebhookPayload{
		Event:           kind,
		Number:          protocol.Number,
		Status:          string(protocol.Status),
		CreationDate:    protocol.CreationDate,
		CreationTime:    protocol.CreationTime,
		DriverID:        protocol.Driver.ID,
		DriverName:      protocol.Driver.Name,
		DriverPhone:     protocol.Driver.Phone,
		Unit:            protocol.Unit,
		ReplacementType: string(protocol.ReplacementType),
		Cause:           protocol.Cause,
		LineItems:       items,
		DriverAtSiteURL: protocol.EvidencePhotos.DriverAtSiteURL,
		ProductLotURL:   protocol.EvidencePhotos.ProductLotURL,
		DamageURL:       protocol.EvidencePhotos.DamageURL,
	}
	if protocol.ClosureEvidence != nil {
		payload.SignedReceiptURL = protocol.ClosureEvidence.SignedReceiptURL
		payload.GoodsPhotoURL = protocol.ClosureEvidence.GoodsPhotoURL
		payload.ClosingMessage = protocol.ClosureEvidence.Message
	}
	return payload
}
