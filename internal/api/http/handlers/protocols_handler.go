package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/protocol-service/internal/api/dto"
	"github.com/spec-kit/protocol-service/internal/auth"
	"github.com/spec-kit/protocol-service/internal/domain"
	"github.com/spec-kit/protocol-service/internal/repository"
	"github.com/spec-kit/protocol-service/internal/service"
	apperrors "github.com/spec-kit/protocol-service/pkg/util"
)

// ProtocolsHandler serves the protocol lifecycle endpoints.
type ProtocolsHandler struct {
	service *service.ProtocolService
	clock   *service.SLAClock
}

// NewProtocolsHandler constructs handler.
func NewProtocolsHandler(protocolService *service.ProtocolService, clock *service.SLAClock) *ProtocolsHandler {
	return &ProtocolsHandler{service: protocolService, clock: clock}
}

// Create POST /protocols.
func (h *ProtocolsHandler) Create(c *fiber.Ctx) error {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("actor required")
	}
	var req dto.CreateProtocolRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	items := make([]service.LineItemInput, 0, len(req.LineItems))
	for _, item := range req.LineItems {
		items = append(items, service.LineItemInput{
			Code:        item.Code,
			Name:        item.Name,
			Unit:        item.Unit,
			Quantity:    item.Quantity,
			Expiry:      item.Expiry,
			Observation: item.Observation,
		})
	}
	input := service.CreateInput{
		ID: req.ID,
		Driver: service.DriverInput{
			ID:    actor.ID,
			Name:  actor.Name,
			Unit:  actor.Unit,
			Phone: req.DriverPhone,
		},
		Unit:            req.Unit,
		PDVCode:         req.PDVCode,
		InvoiceNumber:   req.InvoiceNumber,
		ReplacementType: domain.ReplacementType(req.ReplacementType),
		Cause:           req.Cause,
		LineItems:       items,
		EvidencePhotos: domain.EvidencePhotos{
			DriverAtSiteURL: req.EvidencePhotos.DriverAtSiteURL,
			ProductLotURL:   req.EvidencePhotos.ProductLotURL,
			DamageURL:       req.EvidencePhotos.DamageURL,
		},
	}

	result, err := h.service.Create(c.Context(), actor, input)
	if err != nil {
		return err
	}
	status := http.StatusCreated
	if result.Queued {
		status = http.StatusAccepted
	} else if result.Duplicate {
		status = http.StatusOK
	}
	return c.Status(status).JSON(fiber.Map{
		"data":   dto.FromDomain(result.Protocol, h.clock, time.Now()),
		"queued": result.Queued,
	})
}

// List GET /protocols.
func (h *ProtocolsHandler) List(c *fiber.Ctx) error {
	if _, ok := auth.ActorFromContext(c); !ok {
		return apperrors.NewUnauthorized("actor required")
	}
	filter := parseProtocolFilter(c)
	protocols, err := h.service.List(c.Context(), filter)
	if err != nil {
		return err
	}
	now := time.Now()
	items := make([]dto.ProtocolResponse, 0, len(protocols))
	for i := range protocols {
		items = append(items, dto.FromDomain(&protocols[i], h.clock, now))
	}
	return c.JSON(fiber.Map{"data": items})
}

// Get GET /protocols/:id.
func (h *ProtocolsHandler) Get(c *fiber.Ctx) error {
	if _, ok := auth.ActorFromContext(c); !ok {
		return apperrors.NewUnauthorized("actor required")
	}
	protocol, err := h.service.Get(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.FromDomain(protocol, h.clock, time.Now())})
}

// SetValidation POST /protocols/:id/validation.
func (h *ProtocolsHandler) SetValidation(c *fiber.Ctx) error {
	return h.gate(c, h.service.SetValidated)
}

// SetLaunch POST /protocols/:id/launch.
func (h *ProtocolsHandler) SetLaunch(c *fiber.Ctx) error {
	return h.gate(c, h.service.SetLaunched)
}

func (h *ProtocolsHandler) gate(c *fiber.Ctx, toggle func(ctx context.Context, actor domain.Actor, id string, value bool) (*domain.Protocol, error)) error {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("actor required")
	}
	var req dto.GateRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	protocol, err := toggle(c.Context(), actor, c.Params("id"), req.Value)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.FromDomain(protocol, h.clock, time.Now())})
}

// Deliver POST /protocols/:id/deliveries.
func (h *ProtocolsHandler) Deliver(c *fiber.Ctx) error {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("actor required")
	}
	var req dto.DeliverRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	evidence := service.ClosureEvidenceInput{
		SignedReceiptURL: req.SignedReceiptURL,
		GoodsPhotoURL:    req.GoodsPhotoURL,
		Message:          req.Note,
	}

	var (
		protocol *domain.Protocol
		err      error
	)
	if req.AllRemaining {
		protocol, err = h.service.DeliverRemaining(c.Context(), actor, c.Params("id"), evidence, req.Note)
	} else {
		protocol, err = h.service.DeliverItems(c.Context(), actor, c.Params("id"), req.Indices, evidence, req.Note)
	}
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.FromDomain(protocol, h.clock, time.Now())})
}

// Reopen POST /protocols/:id/reopen.
func (h *ProtocolsHandler) Reopen(c *fiber.Ctx) error {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("actor required")
	}
	var req dto.ReasonRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	protocol, err := h.service.Reopen(c.Context(), actor, c.Params("id"), req.Reason)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.FromDomain(protocol, h.clock, time.Now())})
}

// Hide POST /protocols/:id/hide.
func (h *ProtocolsHandler) Hide(c *fiber.Ctx) error {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("actor required")
	}
	protocol, err := h.service.Hide(c.Context(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.FromDomain(protocol, h.clock, time.Now())})
}

// ForceClose POST /protocols/:id/force-close.
func (h *ProtocolsHandler) ForceClose(c *fiber.Ctx) error {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("actor required")
	}
	var req dto.ReasonRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	protocol, err := h.service.ForceClose(c.Context(), actor, c.Params("id"), req.Reason)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.FromDomain(protocol, h.clock, time.Now())})
}

func parseProtocolFilter(c *fiber.Ctx) repository.ProtocolFilter {
	filter := repository.ProtocolFilter{}
	if unit := c.Query("unit"); unit != "" {
		filter.Unit = &unit
	}
	if driverID := c.Query("driver_id"); driverID != "" {
		filter.DriverID = &driverID
	}
	if statusStr := c.Query("status"); statusStr != "" {
		for _, part := range strings.Split(statusStr, ",") {
			filter.Statuses = append(filter.Statuses, domain.ProtocolStatus(strings.TrimSpace(part)))
		}
	}
	if c.Query("include_hidden") == "true" {
		filter.IncludeHidden = true
	}
	if from := parseTime(c.Query("created_from")); from != nil {
		filter.CreatedFrom = from
	}
	if to := parseTime(c.Query("created_to")); to != nil {
		filter.CreatedTo = to
	}
	page := parseInt(c.Query("page"), 1)
	pageSize := parseInt(c.Query("page_size"), 50)
	filter.Offset = (page - 1) * pageSize
	filter.Limit = pageSize
	return filter
}

func parseTime(val string) *time.Time {
	if val == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, val)
	if err != nil {
		return nil
	}
	return &t
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}
