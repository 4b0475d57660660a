package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/protocol-service/internal/api/dto"
	"github.com/spec-kit/protocol-service/internal/auth"
	"github.com/spec-kit/protocol-service/internal/offline"
	"github.com/spec-kit/protocol-service/internal/service"
	apperrors "github.com/spec-kit/protocol-service/pkg/util"
)

// SyncHandler accepts batched replays from device-local queues once a
// driver is back online. Envelopes are applied in submission order;
// the first transient failure stops the batch so the device keeps the
// remainder queued.
type SyncHandler struct {
	service *service.ProtocolService
}

// NewSyncHandler constructs handler.
func NewSyncHandler(protocolService *service.ProtocolService) *SyncHandler {
	return &SyncHandler{service: protocolService}
}

// Sync POST /sync/protocols.
func (h *SyncHandler) Sync(c *fiber.Ctx) error {
	if _, ok := auth.ActorFromContext(c); !ok {
		return apperrors.NewUnauthorized("actor required")
	}
	var req dto.SyncRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if len(req.Envelopes) == 0 {
		return apperrors.NewValidationError("no envelopes submitted", nil)
	}

	results := make([]fiber.Map, 0, len(req.Envelopes))
	for _, item := range req.Envelopes {
		env := offline.Envelope{
			ID:       item.Protocol.ID,
			Op:       offline.Op(item.Op),
			Protocol: item.Protocol.ToDomain(),
		}
		err := h.service.SubmitQueued(c.Context(), env)
		switch {
		case err == nil:
			results = append(results, fiber.Map{"id": env.ID, "status": "applied"})
		case apperrors.IsTransient(err):
			results = append(results, fiber.Map{"id": env.ID, "status": "retry", "error": err.Error()})
			return c.Status(http.StatusMultiStatus).JSON(fiber.Map{"data": results})
		default:
			results = append(results, fiber.Map{"id": env.ID, "status": "rejected", "error": err.Error()})
		}
	}
	return c.JSON(fiber.Map{"data": results})
}
