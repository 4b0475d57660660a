package handlers

import (
	"io"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/protocol-service/internal/auth"
	"github.com/spec-kit/protocol-service/internal/storage"
	apperrors "github.com/spec-kit/protocol-service/pkg/util"
)

// EvidenceHandler uploads photo evidence and returns the stored URL.
// Uploads happen before the command that references them, so a failed
// or abandoned upload mutates nothing.
type EvidenceHandler struct {
	photos storage.PhotoStore
}

// NewEvidenceHandler constructs handler.
func NewEvidenceHandler(photos storage.PhotoStore) *EvidenceHandler {
	return &EvidenceHandler{photos: photos}
}

// Upload POST /evidence.
func (h *EvidenceHandler) Upload(c *fiber.Ctx) error {
	if _, ok := auth.ActorFromContext(c); !ok {
		return apperrors.NewUnauthorized("actor required")
	}
	number := c.Query("protocol_number")
	slot := c.Query("slot")
	if number == "" || slot == "" {
		return apperrors.NewValidationError("protocol_number and slot are required", nil)
	}

	fileHeader, err := c.FormFile("photo")
	if err != nil {
		return apperrors.NewValidationError("photo file is required", nil)
	}
	file, err := fileHeader.Open()
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		return apperrors.NewInternalError(err)
	}

	url, err := h.photos.Upload(c.Context(), data, number, slot)
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": fiber.Map{"url": url}})
}
