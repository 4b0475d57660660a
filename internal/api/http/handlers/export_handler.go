package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/protocol-service/internal/auth"
	"github.com/spec-kit/protocol-service/internal/service"
	apperrors "github.com/spec-kit/protocol-service/pkg/util"
)

// ExportHandler serves the flat protocol projections.
type ExportHandler struct {
	service *service.ExportService
}

// NewExportHandler constructs handler.
func NewExportHandler(exportService *service.ExportService) *ExportHandler {
	return &ExportHandler{service: exportService}
}

// CSV GET /exports/protocols.csv.
func (h *ExportHandler) CSV(c *fiber.Ctx) error {
	if _, ok := auth.ActorFromContext(c); !ok {
		return apperrors.NewUnauthorized("actor required")
	}
	data, err := h.service.ExportCSV(c.Context(), parseProtocolFilter(c))
	if err != nil {
		return err
	}
	c.Set(fiber.HeaderContentType, "text/csv; charset=utf-8")
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="protocols.csv"`)
	return c.Send(data)
}

// XLSX GET /exports/protocols.xlsx.
func (h *ExportHandler) XLSX(c *fiber.Ctx) error {
	if _, ok := auth.ActorFromContext(c); !ok {
		return apperrors.NewUnauthorized("actor required")
	}
	data, err := h.service.ExportXLSX(c.Context(), parseProtocolFilter(c))
	if err != nil {
		return err
	}
	c.Set(fiber.HeaderContentType, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="protocols.xlsx"`)
	return c.Send(data)
}
