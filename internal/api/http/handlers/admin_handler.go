package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/curator-desk/internal/api/dto"
	"github.com/spec-kit/curator-desk/internal/observability"
	"github.com/spec-kit/curator-desk/internal/service"
	apperrors "github.com/spec-kit/curator-desk/pkg/util/errorutil"
)

// AdminHandler exposes ticket inspection and the curator directory.
type AdminHandler struct {
	assignments *service.AssignmentService
	directory   *service.DirectoryService
	metrics     *observability.Metrics
}

// NewAdminHandler constructs handler.
func NewAdminHandler(assignments *service.AssignmentService, directory *service.DirectoryService, metrics *observability.Metrics) *AdminHandler {
	return &AdminHandler{assignments: assignments, directory: directory, metrics: metrics}
}

// GetTicket returns derived state, history and messages of a ticket.
func (h *AdminHandler) GetTicket(c *fiber.Ctx) error {
	view, err := h.assignments.Inspect(c.UserContext(), c.Params("id"))
	if err != nil {
		return apperrors.MapError(err)
	}
	return c.JSON(dto.NewTicketDetailResponse(view))
}

// ListCurators returns every curator, deactivated ones included.
func (h *AdminHandler) ListCurators(c *fiber.Ctx) error {
	curators, err := h.directory.ListAll(c.UserContext())
	if err != nil {
		return apperrors.MapError(err)
	}
	resp := make([]dto.CuratorResponse, 0, len(curators))
	for _, curator := range curators {
		resp = append(resp, dto.NewCuratorResponse(curator))
	}
	return c.JSON(fiber.Map{"curators": resp})
}

// RegisterCurator adds or updates a curator.
func (h *AdminHandler) RegisterCurator(c *fiber.Ctx) error {
	var req dto.RegisterCuratorRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	active := true
	if req.Active != nil {
		active = *req.Active
	}
	curator, err := h.directory.Register(c.UserContext(), req.ID, req.DisplayName, active)
	if err != nil {
		return apperrors.MapError(err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.NewCuratorResponse(*curator))
}

// Metrics returns the in-memory counters.
func (h *AdminHandler) Metrics(c *fiber.Ctx) error {
	return c.JSON(h.metrics.Snapshot())
}
