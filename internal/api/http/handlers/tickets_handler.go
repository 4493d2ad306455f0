package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/helpdesk-kit/helpdesk/internal/api/dto"
	"github.com/helpdesk-kit/helpdesk/internal/auth"
	"github.com/helpdesk-kit/helpdesk/internal/domain"
	"github.com/helpdesk-kit/helpdesk/internal/service"
	apperrors "github.com/helpdesk-kit/helpdesk/pkg/util/errorutil"
)

// TicketsHandler manages ticket endpoints.
type TicketsHandler struct {
	workflow *service.WorkflowService
	queries  *service.QueryService
}

// NewTicketsHandler constructs the handler.
func NewTicketsHandler(workflow *service.WorkflowService, queries *service.QueryService) *TicketsHandler {
	return &TicketsHandler{workflow: workflow, queries: queries}
}

// Create POST /tickets.
func (h *TicketsHandler) Create(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	ticket, err := h.workflow.Create(c.UserContext(), principal.User.ID, service.TicketCreateInput{
		Title:       req.Title,
		Description: req.Description,
		Priority:    req.Priority,
		Category:    req.Category,
		AssigneeID:  req.AssigneeID,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": dto.TicketFromDomain(ticket)})
}

// List GET /tickets.
func (h *TicketsHandler) List(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}

	filter := service.TicketListFilter{Limit: parseIntQuery(c, "limit", 50)}
	if state := c.Query("state"); state != "" {
		s := domain.TicketState(state)
		filter.State = &s
	}
	if priority := c.Query("priority"); priority != "" {
		p := domain.TicketPriority(priority)
		filter.Priority = &p
	}
	if assignee := c.Query("assignee_id"); assignee != "" {
		id, err := strconv.ParseInt(assignee, 10, 64)
		if err != nil {
			return apperrors.NewValidationError("invalid assignee_id", nil)
		}
		filter.AssigneeID = &id
	}

	// Clients only ever see their own tickets.
	if principal.User.Role == domain.RoleClient {
		filter.OwnerID = &principal.User.ID
	} else if owner := c.Query("owner_id"); owner != "" {
		id, err := strconv.ParseInt(owner, 10, 64)
		if err != nil {
			return apperrors.NewValidationError("invalid owner_id", nil)
		}
		filter.OwnerID = &id
	}

	tickets, err := h.queries.ListTickets(c.UserContext(), filter)
	if err != nil {
		return err
	}
	items := make([]dto.TicketResponse, 0, len(tickets))
	for i := range tickets {
		items = append(items, dto.TicketFromDomain(&tickets[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// Get GET /tickets/:id.
func (h *TicketsHandler) Get(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	ticketID, err := parseIDParam(c)
	if err != nil {
		return err
	}

	ticket, err := h.queries.GetTicket(c.UserContext(), ticketID)
	if err != nil {
		return err
	}
	if principal.User.Role == domain.RoleClient && ticket.OwnerID != principal.User.ID {
		return apperrors.NewForbidden("not your ticket")
	}
	return c.JSON(fiber.Map{"data": dto.TicketFromDomain(ticket)})
}

// ChangeState PATCH /tickets/:id/state.
func (h *TicketsHandler) ChangeState(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	ticketID, err := parseIDParam(c)
	if err != nil {
		return err
	}
	var req dto.ChangeStateRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	result, err := h.workflow.ChangeState(c.UserContext(), ticketID, req.State, principal.User.ID, req.Comment)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": mutationResponse(result)})
}

// Assign POST /tickets/:id/assign.
func (h *TicketsHandler) Assign(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	ticketID, err := parseIDParam(c)
	if err != nil {
		return err
	}
	var req dto.AssignRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.AssigneeID <= 0 {
		return apperrors.NewValidationError("assignee_id required", nil)
	}

	result, err := h.workflow.Assign(c.UserContext(), ticketID, req.AssigneeID, principal.User.ID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": mutationResponse(result)})
}

// Close POST /tickets/:id/close.
func (h *TicketsHandler) Close(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	ticketID, err := parseIDParam(c)
	if err != nil {
		return err
	}
	var req dto.CloseRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	result, err := h.workflow.Close(c.UserContext(), ticketID, principal.User.ID, req.Comment)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": mutationResponse(result)})
}

// ListInteractions GET /tickets/:id/interactions.
func (h *TicketsHandler) ListInteractions(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	ticketID, err := parseIDParam(c)
	if err != nil {
		return err
	}

	if principal.User.Role == domain.RoleClient {
		ticket, err := h.queries.GetTicket(c.UserContext(), ticketID)
		if err != nil {
			return err
		}
		if ticket.OwnerID != principal.User.ID {
			return apperrors.NewForbidden("not your ticket")
		}
	}

	entries, err := h.queries.ListInteractions(c.UserContext(), ticketID, principal.User.Role)
	if err != nil {
		return err
	}
	items := make([]dto.InteractionResponse, 0, len(entries))
	for i := range entries {
		items = append(items, dto.InteractionFromDomain(&entries[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// AddInteraction POST /tickets/:id/interactions.
func (h *TicketsHandler) AddInteraction(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	ticketID, err := parseIDParam(c)
	if err != nil {
		return err
	}
	var req dto.CreateInteractionRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	interaction, err := h.workflow.AddComment(c.UserContext(), ticketID, principal.User.ID, req.Content, req.Internal)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": dto.InteractionFromDomain(interaction)})
}

func mutationResponse(result *service.MutationResult) dto.MutationResponse {
	return dto.MutationResponse{
		TicketID:      result.TicketID,
		State:         result.State,
		InteractionID: result.InteractionID,
	}
}

func requirePrincipal(c *fiber.Ctx) (*auth.Principal, error) {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	return principal, nil
}

func parseIDParam(c *fiber.Ctx) (int64, error) {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.NewValidationError("invalid ticket id", nil)
	}
	return id, nil
}

func parseIntQuery(c *fiber.Ctx, key string, fallback int) int {
	val := c.Query(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}
