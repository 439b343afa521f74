package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/crm-service/internal/api/dto"
	"github.com/spec-kit/crm-service/internal/domain"
	"github.com/spec-kit/crm-service/internal/service"
	apperrors "github.com/spec-kit/crm-service/pkg/util/errorutil"
)

// TicketsHandler manages ticket endpoints.
type TicketsHandler struct {
	service *service.TicketService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService) *TicketsHandler {
	return &TicketsHandler{service: ticketService}
}

// CreateTicket POST /api/tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	view, err := h.service.CreateTicket(c.UserContext(), actor, service.TicketCreateInput{
		CustomerID:  req.CustomerID,
		Subject:     req.Subject,
		Description: req.Description,
		Category:    req.Category,
		Priority:    req.Priority,
		Status:      req.Status,
		AssignedTo:  req.AssignedTo,
		Attachments: req.Attachments,
		SLADeadline: req.SLADeadline,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"message": "Ticket created successfully",
		"data":    ticketResponse(view),
	})
}

// ListTickets GET /api/tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	views, err := h.service.ListTickets(c.UserContext(), actor, parseTicketQuery(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponses(views)})
}

// GetTicket GET /api/tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	view, err := h.service.GetTicket(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponse(view)})
}

// UpdateTicket PUT /api/tickets/:id.
func (h *TicketsHandler) UpdateTicket(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	patch, err := parsePatch(c)
	if err != nil {
		return err
	}
	view, err := h.service.UpdateTicket(c.UserContext(), actor, c.Params("id"), patch)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"message": "Ticket updated successfully",
		"data":    ticketResponse(view),
	})
}

// AssignTicket PATCH /api/tickets/:id/assign.
func (h *TicketsHandler) AssignTicket(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req struct {
		AssignedTo json.RawMessage `json:"assignedTo"`
	}
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	view, err := h.service.AssignTicket(c.UserContext(), actor, c.Params("id"), req.AssignedTo)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"message": "Ticket assignment updated",
		"data":    ticketResponse(view),
	})
}

// CustomerSummary GET /api/tickets/summary/customers.
func (h *TicketsHandler) CustomerSummary(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	rows, err := h.service.CustomerSummary(c.UserContext(), actor)
	if err != nil {
		return err
	}
	items := make([]dto.CustomerTicketSummaryResponse, 0, len(rows))
	for _, row := range rows {
		items = append(items, dto.CustomerTicketSummaryResponse{
			CustomerID:    row.CustomerID,
			Name:          row.Name,
			ContactName:   row.ContactName,
			Email:         row.Email,
			Phone:         row.Phone,
			TotalRaised:   row.TotalRaised,
			TotalResolved: row.TotalResolved,
		})
	}
	return c.JSON(fiber.Map{"data": items})
}

// ListForCustomer GET /api/tickets/customer/:customerId.
func (h *TicketsHandler) ListForCustomer(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	views, err := h.service.ListForCustomer(c.UserContext(), actor, c.Params("customerId"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponses(views)})
}

func parseTicketQuery(c *fiber.Ctx) service.TicketListFilter {
	return service.TicketListFilter{
		Status:   domain.TicketStatus(strings.TrimSpace(c.Query("status"))),
		Priority: domain.TicketPriority(strings.TrimSpace(c.Query("priority"))),
		Category: domain.TicketCategory(strings.TrimSpace(c.Query("category"))),
		Search:   c.Query("search"),
		Limit:    parseInt(c.Query("limit"), 0),
	}
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

func ticketResponses(views []service.TicketView) []dto.TicketResponse {
	items := make([]dto.TicketResponse, 0, len(views))
	for i := range views {
		items = append(items, ticketResponse(&views[i]))
	}
	return items
}

func ticketResponse(view *service.TicketView) dto.TicketResponse {
	ticket := view.Ticket
	resp := dto.TicketResponse{
		ID:          ticket.ID,
		TicketID:    ticket.TicketID,
		CompanyID:   ticket.CompanyID,
		CustomerID:  ticket.CustomerID,
		Subject:     ticket.Subject,
		Description: ticket.Description,
		Category:    ticket.Category,
		Priority:    ticket.Priority,
		Status:      ticket.Status,
		AssignedTo:  assigneeResponses(view.Assignees),
		Attachments: ticket.Attachments,
		SLADeadline: ticket.SLADeadline,
		Audit:       auditResponses(ticket.Audit),
		CreatedAt:   ticket.CreatedAt,
		UpdatedAt:   ticket.UpdatedAt,
	}
	if resp.Attachments == nil {
		resp.Attachments = []string{}
	}
	if cb := view.Customer; cb != nil {
		resp.Customer = &dto.CustomerBriefResponse{
			ID:          cb.ID,
			Name:        cb.Name,
			ContactName: cb.ContactName,
			Email:       cb.Email,
			Phone:       cb.Phone,
		}
	}
	return resp
}
