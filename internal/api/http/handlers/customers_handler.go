package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/crm-service/internal/api/dto"
	"github.com/spec-kit/crm-service/internal/service"
	apperrors "github.com/spec-kit/crm-service/pkg/util/errorutil"
)

// CustomersHandler serves the customer lifecycle endpoints.
type CustomersHandler struct {
	service *service.CustomerService
}

// NewCustomersHandler constructs handler.
func NewCustomersHandler(customerService *service.CustomerService) *CustomersHandler {
	return &CustomersHandler{service: customerService}
}

// Create POST /api/customers.
func (h *CustomersHandler) Create(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req dto.CreateCustomerRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	view, err := h.service.Create(c.UserContext(), actor, service.CustomerCreateInput{
		Name:        req.Name,
		ContactName: req.ContactName,
		Email:       req.Email,
		Phone:       req.Phone,
		Location:    req.Location,
		LeadSource:  req.LeadSource,
		Status:      req.Status,
		AssignedTo:  req.AssignedTo,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"message": "Customer created successfully",
		"data":    customerResponse(view),
	})
}

// List GET /api/customers.
func (h *CustomersHandler) List(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	views, err := h.service.List(c.UserContext(), actor)
	if err != nil {
		return err
	}
	items := make([]dto.CustomerResponse, 0, len(views))
	for i := range views {
		items = append(items, customerResponse(&views[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// Get GET /api/customers/:id.
func (h *CustomersHandler) Get(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	view, err := h.service.Get(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": customerResponse(view)})
}

// Update PUT /api/customers/:id.
func (h *CustomersHandler) Update(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	patch, err := parsePatch(c)
	if err != nil {
		return err
	}
	view, err := h.service.Update(c.UserContext(), actor, c.Params("id"), patch)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"message": "Customer updated successfully",
		"data":    customerResponse(view),
	})
}

// Delete DELETE /api/customers/:id.
func (h *CustomersHandler) Delete(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	view, err := h.service.SoftDelete(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"message": "Customer deactivated successfully",
		"data":    customerResponse(view),
	})
}

// Restore PUT /api/customers/:id/restore.
func (h *CustomersHandler) Restore(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	view, err := h.service.Restore(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"message": "Customer restored successfully",
		"data":    customerResponse(view),
	})
}

// Convert POST /api/customers/:id/convert.
func (h *CustomersHandler) Convert(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	view, err := h.service.Convert(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"message": "Lead converted successfully",
		"data":    customerResponse(view),
	})
}

func customerResponse(view *service.CustomerView) dto.CustomerResponse {
	customer := view.Customer
	return dto.CustomerResponse{
		ID:               customer.ID,
		CompanyID:        customer.CompanyID,
		Name:             customer.Name,
		ContactName:      customer.ContactName,
		Email:            customer.Email,
		Phone:            customer.Phone,
		Location:         customer.Location,
		LeadSource:       customer.LeadSource,
		CreatedBy:        customer.CreatedBy,
		CreatedByName:    customer.CreatedByName,
		Status:           customer.Status,
		State:            customer.State,
		AssignedTo:       assigneeResponses(view.Assignees),
		ConversionDate:   customer.ConversionDate,
		ConversionSource: customer.ConversionSource,
		Audit:            auditResponses(customer.Audit),
		DeletedAt:        customer.DeletedAt,
		DeletedBy:        customer.DeletedBy,
		CreatedAt:        customer.CreatedAt,
		UpdatedAt:        customer.UpdatedAt,
	}
}
