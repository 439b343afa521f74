package handlers

import (
	"fmt"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/crm-service/internal/api/dto"
	"github.com/spec-kit/crm-service/internal/service"
	apperrors "github.com/spec-kit/crm-service/pkg/util/errorutil"
)

// EmployeesHandler serves business-manager employee management.
type EmployeesHandler struct {
	service *service.EmployeeService
}

// NewEmployeesHandler constructs handler.
func NewEmployeesHandler(employeeService *service.EmployeeService) *EmployeesHandler {
	return &EmployeesHandler{service: employeeService}
}

// Add POST /api/employees.
func (h *EmployeesHandler) Add(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req dto.EmployeeRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	employee, err := h.service.AddEmployee(c.UserContext(), actor, employeeInput(req))
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"message": "Employee added successfully",
		"data":    userResponse(employee),
	})
}

// List GET /api/employees.
func (h *EmployeesHandler) List(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	employees, err := h.service.ListEmployees(c.UserContext(), actor)
	if err != nil {
		return err
	}
	items := make([]dto.UserResponse, 0, len(employees))
	for i := range employees {
		items = append(items, userResponse(&employees[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// Update PUT /api/employees/:id.
func (h *EmployeesHandler) Update(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req dto.EmployeeRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	employee, err := h.service.UpdateEmployee(c.UserContext(), actor, c.Params("id"), employeeInput(req))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"message": "Employee updated successfully",
		"data":    userResponse(employee),
	})
}

// ToggleStatus PATCH /api/employees/:id/status.
func (h *EmployeesHandler) ToggleStatus(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	result, err := h.service.ToggleStatus(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"message": fmt.Sprintf("%s. Removed from %d customer(s).", result.Message, result.CustomersAffected),
		"data": dto.EmployeeStatusResponse{
			Status:            result.Employee.Status,
			CustomersAffected: result.CustomersAffected,
			Employee:          userResponse(result.Employee),
		},
	})
}

func employeeInput(req dto.EmployeeRequest) service.EmployeeInput {
	return service.EmployeeInput{
		Name:       req.Name,
		Email:      req.Email,
		Password:   req.Password,
		Department: req.Department,
	}
}
