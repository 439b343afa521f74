package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/crm-service/internal/api/dto"
	"github.com/spec-kit/crm-service/internal/domain"
	"github.com/spec-kit/crm-service/internal/service"
	apperrors "github.com/spec-kit/crm-service/pkg/util/errorutil"
)

// CompaniesHandler serves public registration and the admin approval endpoints.
type CompaniesHandler struct {
	service *service.CompanyService
}

// NewCompaniesHandler constructs handler.
func NewCompaniesHandler(companyService *service.CompanyService) *CompaniesHandler {
	return &CompaniesHandler{service: companyService}
}

// Register POST /api/company/register.
func (h *CompaniesHandler) Register(c *fiber.Ctx) error {
	var req dto.CompanyRegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	company, err := h.service.Register(c.UserContext(), service.CompanyRegisterInput{
		CompanyName:   req.CompanyName,
		BusinessEmail: req.BusinessEmail,
		ManagerName:   req.ManagerName,
		Password:      req.Password,
		Industry:      req.Industry,
		Address:       req.Address,
		Phone:         req.Phone,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"message": "Company registered. Awaiting admin approval.",
		"data":    companyResponse(company, nil),
	})
}

// Stats GET /api/admin/stats.
func (h *CompaniesHandler) Stats(c *fiber.Ctx) error {
	stats, err := h.service.Stats(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.StatsResponse{
		TotalCompanies:    stats.TotalCompanies,
		ApprovedCompanies: stats.ApprovedCompanies,
		TotalEmployees:    stats.TotalEmployees,
	}})
}

// Pending GET /api/admin/pending-companies.
func (h *CompaniesHandler) Pending(c *fiber.Ctx) error {
	companies, err := h.service.Pending(c.UserContext())
	if err != nil {
		return err
	}
	items := make([]dto.CompanyResponse, 0, len(companies))
	for i := range companies {
		items = append(items, companyResponse(&companies[i], nil))
	}
	return c.JSON(fiber.Map{"data": items})
}

// Approved GET /api/admin/approved-companies.
func (h *CompaniesHandler) Approved(c *fiber.Ctx) error {
	companies, err := h.service.Approved(c.UserContext())
	if err != nil {
		return err
	}
	items := make([]dto.CompanyResponse, 0, len(companies))
	for i := range companies {
		count := companies[i].EmployeeCount
		items = append(items, companyResponse(&companies[i].Company, &count))
	}
	return c.JSON(fiber.Map{"data": items})
}

// Decide POST /api/admin/approve-company/:id.
func (h *CompaniesHandler) Decide(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req dto.CompanyDecisionRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	message, err := h.service.Decide(c.UserContext(), actor, c.Params("id"), req.Status)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": message})
}

func companyResponse(company *domain.Company, employeeCount *int) dto.CompanyResponse {
	return dto.CompanyResponse{
		ID:            company.ID,
		CompanyName:   company.CompanyName,
		BusinessEmail: company.BusinessEmail,
		ManagerName:   company.ManagerName,
		Industry:      company.Industry,
		Address:       company.Address,
		Phone:         company.Phone,
		Approved:      company.Approved,
		EmployeeCount: employeeCount,
		CreatedAt:     company.CreatedAt,
		UpdatedAt:     company.UpdatedAt,
	}
}
