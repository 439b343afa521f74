package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/spec-kit/crm-service/internal/api/http/handlers"
	"github.com/spec-kit/crm-service/internal/auth"
	"github.com/spec-kit/crm-service/internal/domain"
	"github.com/spec-kit/crm-service/internal/observability"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Companies      *handlers.CompaniesHandler
	Employees      *handlers.EmployeesHandler
	Customers      *handlers.CustomersHandler
	Tickets        *handlers.TicketsHandler
	AuthMiddleware *auth.AuthMiddleware
	Metrics        *observability.Metrics
	MetricsPath    string
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil && cfg.MetricsPath != "" {
		app.Get(cfg.MetricsPath, adaptor.HTTPHandler(cfg.Metrics.Handler()))
	}

	api := app.Group("/api")
	authenticated := cfg.AuthMiddleware.Handle

	authGroup := api.Group("/auth")
	authGroup.Post("/login", cfg.Auth.LoginBusinessManager)
	authGroup.Post("/admin", cfg.Auth.Login)
	authGroup.Post("/register", authenticated, auth.RequireRole(domain.RoleAdmin), cfg.Auth.Register)

	api.Post("/company/register", cfg.Companies.Register)

	admin := api.Group("/admin", authenticated, auth.RequireRole(domain.RoleAdmin))
	admin.Get("/stats", cfg.Companies.Stats)
	admin.Get("/pending-companies", cfg.Companies.Pending)
	admin.Post("/approve-company/:id", cfg.Companies.Decide)
	admin.Get("/approved-companies", cfg.Companies.Approved)

	employees := api.Group("/employees", authenticated, auth.RequireRole(domain.RoleBusinessManager))
	employees.Post("/", cfg.Employees.Add)
	employees.Get("/", cfg.Employees.List)
	employees.Put("/:id", cfg.Employees.Update)
	employees.Patch("/:id/status", cfg.Employees.ToggleStatus)

	staff := auth.RequireRole(domain.RoleBusinessManager, domain.RoleEmployee)

	customers := api.Group("/customers", authenticated, staff)
	customers.Post("/", cfg.Customers.Create)
	customers.Get("/", cfg.Customers.List)
	customers.Get("/:id", cfg.Customers.Get)
	customers.Put("/:id", cfg.Customers.Update)
	customers.Delete("/:id", cfg.Customers.Delete)
	customers.Put("/:id/restore", cfg.Customers.Restore)
	customers.Post("/:id/convert", cfg.Customers.Convert)

	tickets := api.Group("/tickets", authenticated, staff)
	tickets.Post("/", cfg.Tickets.CreateTicket)
	tickets.Get("/", cfg.Tickets.ListTickets)
	tickets.Get("/summary/customers", cfg.Tickets.CustomerSummary)
	tickets.Get("/customer/:customerId", cfg.Tickets.ListForCustomer)
	tickets.Get("/:id", cfg.Tickets.GetTicket)
	tickets.Put("/:id", cfg.Tickets.UpdateTicket)
	tickets.Patch("/:id/assign", cfg.Tickets.AssignTicket)
}
