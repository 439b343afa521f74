package handlers

import (
	"bytes"
	"encoding/json"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/crm-service/internal/api/dto"
	"github.com/spec-kit/crm-service/internal/auth"
	"github.com/spec-kit/crm-service/internal/domain"
	"github.com/spec-kit/crm-service/internal/service"
	apperrors "github.com/spec-kit/crm-service/pkg/util/errorutil"
)

func actorFrom(c *fiber.Ctx) (domain.Actor, error) {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return domain.Actor{}, apperrors.NewUnauthorized("Not authorized")
	}
	return principal.Actor(), nil
}

// parsePatch reads the body as a field to raw value map. An empty body is an empty patch.
func parsePatch(c *fiber.Ctx) (map[string]json.RawMessage, error) {
	patch := map[string]json.RawMessage{}
	body := bytes.TrimSpace(c.Body())
	if len(body) == 0 {
		return patch, nil
	}
	if err := json.Unmarshal(body, &patch); err != nil {
		return nil, apperrors.NewValidationError("invalid payload", nil)
	}
	return patch, nil
}

func auditResponses(entries []domain.AuditEntry) []dto.AuditEntryResponse {
	resp := make([]dto.AuditEntryResponse, 0, len(entries))
	for _, entry := range entries {
		resp = append(resp, dto.AuditEntryResponse{
			Action: entry.Action,
			By:     entry.By,
			ByName: entry.ByName,
			Note:   entry.Note,
			Diff:   entry.Diff,
			At:     entry.At,
		})
	}
	return resp
}

func assigneeResponses(assignees []service.AssigneeSummary) []dto.AssigneeResponse {
	resp := make([]dto.AssigneeResponse, 0, len(assignees))
	for _, a := range assignees {
		resp = append(resp, dto.AssigneeResponse{ID: a.ID, Name: a.Name, Email: a.Email, Status: a.Status})
	}
	return resp
}

func userResponse(user *domain.User) dto.UserResponse {
	return dto.UserResponse{
		ID:             user.ID,
		Name:           user.Name,
		Email:          user.Email,
		Role:           user.Role,
		Department:     user.Department,
		CompanyID:      user.CompanyID,
		Status:         user.Status,
		TicketsHandled: user.TicketsHandled,
		JoinedAt:       user.JoinedAt,
	}
}
