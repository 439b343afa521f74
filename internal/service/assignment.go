package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/spec-kit/crm-service/internal/domain"
	"github.com/spec-kit/crm-service/internal/repository"
)

// AssigneeSummary is the populated form of an assignedTo reference.
type AssigneeSummary struct {
	ID     string
	Name   string
	Email  string
	Status domain.UserStatus
}

// assigneeDirectory resolves employee references for assignment lists.
type assigneeDirectory struct {
	users repository.UserRepository
}

func newAssigneeDirectory(users repository.UserRepository) *assigneeDirectory {
	return &assigneeDirectory{users: users}
}

// eligible keeps, in request order, ids of employees of companyID. With activeOnly
// inactive employees are dropped as well.
func (d *assigneeDirectory) eligible(ctx context.Context, companyID string, ids []string, activeOnly bool) ([]string, error) {
	ids = dedupe(ids)
	if len(ids) == 0 {
		return []string{}, nil
	}
	filter := repository.UserFilter{CompanyID: companyID, Role: domain.RoleEmployee, IDs: validIDs(ids)}
	if activeOnly {
		filter.Status = domain.UserStatusActive
	}
	found, err := d.users.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	known := make(map[string]struct{}, len(found))
	for _, u := range found {
		known[u.ID] = struct{}{}
	}
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := known[id]; ok {
			out = append(out, id)
		}
	}
	return out, nil
}

func (d *assigneeDirectory) activeFilter(companyID string) RefFilter {
	return func(ctx context.Context, ids []string) ([]string, error) {
		return d.eligible(ctx, companyID, ids, true)
	}
}

func (d *assigneeDirectory) tenantFilter(companyID string) RefFilter {
	return func(ctx context.Context, ids []string) ([]string, error) {
		return d.eligible(ctx, companyID, ids, false)
	}
}

// names implements RefResolver.
func (d *assigneeDirectory) names(ctx context.Context, ids []string) (map[string]string, error) {
	result := make(map[string]string, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	found, err := d.users.List(ctx, repository.UserFilter{IDs: validIDs(ids)})
	if err != nil {
		return nil, err
	}
	for _, u := range found {
		result[u.ID] = u.Name
	}
	return result, nil
}

// describe renders ids as sorted names joined by ", " or "None".
func (d *assigneeDirectory) describe(ctx context.Context, ids []string) (string, error) {
	names, err := d.names(ctx, ids)
	if err != nil {
		return "", err
	}
	return joinNames(names, ids), nil
}

// summaries populates references in order, skipping ids that no longer resolve.
func (d *assigneeDirectory) summaries(ctx context.Context, ids []string) ([]AssigneeSummary, error) {
	out := make([]AssigneeSummary, 0, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	found, err := d.users.List(ctx, repository.UserFilter{IDs: validIDs(ids)})
	if err != nil {
		return nil, err
	}
	byID := make(map[string]domain.User, len(found))
	for _, u := range found {
		byID[u.ID] = u
	}
	for _, id := range ids {
		if u, ok := byID[id]; ok {
			out = append(out, AssigneeSummary{ID: u.ID, Name: u.Name, Email: u.Email, Status: u.Status})
		}
	}
	return out, nil
}

// summariesFor batches summaries for many lists with one lookup.
func (d *assigneeDirectory) summariesFor(ctx context.Context, lists [][]string) (map[string]AssigneeSummary, error) {
	var all []string
	for _, ids := range lists {
		all = append(all, ids...)
	}
	all = dedupe(all)
	result := make(map[string]AssigneeSummary, len(all))
	if len(all) == 0 {
		return result, nil
	}
	found, err := d.users.List(ctx, repository.UserFilter{IDs: validIDs(all)})
	if err != nil {
		return nil, err
	}
	for _, u := range found {
		result[u.ID] = AssigneeSummary{ID: u.ID, Name: u.Name, Email: u.Email, Status: u.Status}
	}
	return result, nil
}

func pick(table map[string]AssigneeSummary, ids []string) []AssigneeSummary {
	out := make([]AssigneeSummary, 0, len(ids))
	for _, id := range ids {
		if s, ok := table[id]; ok {
			out = append(out, s)
		}
	}
	return out
}

func validIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if isUUID(id) {
			out = append(out, id)
		}
	}
	return out
}

func isUUID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
