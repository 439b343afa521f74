package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/crm-service/internal/domain"
)

// CompanyFilter narrows company listings.
type CompanyFilter struct {
	Approved *bool
}

// CompanyRepository persists tenants.
type CompanyRepository interface {
	Create(ctx context.Context, company *domain.Company) error
	Update(ctx context.Context, company *domain.Company) error
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (*domain.Company, error)
	GetByEmail(ctx context.Context, email string) (*domain.Company, error)
	List(ctx context.Context, filter CompanyFilter) ([]domain.Company, error)
	Count(ctx context.Context, filter CompanyFilter) (int, error)
}

type companyRepository struct {
	pool *pgxpool.Pool
}

// NewCompanyRepository returns a Postgres-backed implementation.
func NewCompanyRepository(pool *pgxpool.Pool) CompanyRepository {
	return &companyRepository{pool: pool}
}

const companyColumns = `id::text, company_name, business_email, manager_name, industry, address, phone,
               password_hash, approved, created_at, updated_at`

func (r *companyRepository) Create(ctx context.Context, company *domain.Company) error {
	if company.ID == "" {
		company.ID = uuid.NewString()
	}
	const query = `
        INSERT INTO companies (id, company_name, business_email, manager_name, industry, address, phone, password_hash, approved)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
        RETURNING created_at, updated_at`
	err := r.pool.QueryRow(ctx, query,
		company.ID,
		company.CompanyName,
		strings.ToLower(company.BusinessEmail),
		company.ManagerName,
		company.Industry,
		company.Address,
		company.Phone,
		company.PasswordHash,
		company.Approved,
	).Scan(&company.CreatedAt, &company.UpdatedAt)
	return mapPgError(err)
}

func (r *companyRepository) Update(ctx context.Context, company *domain.Company) error {
	const query = `
        UPDATE companies SET company_name=$1, manager_name=$2, industry=$3, address=$4, phone=$5,
            approved=$6, updated_at=NOW()
        WHERE id=$7
        RETURNING updated_at`
	err := r.pool.QueryRow(ctx, query,
		company.CompanyName,
		company.ManagerName,
		company.Industry,
		company.Address,
		company.Phone,
		company.Approved,
		company.ID,
	).Scan(&company.UpdatedAt)
	return mapPgError(err)
}

func (r *companyRepository) Delete(ctx context.Context, id string) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM companies WHERE id=$1`, id)
	if err != nil {
		return mapPgError(err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *companyRepository) GetByID(ctx context.Context, id string) (*domain.Company, error) {
	query := `SELECT ` + companyColumns + ` FROM companies WHERE id=$1`
	return r.fetchSingle(ctx, query, id)
}

func (r *companyRepository) GetByEmail(ctx context.Context, email string) (*domain.Company, error) {
	query := `SELECT ` + companyColumns + ` FROM companies WHERE business_email=$1`
	return r.fetchSingle(ctx, query, strings.ToLower(email))
}

func (r *companyRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.Company, error) {
	rows, err := r.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, mapPgError(err)
	}
	defer rows.Close()
	companies, err := scanCompanies(rows)
	if err != nil {
		return nil, mapPgError(err)
	}
	if len(companies) == 0 {
		return nil, ErrNotFound
	}
	return &companies[0], nil
}

func (r *companyRepository) List(ctx context.Context, filter CompanyFilter) ([]domain.Company, error) {
	where, args := companyWhere(filter)
	query := fmt.Sprintf(`SELECT %s FROM companies WHERE %s ORDER BY created_at DESC`, companyColumns, where)
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, mapPgError(err)
	}
	defer rows.Close()
	return scanCompanies(rows)
}

func (r *companyRepository) Count(ctx context.Context, filter CompanyFilter) (int, error) {
	where, args := companyWhere(filter)
	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM companies WHERE `+where, args...).Scan(&count)
	return count, mapPgError(err)
}

func companyWhere(filter CompanyFilter) (string, []any) {
	clauses := []string{"1=1"}
	args := []any{}
	if filter.Approved != nil {
		args = append(args, *filter.Approved)
		clauses = append(clauses, fmt.Sprintf("approved=$%d", len(args)))
	}
	return strings.Join(clauses, " AND "), args
}

func scanCompanies(rows pgx.Rows) ([]domain.Company, error) {
	var result []domain.Company
	for rows.Next() {
		var company domain.Company
		if err := rows.Scan(
			&company.ID,
			&company.CompanyName,
			&company.BusinessEmail,
			&company.ManagerName,
			&company.Industry,
			&company.Address,
			&company.Phone,
			&company.PasswordHash,
			&company.Approved,
			&company.CreatedAt,
			&company.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, company)
	}
	return result, rows.Err()
}
