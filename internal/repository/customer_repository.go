package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/crm-service/internal/domain"
)

// CustomerFilter narrows customer listings. Zero values are ignored.
type CustomerFilter struct {
	CompanyID      string
	AssignedTo     string
	ExcludeDeleted bool
}

// CustomerRepository persists customers together with their audit trail.
// Create and Update write the row and the given audit entries in one transaction
// and append the entries to customer.Audit on success.
type CustomerRepository interface {
	Create(ctx context.Context, customer *domain.Customer, entries ...domain.AuditEntry) error
	Update(ctx context.Context, customer *domain.Customer, entries ...domain.AuditEntry) error
	GetByID(ctx context.Context, id string) (*domain.Customer, error)
	List(ctx context.Context, filter CustomerFilter) ([]domain.Customer, error)
}

type customerRepository struct {
	pool *pgxpool.Pool
}

// NewCustomerRepository returns a Postgres-backed implementation.
func NewCustomerRepository(pool *pgxpool.Pool) CustomerRepository {
	return &customerRepository{pool: pool}
}

const customerColumns = `id::text, company_id::text, name, contact_name, email, phone, location, lead_source,
               created_by, created_by_name, status, state, assigned_to, conversion_date, conversion_source,
               deleted_at, deleted_by, created_at, updated_at`

func (r *customerRepository) Create(ctx context.Context, customer *domain.Customer, entries ...domain.AuditEntry) error {
	if customer.ID == "" {
		customer.ID = uuid.NewString()
	}
	const query = `
        INSERT INTO customers (id, company_id, name, contact_name, email, phone, location, lead_source,
            created_by, created_by_name, status, state, assigned_to, conversion_date, conversion_source)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
        RETURNING created_at, updated_at`
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, query,
			customer.ID,
			customer.CompanyID,
			customer.Name,
			customer.ContactName,
			customer.Email,
			customer.Phone,
			customer.Location,
			customer.LeadSource,
			customer.CreatedBy,
			customer.CreatedByName,
			customer.Status,
			customer.State,
			nonNilStrings(customer.AssignedTo),
			customer.ConversionDate,
			customer.ConversionSource,
		).Scan(&customer.CreatedAt, &customer.UpdatedAt); err != nil {
			return err
		}
		return appendAudit(ctx, tx, domain.AggregateCustomer, customer.ID, entries)
	})
	if err != nil {
		return mapPgError(err)
	}
	customer.Audit = append(customer.Audit, entries...)
	return nil
}

func (r *customerRepository) Update(ctx context.Context, customer *domain.Customer, entries ...domain.AuditEntry) error {
	const query = `
        UPDATE customers SET name=$1, contact_name=$2, email=$3, phone=$4, location=$5, lead_source=$6,
            status=$7, state=$8, assigned_to=$9, conversion_date=$10, conversion_source=$11,
            deleted_at=$12, deleted_by=$13, updated_at=$14
        WHERE id=$15`
	now := time.Now().UTC()
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		cmd, err := tx.Exec(ctx, query,
			customer.Name,
			customer.ContactName,
			customer.Email,
			customer.Phone,
			customer.Location,
			customer.LeadSource,
			customer.Status,
			customer.State,
			nonNilStrings(customer.AssignedTo),
			customer.ConversionDate,
			customer.ConversionSource,
			customer.DeletedAt,
			customer.DeletedBy,
			now,
			customer.ID,
		)
		if err != nil {
			return err
		}
		if cmd.RowsAffected() == 0 {
			return pgx.ErrNoRows
		}
		return appendAudit(ctx, tx, domain.AggregateCustomer, customer.ID, entries)
	})
	if err != nil {
		return mapPgError(err)
	}
	customer.UpdatedAt = now
	customer.Audit = append(customer.Audit, entries...)
	return nil
}

func (r *customerRepository) GetByID(ctx context.Context, id string) (*domain.Customer, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+customerColumns+` FROM customers WHERE id=$1`, id)
	if err != nil {
		return nil, mapPgError(err)
	}
	customers, err := scanCustomers(rows)
	if err != nil {
		return nil, mapPgError(err)
	}
	if len(customers) == 0 {
		return nil, ErrNotFound
	}
	if err := r.attachAudit(ctx, customers); err != nil {
		return nil, err
	}
	return &customers[0], nil
}

func (r *customerRepository) List(ctx context.Context, filter CustomerFilter) ([]domain.Customer, error) {
	clauses := []string{"1=1"}
	args := []any{}
	if filter.CompanyID != "" {
		args = append(args, filter.CompanyID)
		clauses = append(clauses, fmt.Sprintf("company_id=$%d", len(args)))
	}
	if filter.AssignedTo != "" {
		args = append(args, filter.AssignedTo)
		clauses = append(clauses, fmt.Sprintf("$%d = ANY(assigned_to)", len(args)))
	}
	if filter.ExcludeDeleted {
		clauses = append(clauses, "deleted_at IS NULL")
	}
	query := fmt.Sprintf(`SELECT %s FROM customers WHERE %s ORDER BY created_at DESC`,
		customerColumns, strings.Join(clauses, " AND "))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, mapPgError(err)
	}
	customers, err := scanCustomers(rows)
	if err != nil {
		return nil, mapPgError(err)
	}
	if err := r.attachAudit(ctx, customers); err != nil {
		return nil, err
	}
	return customers, nil
}

func (r *customerRepository) attachAudit(ctx context.Context, customers []domain.Customer) error {
	ids := make([]string, len(customers))
	for i := range customers {
		ids[i] = customers[i].ID
	}
	trails, err := loadAudit(ctx, r.pool, domain.AggregateCustomer, ids)
	if err != nil {
		return err
	}
	for i := range customers {
		customers[i].Audit = trails[customers[i].ID]
	}
	return nil
}

// scanCustomers consumes and closes rows.
func scanCustomers(rows pgx.Rows) ([]domain.Customer, error) {
	defer rows.Close()
	var result []domain.Customer
	for rows.Next() {
		var customer domain.Customer
		if err := rows.Scan(
			&customer.ID,
			&customer.CompanyID,
			&customer.Name,
			&customer.ContactName,
			&customer.Email,
			&customer.Phone,
			&customer.Location,
			&customer.LeadSource,
			&customer.CreatedBy,
			&customer.CreatedByName,
			&customer.Status,
			&customer.State,
			&customer.AssignedTo,
			&customer.ConversionDate,
			&customer.ConversionSource,
			&customer.DeletedAt,
			&customer.DeletedBy,
			&customer.CreatedAt,
			&customer.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, customer)
	}
	return result, rows.Err()
}

func nonNilStrings(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
