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

// DefaultTicketListLimit caps ticket listings when no limit is given.
const DefaultTicketListLimit = 100

// TicketFilter captures ticket search parameters. Zero values are ignored.
type TicketFilter struct {
	CompanyID  string
	CustomerID string
	Status     domain.TicketStatus
	Priority   domain.TicketPriority
	Category   domain.TicketCategory
	Search     string
	Limit      int
}

// TicketCounts aggregates tickets of one customer.
type TicketCounts struct {
	Raised   int
	Resolved int
}

// TicketRepository persists tickets together with their audit trail.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket, entries ...domain.AuditEntry) error
	Update(ctx context.Context, ticket *domain.Ticket, entries ...domain.AuditEntry) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	GetByTicketID(ctx context.Context, ticketID string) (*domain.Ticket, error)
	List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
	CountByCustomer(ctx context.Context, companyID string) (map[string]TicketCounts, error)
	// MaxSequence returns the highest sequence number used in ticket ids of year, or 0.
	MaxSequence(ctx context.Context, year int) (int64, error)
}

// TicketIDPrefix is the ticketId prefix of year.
func TicketIDPrefix(year int) string {
	return fmt.Sprintf("TKT-%d-", year)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketColumns = `id::text, ticket_id, company_id::text, customer_id::text, subject, description, category,
               priority, status, assigned_to, attachments, sla_deadline, created_at, updated_at`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket, entries ...domain.AuditEntry) error {
	if ticket.ID == "" {
		ticket.ID = uuid.NewString()
	}
	const query = `
        INSERT INTO tickets (id, ticket_id, company_id, customer_id, subject, description, category, priority,
            status, assigned_to, attachments, sla_deadline)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
        RETURNING created_at, updated_at`
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, query,
			ticket.ID,
			ticket.TicketID,
			ticket.CompanyID,
			ticket.CustomerID,
			ticket.Subject,
			ticket.Description,
			ticket.Category,
			ticket.Priority,
			ticket.Status,
			nonNilStrings(ticket.AssignedTo),
			nonNilStrings(ticket.Attachments),
			ticket.SLADeadline,
		).Scan(&ticket.CreatedAt, &ticket.UpdatedAt); err != nil {
			return err
		}
		return appendAudit(ctx, tx, domain.AggregateTicket, ticket.ID, entries)
	})
	if err != nil {
		return mapPgError(err)
	}
	ticket.Audit = append(ticket.Audit, entries...)
	return nil
}

func (r *ticketRepository) Update(ctx context.Context, ticket *domain.Ticket, entries ...domain.AuditEntry) error {
	const query = `
        UPDATE tickets SET subject=$1, description=$2, category=$3, priority=$4, status=$5,
            assigned_to=$6, attachments=$7, sla_deadline=$8, updated_at=$9
        WHERE id=$10`
	now := time.Now().UTC()
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		cmd, err := tx.Exec(ctx, query,
			ticket.Subject,
			ticket.Description,
			ticket.Category,
			ticket.Priority,
			ticket.Status,
			nonNilStrings(ticket.AssignedTo),
			nonNilStrings(ticket.Attachments),
			ticket.SLADeadline,
			now,
			ticket.ID,
		)
		if err != nil {
			return err
		}
		if cmd.RowsAffected() == 0 {
			return pgx.ErrNoRows
		}
		return appendAudit(ctx, tx, domain.AggregateTicket, ticket.ID, entries)
	})
	if err != nil {
		return mapPgError(err)
	}
	ticket.UpdatedAt = now
	ticket.Audit = append(ticket.Audit, entries...)
	return nil
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	return r.fetchSingle(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE id=$1`, id)
}

func (r *ticketRepository) GetByTicketID(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	return r.fetchSingle(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE ticket_id=$1`, ticketID)
}

func (r *ticketRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.Ticket, error) {
	rows, err := r.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, mapPgError(err)
	}
	tickets, err := scanTickets(rows)
	if err != nil {
		return nil, mapPgError(err)
	}
	if len(tickets) == 0 {
		return nil, ErrNotFound
	}
	if err := r.attachAudit(ctx, tickets); err != nil {
		return nil, err
	}
	return &tickets[0], nil
}

func (r *ticketRepository) List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	clauses := []string{"1=1"}
	args := []any{}

	if filter.CompanyID != "" {
		args = append(args, filter.CompanyID)
		clauses = append(clauses, fmt.Sprintf("company_id=$%d", len(args)))
	}
	if filter.CustomerID != "" {
		args = append(args, filter.CustomerID)
		clauses = append(clauses, fmt.Sprintf("customer_id=$%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		clauses = append(clauses, fmt.Sprintf("status=$%d", len(args)))
	}
	if filter.Priority != "" {
		args = append(args, filter.Priority)
		clauses = append(clauses, fmt.Sprintf("priority=$%d", len(args)))
	}
	if filter.Category != "" {
		args = append(args, filter.Category)
		clauses = append(clauses, fmt.Sprintf("category=$%d", len(args)))
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		args = append(args, "%"+escapeLike(search)+"%")
		placeholder := fmt.Sprintf("$%d", len(args))
		clauses = append(clauses, fmt.Sprintf("(ticket_id ILIKE %s OR subject ILIKE %s)", placeholder, placeholder))
	}

	limit := filter.Limit
	if limit <= 0 || limit > DefaultTicketListLimit {
		limit = DefaultTicketListLimit
	}

	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE %s ORDER BY created_at DESC LIMIT %d`,
		ticketColumns, strings.Join(clauses, " AND "), limit)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, mapPgError(err)
	}
	tickets, err := scanTickets(rows)
	if err != nil {
		return nil, mapPgError(err)
	}
	if err := r.attachAudit(ctx, tickets); err != nil {
		return nil, err
	}
	return tickets, nil
}

func (r *ticketRepository) CountByCustomer(ctx context.Context, companyID string) (map[string]TicketCounts, error) {
	const query = `
        SELECT customer_id::text, COUNT(*),
               COUNT(*) FILTER (WHERE status IN ('Resolved','Closed'))
        FROM tickets WHERE company_id=$1
        GROUP BY customer_id`
	rows, err := r.pool.Query(ctx, query, companyID)
	if err != nil {
		return nil, mapPgError(err)
	}
	defer rows.Close()

	result := make(map[string]TicketCounts)
	for rows.Next() {
		var (
			customerID string
			counts     TicketCounts
		)
		if err := rows.Scan(&customerID, &counts.Raised, &counts.Resolved); err != nil {
			return nil, err
		}
		result[customerID] = counts
	}
	return result, rows.Err()
}

func (r *ticketRepository) MaxSequence(ctx context.Context, year int) (int64, error) {
	const query = `
        SELECT COALESCE(MAX(split_part(ticket_id, '-', 3)::bigint), 0)
        FROM tickets WHERE ticket_id LIKE $1 AND split_part(ticket_id, '-', 3) ~ '^[0-9]+$'`
	var n int64
	if err := r.pool.QueryRow(ctx, query, escapeLike(TicketIDPrefix(year))+"%").Scan(&n); err != nil {
		return 0, mapPgError(err)
	}
	return n, nil
}

func (r *ticketRepository) attachAudit(ctx context.Context, tickets []domain.Ticket) error {
	ids := make([]string, len(tickets))
	for i := range tickets {
		ids[i] = tickets[i].ID
	}
	trails, err := loadAudit(ctx, r.pool, domain.AggregateTicket, ids)
	if err != nil {
		return err
	}
	for i := range tickets {
		tickets[i].Audit = trails[tickets[i].ID]
	}
	return nil
}

// scanTickets consumes and closes rows.
func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	defer rows.Close()
	var result []domain.Ticket
	for rows.Next() {
		var ticket domain.Ticket
		if err := rows.Scan(
			&ticket.ID,
			&ticket.TicketID,
			&ticket.CompanyID,
			&ticket.CustomerID,
			&ticket.Subject,
			&ticket.Description,
			&ticket.Category,
			&ticket.Priority,
			&ticket.Status,
			&ticket.AssignedTo,
			&ticket.Attachments,
			&ticket.SLADeadline,
			&ticket.CreatedAt,
			&ticket.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, ticket)
	}
	return result, rows.Err()
}

func escapeLike(s string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return replacer.Replace(s)
}
