package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// TicketSequence hands out monotonic per-year ticket numbers. Seed raises the
// counter of a year to at least floor and never lowers it.
type TicketSequence interface {
	Next(ctx context.Context, year int) (int64, error)
	Seed(ctx context.Context, year int, floor int64) error
}

type redisTicketSequence struct {
	client *redis.Client
	prefix string
}

// NewRedisTicketSequence counts with INCR on one key per year.
func NewRedisTicketSequence(client *redis.Client) TicketSequence {
	return &redisTicketSequence{client: client, prefix: "crm:ticket_seq"}
}

// raiseScript sets KEYS[1] to ARGV[1] when the stored value is lower.
var raiseScript = redis.NewScript(`
local current = tonumber(redis.call("GET", KEYS[1]) or "0")
local floor = tonumber(ARGV[1])
if floor > current then
  redis.call("SET", KEYS[1], floor)
  return floor
end
return current
`)

func (s *redisTicketSequence) key(year int) string {
	return fmt.Sprintf("%s:%d", s.prefix, year)
}

func (s *redisTicketSequence) Next(ctx context.Context, year int) (int64, error) {
	n, err := s.client.Incr(ctx, s.key(year)).Result()
	if err != nil {
		return 0, fmt.Errorf("increment ticket sequence: %w", err)
	}
	return n, nil
}

func (s *redisTicketSequence) Seed(ctx context.Context, year int, floor int64) error {
	if err := raiseScript.Run(ctx, s.client, []string{s.key(year)}, floor).Err(); err != nil {
		return fmt.Errorf("seed ticket sequence: %w", err)
	}
	return nil
}

type postgresTicketSequence struct {
	pool *pgxpool.Pool
}

// NewPostgresTicketSequence keeps one counter row per year in ticket_sequences.
func NewPostgresTicketSequence(pool *pgxpool.Pool) TicketSequence {
	return &postgresTicketSequence{pool: pool}
}

func (s *postgresTicketSequence) Next(ctx context.Context, year int) (int64, error) {
	const query = `
        INSERT INTO ticket_sequences (year, value) VALUES ($1, 1)
        ON CONFLICT (year) DO UPDATE SET value = ticket_sequences.value + 1
        RETURNING value`
	var n int64
	if err := s.pool.QueryRow(ctx, query, year).Scan(&n); err != nil {
		return 0, fmt.Errorf("increment ticket sequence: %w", mapPgError(err))
	}
	return n, nil
}

func (s *postgresTicketSequence) Seed(ctx context.Context, year int, floor int64) error {
	const query = `
        INSERT INTO ticket_sequences (year, value) VALUES ($1, $2)
        ON CONFLICT (year) DO UPDATE SET value = GREATEST(ticket_sequences.value, EXCLUDED.value)`
	if _, err := s.pool.Exec(ctx, query, year, floor); err != nil {
		return fmt.Errorf("seed ticket sequence: %w", mapPgError(err))
	}
	return nil
}
