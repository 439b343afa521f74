package memory

import (
	"context"
	"sync"
	"time"

	"github.com/spec-kit/crm-service/internal/domain"
	"github.com/spec-kit/crm-service/internal/repository"
)

// TicketSequence is an in-memory repository.TicketSequence.
type TicketSequence struct {
	mu     sync.Mutex
	byYear map[int]int64
}

// NewTicketSequence builds a counter starting at zero for every year.
func NewTicketSequence() *TicketSequence {
	return &TicketSequence{byYear: make(map[int]int64)}
}

var _ repository.TicketSequence = (*TicketSequence)(nil)

func (s *TicketSequence) Next(_ context.Context, year int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byYear[year]++
	return s.byYear[year], nil
}

func (s *TicketSequence) Seed(_ context.Context, year int, floor int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if floor > s.byYear[year] {
		s.byYear[year] = floor
	}
	return nil
}

// CascadeQueue is a buffered-channel repository.CascadeQueue.
type CascadeQueue struct {
	jobs chan domain.CascadeJob
}

// NewCascadeQueue builds a queue holding up to size pending jobs.
func NewCascadeQueue(size int) *CascadeQueue {
	if size <= 0 {
		size = 1024
	}
	return &CascadeQueue{jobs: make(chan domain.CascadeJob, size)}
}

var _ repository.CascadeQueue = (*CascadeQueue)(nil)

func (q *CascadeQueue) Enqueue(ctx context.Context, job domain.CascadeJob) error {
	select {
	case q.jobs <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *CascadeQueue) Dequeue(ctx context.Context, timeout time.Duration) (*domain.CascadeJob, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case job := <-q.jobs:
		return &job, nil
	case <-timer.C:
		return nil, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Len reports pending jobs.
func (q *CascadeQueue) Len() int {
	return len(q.jobs)
}
