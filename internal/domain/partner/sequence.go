package partner

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// MemorySequence is a mutex-guarded in-memory Sequence. It backs tests and
// single-process development; production uses the Postgres-backed sequence so
// numbers survive restarts.
type MemorySequence struct {
	mu       sync.Mutex
	counters map[uuid.UUID]*ControlNumbers
}

// NewMemorySequence returns an empty in-memory sequence.
func NewMemorySequence() *MemorySequence {
	return &MemorySequence{counters: make(map[uuid.UUID]*ControlNumbers)}
}

// Next atomically reserves the next interchange and group numbers and count
// consecutive transaction numbers for the partner.
func (s *MemorySequence) Next(_ context.Context, partnerID uuid.UUID, count int) (ControlNumbers, error) {
	if count < 1 {
		return ControlNumbers{}, fmt.Errorf("partner: control number count must be positive, got %d", count)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.counters[partnerID]
	if !ok {
		c = &ControlNumbers{}
		s.counters[partnerID] = c
	}
	c.Interchange++
	c.Group++
	first := c.Transaction + 1
	c.Transaction += int64(count)

	return ControlNumbers{Interchange: c.Interchange, Group: c.Group, Transaction: first}, nil
}
