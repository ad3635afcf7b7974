// Package gate bounds how many proxy pipelines may run at once.
//
// A Gate hands out Slots. Each in-flight pipeline holds exactly one Slot,
// acquired before any socket work and released when the pipeline ends.
package gate

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// DefaultCeiling is the number of concurrent pipelines allowed when no
// ceiling is configured.
const DefaultCeiling = 50

var errInvalidCeiling = errors.New("gate: ceiling must be > 0")

// Gate is a process-wide counting permit pool.
type Gate struct {
	sem     *semaphore.Weighted
	ceiling int64
	inUse   atomic.Int64
}

// New returns a Gate that allows at most ceiling outstanding Slots.
func New(ceiling int64) (*Gate, error) {
	if ceiling <= 0 {
		return nil, fmt.Errorf("%w: got %d", errInvalidCeiling, ceiling)
	}
	return &Gate{sem: semaphore.NewWeighted(ceiling), ceiling: ceiling}, nil
}

// Acquire blocks until a Slot is free or ctx is done.
func (g *Gate) Acquire(ctx context.Context) (*Slot, error) {
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	return g.newSlot(), nil
}

// TryAcquire returns a Slot without blocking, or false if none is free.
func (g *Gate) TryAcquire() (*Slot, bool) {
	if !g.sem.TryAcquire(1) {
		return nil, false
	}
	return g.newSlot(), true
}

// InUse reports how many Slots are currently held.
func (g *Gate) InUse() int64 {
	return g.inUse.Load()
}

// Ceiling reports the configured maximum.
func (g *Gate) Ceiling() int64 {
	return g.ceiling
}

func (g *Gate) newSlot() *Slot {
	g.inUse.Add(1)
	return &Slot{g: g}
}

// Slot is a single permit drawn from a Gate.
type Slot struct {
	g    *Gate
	once sync.Once
}

// Release returns the permit to its Gate. Only the first call has an effect.
func (s *Slot) Release() {
	s.once.Do(func() {
		s.g.inUse.Add(-1)
		s.g.sem.Release(1)
	})
}
