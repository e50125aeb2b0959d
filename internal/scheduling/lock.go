package scheduling

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// SlotLocker guards the per-slot critical section during booking. The Redis
// implementation lives in internal/redis; MutexSlotLocker covers
// single-process deployments and tests.
type SlotLocker interface {
	WithSlotLock(ctx context.Context, slotID uuid.UUID, fn func(ctx context.Context) error) error
}

type MutexSlotLocker struct {
	locks sync.Map // uuid.UUID -> *sync.Mutex
}

func NewMutexSlotLocker() *MutexSlotLocker {
	return &MutexSlotLocker{}
}

func (l *MutexSlotLocker) WithSlotLock(ctx context.Context, slotID uuid.UUID, fn func(ctx context.Context) error) error {
	v, _ := l.locks.LoadOrStore(slotID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	defer mu.Unlock()
	return fn(ctx)
}
