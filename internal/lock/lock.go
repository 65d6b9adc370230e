// Package lock provides keyed single-writer critical sections.
package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/metinatakli/cinex-booking/internal/domain"
	"golang.org/x/sync/semaphore"
)

const DefaultTimeout = 5 * time.Second

// Locker serialises work on a key. Release must be called exactly once;
// calling it again is a no-op.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// ScheduleKey names the lock guarding one schedule's seat table.
func ScheduleKey(scheduleID int) string {
	return fmt.Sprintf("schedule:%d", scheduleID)
}

const LedgerKey = "ledger"

// SeatsTableKey guards writes to the seat table shared by all schedules. It
// is taken inside a schedule lock, never the other way round.
const SeatsTableKey = "seats"

// With runs fn while holding the lock for key.
func With(ctx context.Context, l Locker, key string, fn func(ctx context.Context) error) error {
	release, err := l.Acquire(ctx, key)
	if err != nil {
		return err
	}
	defer release()

	return fn(ctx)
}

// LocalLocker is an in-process Locker holding one weighted semaphore per key.
type LocalLocker struct {
	timeout time.Duration

	mu   sync.Mutex
	sems map[string]*semaphore.Weighted
}

func NewLocalLocker(timeout time.Duration) *LocalLocker {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &LocalLocker{
		timeout: timeout,
		sems:    make(map[string]*semaphore.Weighted),
	}
}

func (l *LocalLocker) semaphore(key string) *semaphore.Weighted {
	l.mu.Lock()
	defer l.mu.Unlock()

	sem, ok := l.sems[key]
	if !ok {
		sem = semaphore.NewWeighted(1)
		l.sems[key] = sem
	}

	return sem
}

func (l *LocalLocker) Acquire(ctx context.Context, key string) (func(), error) {
	sem := l.semaphore(key)

	waitCtx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	if err := sem.Acquire(waitCtx, 1); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %s", domain.ErrLockTimeout, key)
		}

		return nil, err
	}

	var once sync.Once
	return func() {
		once.Do(func() { sem.Release(1) })
	}, nil
}
