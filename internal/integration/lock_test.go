package integration_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/metinatakli/cinex-booking/internal/domain"
	"github.com/metinatakli/cinex-booking/internal/lock"
	"github.com/stretchr/testify/suite"
)

type RedisLockSuite struct {
	BaseSuite
}

func TestRedisLockSuite(t *testing.T) {
	suite.Run(t, new(RedisLockSuite))
}

func (s *RedisLockSuite) locker(timeout time.Duration) *lock.RedisLocker {
	return lock.NewRedisLocker(s.redis, slog.New(slog.NewTextHandler(io.Discard, nil)), timeout, lock.WithRetryWait(5*time.Millisecond))
}

func (s *RedisLockSuite) TestMutualExclusionAcrossLockers() {
	lockers := []*lock.RedisLocker{s.locker(5 * time.Second), s.locker(5 * time.Second)}
	key := lock.ScheduleKey(TestWeekendShowId)

	var (
		wg      sync.WaitGroup
		inside  atomic.Int32
		maxSeen atomic.Int32
	)

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(l lock.Locker) {
			defer wg.Done()

			err := lock.With(s.ctx, l, key, func(context.Context) error {
				n := inside.Add(1)
				if n > maxSeen.Load() {
					maxSeen.Store(n)
				}
				time.Sleep(5 * time.Millisecond)
				inside.Add(-1)
				return nil
			})
			s.NoError(err)
		}(lockers[i%2])
	}

	wg.Wait()
	s.Equal(int32(1), maxSeen.Load())
}

func (s *RedisLockSuite) TestTimeoutWhileHeld() {
	holder := s.locker(time.Second)
	release, err := holder.Acquire(s.ctx, lock.LedgerKey)
	s.Require().NoError(err)

	_, err = s.locker(50*time.Millisecond).Acquire(s.ctx, lock.LedgerKey)
	s.ErrorIs(err, domain.ErrLockTimeout)

	release()

	again, err := s.locker(time.Second).Acquire(s.ctx, lock.LedgerKey)
	s.Require().NoError(err)
	again()
}
