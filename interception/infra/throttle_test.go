package infra

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"method-dispatch/interception/domain"
)

func TestThrottle_NeverExceedsLimit(t *testing.T) {
	const limit = 3
	th := NewThrottle(limit)

	var current, peak int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := th.Acquire(context.Background())
			if !assert.NoError(t, err) {
				return
			}
			defer release()
			n := atomic.AddInt32(&current, 1)
			for {
				p := atomic.LoadInt32(&peak)
				if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			atomic.AddInt32(&current, -1)
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, int(peak), limit)
	assert.Equal(t, 0, th.Count())
	assert.Equal(t, 0, th.Waiting())
}

func TestThrottle_UnboundedAdmitsImmediately(t *testing.T) {
	th := NewThrottle(Unbounded)
	assert.False(t, th.Active())

	releases := make([]func(), 0, 100)
	for i := 0; i < 100; i++ {
		r, err := th.Acquire(context.Background())
		require.NoError(t, err)
		releases = append(releases, r)
	}
	assert.Equal(t, 0, th.Count())
	for _, r := range releases {
		r()
	}
}

func TestThrottle_NegativeLimitMeansUnbounded(t *testing.T) {
	assert.Equal(t, Unbounded, NewThrottle(-7).Limit())
}

func TestThrottle_ZeroRejects(t *testing.T) {
	th := NewThrottle(NoConcurrency)
	assert.True(t, th.Active())

	release, err := th.Acquire(context.Background())
	assert.ErrorIs(t, err, domain.ErrThrottleClosed)
	assert.Nil(t, release)
}

func TestThrottle_WaiterAdmittedAfterRelease(t *testing.T) {
	th := NewThrottle(1)
	release, err := th.Acquire(context.Background())
	require.NoError(t, err)

	admitted := make(chan struct{})
	go func() {
		r, err := th.Acquire(context.Background())
		if assert.NoError(t, err) {
			close(admitted)
			r()
		}
	}()

	require.Eventually(t, func() bool { return th.Waiting() == 1 }, time.Second, time.Millisecond)
	select {
	case <-admitted:
		t.Fatal("second caller admitted while the slot was held")
	default:
	}

	release()
	select {
	case <-admitted:
	case <-time.After(time.Second):
		t.Fatal("waiter not admitted after release")
	}
}

func TestThrottle_CancelledWaitDoesNotTakeSlot(t *testing.T) {
	th := NewThrottle(1)
	release, err := th.Acquire(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = th.Acquire(ctx)
	require.ErrorIs(t, err, domain.ErrThrottleInterrupted)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	assert.Equal(t, 1, th.Count())
	assert.Equal(t, 0, th.Waiting())
	release()
	assert.Equal(t, 0, th.Count())
}

func TestThrottle_AlreadyCancelledContext(t *testing.T) {
	th := NewThrottle(1)
	r, err := th.Acquire(context.Background())
	require.NoError(t, err)
	defer r()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = th.Acquire(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestThrottle_DoubleReleaseNeverGoesNegative(t *testing.T) {
	th := NewThrottle(2)
	r1, err := th.Acquire(context.Background())
	require.NoError(t, err)
	r2, err := th.Acquire(context.Background())
	require.NoError(t, err)

	r1()
	r1()
	assert.Equal(t, 1, th.Count())
	r2()
	r2()
	assert.Equal(t, 0, th.Count())
}

func TestThrottle_SetLimit(t *testing.T) {
	th := NewThrottle(1)
	release, err := th.Acquire(context.Background())
	require.NoError(t, err)

	assert.ErrorIs(t, th.SetLimit(5), domain.ErrThrottleBusy)
	assert.Equal(t, 1, th.Limit())

	release()
	require.NoError(t, th.SetLimit(0))
	_, err = th.Acquire(context.Background())
	assert.ErrorIs(t, err, domain.ErrThrottleClosed)

	require.NoError(t, th.SetLimit(Unbounded))
	_, err = th.Acquire(context.Background())
	assert.NoError(t, err)
}

func TestThrottle_SetLimitFromUnboundedWithCallersInFlight(t *testing.T) {
	th := NewThrottle(Unbounded)
	release, err := th.Acquire(context.Background())
	require.NoError(t, err)

	assert.ErrorIs(t, th.SetLimit(1), domain.ErrThrottleBusy)
	assert.Equal(t, Unbounded, th.Limit())

	release()
	release()
	require.NoError(t, th.SetLimit(1))
	r1, err := th.Acquire(context.Background())
	require.NoError(t, err)
	defer r1()
	assert.Equal(t, 1, th.Count())
}

func TestThrottle_ReleaseAdmitsExactlyOneWaiter(t *testing.T) {
	th := NewThrottle(1)
	release, err := th.Acquire(context.Background())
	require.NoError(t, err)

	const waiters = 3
	admitted := make(chan func(), waiters)
	for i := 0; i < waiters; i++ {
		go func() {
			r, err := th.Acquire(context.Background())
			if assert.NoError(t, err) {
				admitted <- r
			}
		}()
	}
	require.Eventually(t, func() bool { return th.Waiting() == waiters }, time.Second, time.Millisecond)

	release()
	var next func()
	select {
	case next = <-admitted:
	case <-time.After(time.Second):
		t.Fatal("no waiter admitted after release")
	}
	require.Eventually(t, func() bool { return th.Waiting() == waiters-1 }, time.Second, time.Millisecond)

	// nenhuma admissão dupla
	select {
	case <-admitted:
		t.Fatal("two waiters admitted for one release")
	case <-time.After(20 * time.Millisecond):
	}
	assert.Equal(t, 1, th.Count())
	assert.Equal(t, waiters-1, th.Waiting())

	// libera o resto em cadeia
	next()
	for i := 0; i < waiters-1; i++ {
		(<-admitted)()
	}
	assert.Equal(t, 0, th.Count())
}
