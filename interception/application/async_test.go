package application_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"method-dispatch/interception/application"
	"method-dispatch/interception/domain"
	"method-dispatch/interception/infra"
)

type mockHandler struct {
	mock.Mock
}

func (m *mockHandler) HandleUncaught(err error, site domain.CallSite, args []any) {
	m.Called(err, site, args)
}

type singleRegistry struct {
	w domain.Worker
}

func (r singleRegistry) Lookup(name string) (domain.Worker, bool) {
	return r.w, name == domain.DefaultWorkerName
}

func (r singleRegistry) Candidates(...domain.WorkerKind) []domain.NamedWorker {
	return []domain.NamedWorker{{Name: domain.DefaultWorkerName, Kind: domain.KindTaskExecutor, Worker: r.w}}
}

func newAsync(t *testing.T, w domain.Worker, handler domain.ExceptionHandler, stats domain.StatsStore) *application.AsyncInterceptor {
	t.Helper()
	resolver := application.NewResolver(singleRegistry{w: w})
	router := application.NewExceptionRouter(handler, stats, nil)
	return application.NewAsyncInterceptor(resolver, router, application.WithAsyncStats(stats))
}

func execute(t *testing.T, async domain.Interceptor, shape domain.ResultShape, terminal domain.Terminal, args ...any) (any, error) {
	t.Helper()
	chain := application.NewChain(terminal, async)
	return chain.Execute(context.Background(), nil, domain.CallSite{Name: "job", Shape: shape}, args)
}

func TestAsync_VoidReturnsBeforeTerminalRuns(t *testing.T) {
	w := infra.NewGoroutineWorker()
	gate := make(chan struct{})
	ran := make(chan struct{})

	res, err := execute(t, newAsync(t, w, nil, nil), domain.ShapeVoid, func(context.Context, any, []any) (any, error) {
		<-gate
		close(ran)
		return "ignored", nil
	})
	require.NoError(t, err)
	assert.Nil(t, res)

	close(gate)
	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("terminal never ran on the worker")
	}
	require.NoError(t, w.Stop(context.Background()))
}

func TestAsync_VoidErrorGoesToHandlerOnce(t *testing.T) {
	boom := errors.New("boom")
	handled := make(chan struct{})
	h := &mockHandler{}
	h.On("HandleUncaught", boom, mock.AnythingOfType("domain.CallSite"), []any{"a", 1}).
		Run(func(mock.Arguments) { close(handled) }).
		Once()
	stats := infra.NewMemoryStatsStore()

	w := infra.NewGoroutineWorker()
	res, err := execute(t, newAsync(t, w, h, stats), domain.ShapeVoid, func(context.Context, any, []any) (any, error) {
		return nil, boom
	}, "a", 1)
	require.NoError(t, err)
	assert.Nil(t, res)

	select {
	case <-handled:
	case <-time.After(time.Second):
		t.Fatal("handler not called")
	}
	require.NoError(t, w.Stop(context.Background()))
	h.AssertExpectations(t)

	total := stats.Total()
	assert.EqualValues(t, 1, total[domain.OutcomeSubmitted])
	assert.EqualValues(t, 1, total[domain.OutcomeFailed])
	assert.EqualValues(t, 1, total[domain.OutcomeHandled])
}

func TestAsync_FutureCarriesValue(t *testing.T) {
	w := infra.NewGoroutineWorker()
	res, err := execute(t, newAsync(t, w, nil, nil), domain.ShapeFuture, func(_ context.Context, _ any, args []any) (any, error) {
		return args[0].(int) * 2, nil
	}, 21)
	require.NoError(t, err)

	fut, ok := res.(domain.Future)
	require.True(t, ok)
	v, err := fut.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestAsync_FutureErrorSkipsHandler(t *testing.T) {
	boom := errors.New("boom")
	h := &mockHandler{}

	res, err := execute(t, newAsync(t, infra.NewGoroutineWorker(), h, nil), domain.ShapeFuture, func(context.Context, any, []any) (any, error) {
		return nil, boom
	})
	require.NoError(t, err)

	_, err = res.(domain.Future).Get(context.Background())
	assert.ErrorIs(t, err, boom)
	h.AssertNotCalled(t, "HandleUncaught", mock.Anything, mock.Anything, mock.Anything)
}

func TestAsync_CompletionErrorGoesToHandler(t *testing.T) {
	boom := errors.New("boom")
	h := &mockHandler{}
	h.On("HandleUncaught", boom, mock.Anything, mock.Anything).Once()

	res, err := execute(t, newAsync(t, infra.NewGoroutineWorker(), h, nil), domain.ShapeCompletion, func(context.Context, any, []any) (any, error) {
		return "value is dropped", boom
	})
	require.NoError(t, err)

	v, err := res.(domain.Future).Get(context.Background())
	require.NoError(t, err)
	assert.Nil(t, v)
	h.AssertExpectations(t)
}

func TestAsync_PanicBecomesPanicError(t *testing.T) {
	res, err := execute(t, newAsync(t, infra.NewGoroutineWorker(), nil, nil), domain.ShapeFuture, func(context.Context, any, []any) (any, error) {
		panic("kaboom")
	})
	require.NoError(t, err)

	_, err = res.(domain.Future).Get(context.Background())
	var pe *domain.PanicError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "kaboom", pe.Value)
	assert.NotEmpty(t, pe.Stack)
}

func TestAsync_NestedFutureIsUnwrapped(t *testing.T) {
	res, err := execute(t, newAsync(t, infra.NewGoroutineWorker(), nil, nil), domain.ShapeFuture, func(context.Context, any, []any) (any, error) {
		return infra.Completed("inner"), nil
	})
	require.NoError(t, err)

	v, err := res.(domain.Future).Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "inner", v)
}

func TestAsync_RejectionIsSynchronous(t *testing.T) {
	pool := infra.NewPoolWorker(infra.WithMaxWorkers(1))
	t.Cleanup(func() { _ = pool.Stop(context.Background()) })

	hold := make(chan struct{})
	started := make(chan struct{})
	require.NoError(t, pool.Execute(func() {
		close(started)
		<-hold
	}))
	<-started

	stats := infra.NewMemoryStatsStore()
	_, err := execute(t, newAsync(t, pool, nil, stats), domain.ShapeFuture, func(context.Context, any, []any) (any, error) {
		return nil, nil
	})
	assert.ErrorIs(t, err, domain.ErrRejected)
	assert.EqualValues(t, 1, stats.Total()[domain.OutcomeRejected])
	close(hold)
}

func TestAsync_CallerCancellationDoesNotReachWorker(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	gate := make(chan struct{})

	chain := application.NewChain(func(ctx context.Context, _ any, _ []any) (any, error) {
		<-gate
		return nil, ctx.Err()
	}, newAsync(t, infra.NewGoroutineWorker(), nil, nil))

	res, err := chain.Execute(ctx, nil, domain.CallSite{Name: "job", Shape: domain.ShapeFuture}, nil)
	require.NoError(t, err)
	cancel()
	close(gate)

	_, err = res.(domain.Future).Get(context.Background())
	assert.NoError(t, err)
}

func TestAsync_ArgumentsAreSnapshotted(t *testing.T) {
	var mu sync.Mutex
	var seen []any
	gate := make(chan struct{})

	args := []any{"before"}
	chain := application.NewChain(func(_ context.Context, _ any, a []any) (any, error) {
		<-gate
		mu.Lock()
		seen = append([]any(nil), a...)
		mu.Unlock()
		return nil, nil
	}, newAsync(t, infra.NewGoroutineWorker(), nil, nil))

	res, err := chain.Execute(context.Background(), nil, domain.CallSite{Name: "job", Shape: domain.ShapeFuture}, args)
	require.NoError(t, err)
	args[0] = "after"
	close(gate)

	_, err = res.(domain.Future).Get(context.Background())
	require.NoError(t, err)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []any{"before"}, seen)
}

func TestAsync_NoWorkerFailsSynchronously(t *testing.T) {
	resolver := application.NewResolver(nil)
	async := application.NewAsyncInterceptor(resolver, nil)

	_, err := execute(t, async, domain.ShapeVoid, func(context.Context, any, []any) (any, error) { return nil, nil })
	assert.ErrorIs(t, err, domain.ErrNoWorker)
	assert.Equal(t, domain.HighestPrecedence, async.Order())
}

func TestExceptionRouter_HandlerPanicIsContained(t *testing.T) {
	h := domain.ExceptionHandlerFunc(func(error, domain.CallSite, []any) { panic("handler broke") })
	router := application.NewExceptionRouter(h, nil, nil)

	assert.NotPanics(t, func() {
		err := router.Route(errors.New("boom"), domain.CallSite{Name: "x", Shape: domain.ShapeVoid}, nil)
		assert.NoError(t, err)
	})
}

func TestExceptionRouter_FutureShapeReturnsError(t *testing.T) {
	boom := errors.New("boom")
	h := &mockHandler{}
	router := application.NewExceptionRouter(h, nil, nil)

	assert.Same(t, boom, router.Route(boom, domain.CallSite{Shape: domain.ShapeFuture}, nil))
	assert.NoError(t, router.Route(nil, domain.CallSite{Shape: domain.ShapeVoid}, nil))
	h.AssertNotCalled(t, "HandleUncaught", mock.Anything, mock.Anything, mock.Anything)
}

// fullWorker devolve um GoroutineWorker com limite 1 e a vaga já ocupada.
func fullWorker(t *testing.T) *infra.GoroutineWorker {
	t.Helper()
	w := infra.NewGoroutineWorker(infra.WithConcurrencyLimit(1))
	hold := make(chan struct{})
	require.NoError(t, w.Execute(func() { <-hold }))
	require.Eventually(t, func() bool { return w.Throttle().Count() == 1 }, time.Second, time.Millisecond)
	t.Cleanup(func() {
		close(hold)
		_ = w.Stop(context.Background())
	})
	return w
}

func executeSite(t *testing.T, async domain.Interceptor, site domain.CallSite, args ...any) (any, error) {
	t.Helper()
	chain := application.NewChain(func(context.Context, any, []any) (any, error) {
		t.Error("terminal ran past a missed start deadline")
		return nil, nil
	}, async)
	return chain.Execute(context.Background(), nil, site, args)
}

func TestAsync_VoidStartDeadlineGoesToHandler(t *testing.T) {
	handled := make(chan struct{})
	h := &mockHandler{}
	h.On("HandleUncaught",
		mock.MatchedBy(func(err error) bool { return errors.Is(err, domain.ErrStartDeadline) }),
		mock.MatchedBy(func(s domain.CallSite) bool { return s.Name == "late" }),
		[]any{"x"},
	).Run(func(mock.Arguments) { close(handled) }).Once()
	stats := infra.NewMemoryStatsStore()

	site := domain.CallSite{Name: "late", Shape: domain.ShapeVoid, Deadline: domain.StartDeadline(5 * time.Millisecond)}
	res, err := executeSite(t, newAsync(t, fullWorker(t), h, stats), site, "x")
	require.NoError(t, err)
	assert.Nil(t, res)

	select {
	case <-handled:
	case <-time.After(time.Second):
		t.Fatal("handler not called for a dropped task")
	}
	h.AssertExpectations(t)
	assert.EqualValues(t, 1, stats.Total()[domain.OutcomeFailed])
}

func TestAsync_CompletionStartDeadlineGoesToHandler(t *testing.T) {
	h := &mockHandler{}
	h.On("HandleUncaught",
		mock.MatchedBy(func(err error) bool { return errors.Is(err, domain.ErrStartDeadline) }),
		mock.Anything, mock.Anything,
	).Once()

	site := domain.CallSite{Name: "late", Shape: domain.ShapeCompletion, Deadline: domain.StartDeadline(5 * time.Millisecond)}
	res, err := executeSite(t, newAsync(t, fullWorker(t), h, nil), site)
	require.NoError(t, err)

	v, err := res.(domain.Future).Get(context.Background())
	require.NoError(t, err)
	assert.Nil(t, v)
	h.AssertExpectations(t)
}

func TestAsync_FutureStartDeadlineStaysOnFuture(t *testing.T) {
	h := &mockHandler{}

	site := domain.CallSite{Name: "late", Shape: domain.ShapeFuture, Deadline: domain.DeadlineImmediate}
	res, err := executeSite(t, newAsync(t, fullWorker(t), h, nil), site)
	require.NoError(t, err)

	_, err = res.(domain.Future).Get(context.Background())
	assert.ErrorIs(t, err, domain.ErrStartDeadline)
	h.AssertNotCalled(t, "HandleUncaught", mock.Anything, mock.Anything, mock.Anything)
}

func TestAsync_RejectionIsWrappedOnce(t *testing.T) {
	pool := infra.NewPoolWorker(infra.WithMaxWorkers(1))
	t.Cleanup(func() { _ = pool.Stop(context.Background()) })

	hold := make(chan struct{})
	defer close(hold)
	started := make(chan struct{})
	require.NoError(t, pool.Execute(func() {
		close(started)
		<-hold
	}))
	<-started

	_, err := execute(t, newAsync(t, pool, nil, nil), domain.ShapeVoid, func(context.Context, any, []any) (any, error) {
		return nil, nil
	})
	require.ErrorIs(t, err, domain.ErrRejected)
	assert.Equal(t, 1, strings.Count(err.Error(), domain.ErrRejected.Error()))
}

func TestAsync_ExplicitZeroOrder(t *testing.T) {
	async := application.NewAsyncInterceptor(application.NewResolver(nil), nil, application.WithAsyncOrder(0))
	assert.Equal(t, 0, async.Order())
}
