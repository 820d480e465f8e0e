package infra

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"method-dispatch/interception/domain"
)

// GoroutineWorker roda cada tarefa numa goroutine nova.
//
// Sem limite é o worker de fallback do Resolver. Com limite, a espera pela vaga
// acontece dentro da goroutine da tarefa, nunca em quem submete.
type GoroutineWorker struct {
	throttle     *Throttle
	urgentBypass bool
	logger       *slog.Logger

	wg      sync.WaitGroup
	mu      sync.Mutex
	stopped bool
}

var (
	_ domain.DeadlineWorker = (*GoroutineWorker)(nil)
	_ domain.Stopper        = (*GoroutineWorker)(nil)
)

type GoroutineOption func(*GoroutineWorker)

// WithConcurrencyLimit limita quantas tarefas rodam ao mesmo tempo (-1 = sem limite).
func WithConcurrencyLimit(limit int) GoroutineOption {
	return func(w *GoroutineWorker) { w.throttle = NewThrottle(limit) }
}

// WithUrgentBypass deixa tarefas com DeadlineImmediate ignorarem o limite.
func WithUrgentBypass(bypass bool) GoroutineOption {
	return func(w *GoroutineWorker) { w.urgentBypass = bypass }
}

func WithWorkerLogger(l *slog.Logger) GoroutineOption {
	return func(w *GoroutineWorker) { w.logger = l }
}

func NewGoroutineWorker(opts ...GoroutineOption) *GoroutineWorker {
	w := &GoroutineWorker{
		throttle: NewThrottle(Unbounded),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func (w *GoroutineWorker) Throttle() *Throttle { return w.throttle }

func (w *GoroutineWorker) Execute(fn func()) error {
	return w.ExecuteWithin(fn, domain.DeadlineNone, nil)
}

func (w *GoroutineWorker) Submit(ctx context.Context, task domain.Task) (domain.Future, error) {
	return w.SubmitWithin(ctx, task, domain.DeadlineNone, nil)
}

// ExecuteWithin agenda fn respeitando o prazo de início d. Se a tarefa for
// descartada antes de começar, o erro vai para onDrop (ou só para o log).
func (w *GoroutineWorker) ExecuteWithin(fn func(), d domain.StartDeadline, onDrop domain.DropHandler) error {
	if fn == nil {
		return fmt.Errorf("%w: nil task", domain.ErrRejected)
	}
	if !w.track() {
		return domain.ErrWorkerStopped
	}
	go func() {
		defer w.wg.Done()
		release, err := w.admit(context.Background(), d)
		if err != nil {
			if onDrop == nil {
				w.logger.Error("task dropped before start", "error", err)
				return
			}
			w.safely(func() { _ = onDrop(err) })
			return
		}
		defer release()
		w.safely(fn)
	}()
	return nil
}

// SubmitWithin é o Submit com prazo de início. Sem onDrop, o erro de admissão
// conclui o Future; com onDrop, o Future recebe o que onDrop devolver.
// Um Future cancelado durante a espera não passa por onDrop.
func (w *GoroutineWorker) SubmitWithin(ctx context.Context, task domain.Task, d domain.StartDeadline, onDrop domain.DropHandler) (domain.Future, error) {
	if task == nil {
		return nil, fmt.Errorf("%w: nil task", domain.ErrRejected)
	}
	if !w.track() {
		return nil, domain.ErrWorkerStopped
	}
	p := NewPromise(ctx)
	go func() {
		defer w.wg.Done()
		release, err := w.admit(p.Context(), d)
		if err != nil {
			w.drop(p, err, onDrop)
			return
		}
		defer release()
		p.run(task)
	}()
	return p, nil
}

func (w *GoroutineWorker) drop(p *Promise, err error, onDrop domain.DropHandler) {
	if p.Cancelled() {
		return
	}
	if onDrop != nil {
		defer func() {
			if r := recover(); r != nil {
				w.logger.Error("drop handler panicked", "panic", r, "error", err)
				p.Fail(err)
			}
		}()
		err = onDrop(err)
	}
	p.Complete(nil, err)
}

// track registra uma tarefa em voo; falso depois de Stop.
func (w *GoroutineWorker) track() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return false
	}
	w.wg.Add(1)
	return true
}

func (w *GoroutineWorker) admit(ctx context.Context, d domain.StartDeadline) (func(), error) {
	switch {
	case d == domain.DeadlineImmediate && w.urgentBypass:
		return func() {}, nil
	case d == domain.DeadlineImmediate:
		// começa agora ou não começa
		c, cancel := context.WithCancel(ctx)
		cancel()
		ctx = c
	case d > 0:
		c, cancel := context.WithTimeout(ctx, time.Duration(d))
		defer cancel()
		ctx = c
	}

	release, err := w.throttle.Acquire(ctx)
	if err != nil && d != domain.DeadlineNone && errors.Is(err, domain.ErrThrottleInterrupted) {
		return nil, fmt.Errorf("%w: %w", domain.ErrStartDeadline, err)
	}
	return release, err
}

func (w *GoroutineWorker) safely(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("task panicked", "panic", r)
		}
	}()
	fn()
}

// Stop recusa novas tarefas e espera as que estão em voo (ou ctx encerrar).
func (w *GoroutineWorker) Stop(ctx context.Context) error {
	w.mu.Lock()
	w.stopped = true
	w.mu.Unlock()
	return waitGroup(ctx, &w.wg)
}

func waitGroup(ctx context.Context, wg *sync.WaitGroup) error {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
