package infra

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"

	"method-dispatch/interception/domain"
)

// CronWorker é o worker do tipo scheduler: além de Execute/Submit imediatos
// (delegados a um GoroutineWorker), agenda tarefas por expressão cron com segundos.
type CronWorker struct {
	cron   *cron.Cron
	runner *GoroutineWorker
	logger *slog.Logger

	mu      sync.Mutex
	started bool
	stopped bool
}

var (
	_ domain.DeadlineWorker = (*CronWorker)(nil)
	_ domain.Stopper        = (*CronWorker)(nil)
)

func NewCronWorker(logger *slog.Logger, opts ...GoroutineOption) *CronWorker {
	if logger == nil {
		logger = slog.Default()
	}
	adapter := cronLogger{logger: logger}
	opts = append([]GoroutineOption{WithWorkerLogger(logger)}, opts...)
	return &CronWorker{
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithLogger(adapter),
			cron.WithChain(cron.Recover(adapter)),
		),
		runner: NewGoroutineWorker(opts...),
		logger: logger,
	}
}

func (c *CronWorker) Execute(fn func()) error { return c.runner.Execute(fn) }

func (c *CronWorker) Submit(ctx context.Context, task domain.Task) (domain.Future, error) {
	return c.runner.Submit(ctx, task)
}

func (c *CronWorker) ExecuteWithin(fn func(), d domain.StartDeadline, onDrop domain.DropHandler) error {
	return c.runner.ExecuteWithin(fn, d, onDrop)
}

func (c *CronWorker) SubmitWithin(ctx context.Context, task domain.Task, d domain.StartDeadline, onDrop domain.DropHandler) (domain.Future, error) {
	return c.runner.SubmitWithin(ctx, task, d, onDrop)
}

// Schedule registra fn sob uma expressão cron (ex.: "*/5 * * * * *") e inicia
// o agendador na primeira chamada.
func (c *CronWorker) Schedule(spec string, fn func()) (cron.EntryID, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return 0, domain.ErrWorkerStopped
	}
	id, err := c.cron.AddFunc(spec, fn)
	if err != nil {
		return 0, fmt.Errorf("invalid cron spec %q: %w", spec, err)
	}
	if !c.started {
		c.cron.Start()
		c.started = true
	}
	return id, nil
}

// ScheduleTask agenda uma domain.Task; erros são só logados.
func (c *CronWorker) ScheduleTask(spec string, task domain.Task) (cron.EntryID, error) {
	return c.Schedule(spec, func() {
		if _, err := task(context.Background()); err != nil {
			c.logger.Error("scheduled task failed", "spec", spec, "error", err)
		}
	})
}

func (c *CronWorker) Remove(id cron.EntryID) { c.cron.Remove(id) }

func (c *CronWorker) Entries() int { return len(c.cron.Entries()) }

// Stop para o agendador, espera os jobs em andamento e depois o runner.
func (c *CronWorker) Stop(ctx context.Context) error {
	c.mu.Lock()
	c.stopped = true
	c.mu.Unlock()

	cronCtx := c.cron.Stop()
	select {
	case <-cronCtx.Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	return c.runner.Stop(ctx)
}

// cronLogger adapta slog para cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append([]any{"error", err}, keysAndValues...)...)
}
