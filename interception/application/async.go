package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"method-dispatch/interception/domain"
)

// AsyncInterceptor não chama o próximo elo na goroutine do chamador: entrega o
// restante da cadeia a um worker e retorna na hora.
//
// Para que o restante da cadeia rode no worker, ele deve ser o elo mais externo
// (Order padrão = HighestPrecedence).
type AsyncInterceptor struct {
	resolver *Resolver
	router   *ExceptionRouter
	stats    domain.StatsStore
	logger   *slog.Logger
	order    int
}

type AsyncOption func(*AsyncInterceptor)

func WithAsyncOrder(order int) AsyncOption {
	return func(a *AsyncInterceptor) { a.order = order }
}

func WithAsyncStats(stats domain.StatsStore) AsyncOption {
	return func(a *AsyncInterceptor) { a.stats = stats }
}

func WithAsyncLogger(l *slog.Logger) AsyncOption {
	return func(a *AsyncInterceptor) { a.logger = l }
}

func NewAsyncInterceptor(resolver *Resolver, router *ExceptionRouter, opts ...AsyncOption) *AsyncInterceptor {
	a := &AsyncInterceptor{
		resolver: resolver,
		router:   router,
		logger:   slog.Default(),
		order:    domain.HighestPrecedence,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.router == nil {
		a.router = NewExceptionRouter(nil, a.stats, a.logger)
	}
	return a
}

func (a *AsyncInterceptor) Order() int   { return a.order }
func (a *AsyncInterceptor) Name() string { return "async" }

// Invoke resolve o worker, agenda a continuação e retorna sem esperar.
// ShapeVoid devolve (nil, nil); os demais formatos devolvem o domain.Future.
// Erros de resolução ou rejeição do worker voltam de forma síncrona.
func (a *AsyncInterceptor) Invoke(inv domain.Invocation) (any, error) {
	site := inv.CallSite()
	worker, err := a.resolver.Resolve(site)
	if err != nil {
		return nil, err
	}

	args := append([]any(nil), inv.Arguments()...)
	cont := inv.Clone()
	base := context.WithoutCancel(inv.Context())
	task := func(ctx context.Context) (any, error) {
		return a.run(ctx, cont, site, args)
	}

	// descartes antes do início (prazo, throttle do worker) seguem o mesmo
	// destino dos erros da continuação
	onDrop := func(err error) error {
		a.logger.Warn("async task dropped before start", "site", site.Name, "error", err)
		a.record(site, domain.OutcomeFailed)
		return a.router.Route(err, site, args)
	}
	dw, hasDeadline := worker.(domain.DeadlineWorker)

	if !site.Shape.ReturnsHandle() {
		fn := func() { _, _ = task(base) }
		if hasDeadline {
			err = dw.ExecuteWithin(fn, site.Deadline, onDrop)
		} else {
			err = worker.Execute(fn)
		}
		if err != nil {
			return nil, a.rejected(site, err)
		}
		a.record(site, domain.OutcomeSubmitted)
		return nil, nil
	}

	var fut domain.Future
	if hasDeadline {
		fut, err = dw.SubmitWithin(base, task, site.Deadline, onDrop)
	} else {
		fut, err = worker.Submit(base, task)
	}
	if err != nil {
		return nil, a.rejected(site, err)
	}
	a.record(site, domain.OutcomeSubmitted)
	return fut, nil
}

// run roda no worker: prossegue a cadeia, desembrulha um Future aninhado e
// encaminha qualquer erro ao router.
func (a *AsyncInterceptor) run(ctx context.Context, cont domain.Invocation, site domain.CallSite, args []any) (any, error) {
	res, err := a.proceed(ctx, cont)
	if err != nil {
		a.record(site, domain.OutcomeFailed)
		return nil, a.router.Route(err, site, args)
	}
	if site.Shape == domain.ShapeCompletion {
		// só sinaliza término
		return nil, nil
	}
	return res, nil
}

func (a *AsyncInterceptor) proceed(ctx context.Context, cont domain.Invocation) (res any, err error) {
	defer func() {
		if p := recover(); p != nil {
			res, err = nil, &domain.PanicError{Value: p, Stack: debug.Stack()}
		}
	}()

	cont.SetContext(ctx)
	res, err = cont.Proceed()
	if err != nil {
		return nil, err
	}
	if f, ok := res.(domain.Future); ok {
		return f.Get(ctx)
	}
	return res, nil
}

func (a *AsyncInterceptor) rejected(site domain.CallSite, err error) error {
	a.record(site, domain.OutcomeRejected)
	a.logger.Warn("async task rejected", "site", site.Name, "error", err)
	if errors.Is(err, domain.ErrRejected) {
		return fmt.Errorf("%s: %w", site.Name, err)
	}
	return fmt.Errorf("%w: %s: %w", domain.ErrRejected, site.Name, err)
}

func (a *AsyncInterceptor) record(site domain.CallSite, outcome domain.Outcome) {
	if a.stats == nil {
		return
	}
	_ = a.stats.Record(context.Background(), domain.StatsEvent{
		Key:     domain.Key(site.Name),
		Site:    site.Name,
		Outcome: outcome,
		At:      time.Now(),
	})
}
