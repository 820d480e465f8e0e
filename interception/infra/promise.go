package infra

import (
	"context"
	"runtime/debug"
	"sync"

	"method-dispatch/interception/domain"
)

type promiseState int

const (
	statePending promiseState = iota
	stateRunning
	stateDone
	stateCancelled
)

// Promise é a implementação de domain.Future usada pelos workers.
//
// O lado produtor usa Start/Complete/Fail; o consumidor só vê domain.Future.
// O contexto da promise é cancelado no Cancel, para que a tarefa em execução
// possa desistir (best-effort).
type Promise struct {
	mu        sync.Mutex
	state     promiseState
	res       domain.Result
	done      chan struct{}
	callbacks []func(domain.Result)

	ctx    context.Context
	cancel context.CancelFunc
}

var _ domain.Future = (*Promise)(nil)

func NewPromise(parent context.Context) *Promise {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	return &Promise{done: make(chan struct{}), ctx: ctx, cancel: cancel}
}

// Completed devolve uma promise já concluída com v.
func Completed(v any) *Promise {
	p := NewPromise(nil)
	p.Complete(v, nil)
	return p
}

// Failed devolve uma promise já concluída com err.
func Failed(err error) *Promise {
	p := NewPromise(nil)
	p.Fail(err)
	return p
}

func (p *Promise) Context() context.Context { return p.ctx }

// Start marca o início da execução. Falso se a promise já foi cancelada
// ou concluída: nesse caso a tarefa não deve rodar.
func (p *Promise) Start() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != statePending {
		return false
	}
	p.state = stateRunning
	return true
}

func (p *Promise) Complete(v any, err error) bool {
	if err != nil {
		v = nil
	}
	return p.finish(domain.Result{Value: v, Err: err}, stateDone)
}

// Fail anexa um erro à promise.
func (p *Promise) Fail(err error) bool { return p.Complete(nil, err) }

func (p *Promise) Cancel() bool {
	return p.finish(domain.Result{Err: domain.ErrCancelled}, stateCancelled)
}

func (p *Promise) Cancelled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state == stateCancelled
}

func (p *Promise) finish(res domain.Result, st promiseState) bool {
	p.mu.Lock()
	if p.state == stateDone || p.state == stateCancelled {
		p.mu.Unlock()
		return false
	}
	p.state = st
	p.res = res
	cbs := p.callbacks
	p.callbacks = nil
	close(p.done)
	p.mu.Unlock()

	p.cancel()
	for _, cb := range cbs {
		cb(res)
	}
	return true
}

func (p *Promise) Done() <-chan struct{} { return p.done }

func (p *Promise) Get(ctx context.Context) (any, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case <-p.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.res.Value, p.res.Err
}

func (p *Promise) Poll() (domain.Result, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == stateDone || p.state == stateCancelled {
		return p.res, true
	}
	return domain.Result{}, false
}

func (p *Promise) OnComplete(fn func(domain.Result)) {
	if fn == nil {
		return
	}
	p.mu.Lock()
	if p.state == stateDone || p.state == stateCancelled {
		res := p.res
		p.mu.Unlock()
		fn(res)
		return
	}
	p.callbacks = append(p.callbacks, fn)
	p.mu.Unlock()
}

// run executa a tarefa se a promise ainda não foi cancelada.
// Um panic vira *domain.PanicError no resultado.
func (p *Promise) run(task domain.Task) {
	if !p.Start() {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			p.Fail(&domain.PanicError{Value: r, Stack: debug.Stack()})
		}
	}()
	v, err := task(p.ctx)
	p.Complete(v, err)
}
