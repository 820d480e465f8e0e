package infra

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"runtime"
	"sort"
	"sync"
	"time"

	"method-dispatch/interception/domain"
)

// PoolWorker reaproveita goroutines em ordem FILO: a que ficou ociosa por último
// atende a próxima tarefa, mantendo caches quentes. Goroutines ociosas há mais
// de maxIdle são encerradas pelo limpador.
//
// Baseado no workerpool do fasthttp (Submit em vez de Serve(conn)).
type PoolWorker struct {
	maxWorkers int
	maxIdle    time.Duration
	logger     *slog.Logger

	mu       sync.Mutex
	workers  int
	stopped  bool
	ready    []*poolSlot
	stopCh   chan struct{}
	inflight sync.WaitGroup

	slots sync.Pool
}

type poolSlot struct {
	lastUse time.Time
	ch      chan func()
}

var (
	_ domain.Worker  = (*PoolWorker)(nil)
	_ domain.Stopper = (*PoolWorker)(nil)
)

type PoolOption func(*PoolWorker)

// WithMaxWorkers limita o número de goroutines (<= 0 = sem limite prático).
func WithMaxWorkers(n int) PoolOption {
	return func(p *PoolWorker) { p.maxWorkers = n }
}

func WithMaxIdle(d time.Duration) PoolOption {
	return func(p *PoolWorker) { p.maxIdle = d }
}

func WithPoolLogger(l *slog.Logger) PoolOption {
	return func(p *PoolWorker) { p.logger = l }
}

// slotCap: channel bloqueante com GOMAXPROCS=1 troca direto para a goroutine
// do worker; com mais CPUs, buffer 1 evita atrasar quem submete.
var slotCap = func() int {
	if runtime.GOMAXPROCS(0) == 1 {
		return 0
	}
	return 1
}()

func NewPoolWorker(opts ...PoolOption) *PoolWorker {
	p := &PoolWorker{
		maxIdle: 10 * time.Second,
		logger:  slog.Default(),
		stopCh:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.maxWorkers <= 0 {
		p.maxWorkers = math.MaxInt32
	}
	if p.maxIdle <= 0 {
		p.maxIdle = 10 * time.Second
	}
	p.slots.New = func() any {
		return &poolSlot{ch: make(chan func(), slotCap)}
	}
	go p.cleaner()
	return p
}

func (p *PoolWorker) cleaner() {
	t := time.NewTicker(p.maxIdle)
	defer t.Stop()
	var scratch []*poolSlot
	for {
		select {
		case <-p.stopCh:
			return
		case <-t.C:
			p.clean(&scratch)
		}
	}
}

// clean encerra as goroutines ociosas há mais de maxIdle. ready está ordenado
// por lastUse, então as mais antigas ficam no começo.
func (p *PoolWorker) clean(scratch *[]*poolSlot) {
	critical := time.Now().Add(-p.maxIdle)

	p.mu.Lock()
	ready := p.ready
	n := len(ready)
	i := sort.Search(n, func(i int) bool { return !ready[i].lastUse.Before(critical) })
	if i == 0 {
		p.mu.Unlock()
		return
	}
	*scratch = append((*scratch)[:0], ready[:i]...)
	m := copy(ready, ready[i:])
	for j := m; j < n; j++ {
		ready[j] = nil
	}
	p.ready = ready[:m]
	p.mu.Unlock()

	// fora do lock: o envio pode demorar se a goroutine estiver em outra CPU
	tmp := *scratch
	for j := range tmp {
		tmp[j].ch <- nil
		tmp[j] = nil
	}
}

// Execute entrega fn a uma goroutine ociosa ou cria uma nova.
// Falha com domain.ErrRejected quando o pool está no limite.
func (p *PoolWorker) Execute(fn func()) error {
	if fn == nil {
		return fmt.Errorf("%w: nil task", domain.ErrRejected)
	}
	slot, err := p.getSlot()
	if err != nil {
		return err
	}
	slot.ch <- fn
	return nil
}

func (p *PoolWorker) Submit(ctx context.Context, task domain.Task) (domain.Future, error) {
	if task == nil {
		return nil, fmt.Errorf("%w: nil task", domain.ErrRejected)
	}
	pr := NewPromise(ctx)
	if err := p.Execute(func() { pr.run(task) }); err != nil {
		return nil, err
	}
	return pr, nil
}

func (p *PoolWorker) getSlot() (*poolSlot, error) {
	var slot *poolSlot
	create := false

	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return nil, domain.ErrWorkerStopped
	}
	n := len(p.ready) - 1
	if n < 0 {
		if p.workers >= p.maxWorkers {
			p.mu.Unlock()
			return nil, fmt.Errorf("%w: no idle workers (max %d)", domain.ErrRejected, p.maxWorkers)
		}
		create = true
		p.workers++
	} else {
		slot = p.ready[n]
		p.ready[n] = nil
		p.ready = p.ready[:n]
	}
	p.inflight.Add(1)
	p.mu.Unlock()

	if create {
		v := p.slots.Get()
		slot = v.(*poolSlot)
		go func() {
			p.work(slot)
			p.slots.Put(v)
		}()
	}
	return slot, nil
}

func (p *PoolWorker) work(slot *poolSlot) {
	for fn := range slot.ch {
		if fn == nil {
			break
		}
		p.run(fn)
		if !p.release(slot) {
			break
		}
	}

	p.mu.Lock()
	p.workers--
	p.mu.Unlock()
}

func (p *PoolWorker) run(fn func()) {
	defer p.inflight.Done()
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("pool task panicked", "panic", r)
		}
	}()
	fn()
}

// release devolve a goroutine à lista de ociosas; falso se o pool parou.
func (p *PoolWorker) release(slot *poolSlot) bool {
	slot.lastUse = time.Now()

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return false
	}
	p.ready = append(p.ready, slot)
	return true
}

// Workers devolve (goroutines vivas, goroutines ociosas).
func (p *PoolWorker) Workers() (alive, idle int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.workers, len(p.ready)
}

// Stop recusa novas tarefas, encerra as goroutines ociosas e espera as
// ocupadas terminarem (ou ctx encerrar).
func (p *PoolWorker) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.stopped {
		p.stopped = true
		close(p.stopCh)
		for i := range p.ready {
			p.ready[i].ch <- nil
			p.ready[i] = nil
		}
		p.ready = p.ready[:0]
	}
	p.mu.Unlock()
	return waitGroup(ctx, &p.inflight)
}
