package infra

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"method-dispatch/interception/domain"
)

// Registry guarda os workers por nome, na ordem de registro.
type Registry struct {
	mu      sync.RWMutex
	byName  map[string]domain.NamedWorker
	ordered []string
}

var _ domain.WorkerRegistry = (*Registry)(nil)

func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]domain.NamedWorker)}
}

func (r *Registry) Register(name string, kind domain.WorkerKind, w domain.Worker) error {
	if name == "" {
		return errors.New("worker name is required")
	}
	if w == nil {
		return fmt.Errorf("worker %q is nil", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byName[name]; ok {
		return fmt.Errorf("worker %q already registered", name)
	}
	r.byName[name] = domain.NamedWorker{Name: name, Kind: kind, Worker: w}
	r.ordered = append(r.ordered, name)
	return nil
}

func (r *Registry) Lookup(name string) (domain.Worker, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	nw, ok := r.byName[name]
	if !ok {
		return nil, false
	}
	return nw.Worker, true
}

// Candidates devolve os workers de qualquer um dos tipos pedidos.
// Sem tipos, devolve todos.
func (r *Registry) Candidates(kinds ...domain.WorkerKind) []domain.NamedWorker {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.NamedWorker, 0, len(r.ordered))
	for _, name := range r.ordered {
		nw := r.byName[name]
		if len(kinds) == 0 || hasKind(kinds, nw.Kind) {
			out = append(out, nw)
		}
	}
	return out
}

func hasKind(kinds []domain.WorkerKind, k domain.WorkerKind) bool {
	for _, want := range kinds {
		if want == k {
			return true
		}
	}
	return false
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.ordered...)
}

// Shutdown para em paralelo todos os workers que implementam domain.Stopper.
// Devolve o primeiro erro.
func (r *Registry) Shutdown(ctx context.Context) error {
	r.mu.RLock()
	stoppers := make([]domain.Stopper, 0, len(r.ordered))
	for _, name := range r.ordered {
		if s, ok := r.byName[name].Worker.(domain.Stopper); ok {
			stoppers = append(stoppers, s)
		}
	}
	r.mu.RUnlock()

	g, gctx := errgroup.WithContext(ctx)
	for _, s := range stoppers {
		s := s
		g.Go(func() error { return s.Stop(gctx) })
	}
	return g.Wait()
}
