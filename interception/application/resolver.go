package application

import (
	"fmt"
	"log/slog"
	"sync"

	"method-dispatch/interception/domain"
)

// Resolver escolhe o worker de cada call site e guarda a escolha em cache.
//
// Ordem: qualifier explícito (obrigatório existir) e, sem qualifier, o worker
// padrão: único do tipo preferido no registry, senão o registrado como
// domain.DefaultWorkerName, senão o fallback local.
type Resolver struct {
	registry   domain.WorkerRegistry
	qualifiers domain.QualifierResolver
	fallback   func() domain.Worker
	preferred  []domain.WorkerKind
	logger     *slog.Logger

	defaultWorker func() (domain.Worker, error)

	mu    sync.RWMutex
	cache map[domain.CallSite]domain.Worker
}

type ResolverOption func(*Resolver)

func WithQualifierResolver(q domain.QualifierResolver) ResolverOption {
	return func(r *Resolver) { r.qualifiers = q }
}

// WithFallback define o worker construído localmente quando o registry não
// oferece um padrão. nil desativa o fallback (Resolve devolve ErrNoWorker).
func WithFallback(fn func() domain.Worker) ResolverOption {
	return func(r *Resolver) { r.fallback = fn }
}

func WithPreferredKinds(kinds ...domain.WorkerKind) ResolverOption {
	return func(r *Resolver) { r.preferred = kinds }
}

func WithResolverLogger(l *slog.Logger) ResolverOption {
	return func(r *Resolver) { r.logger = l }
}

func NewResolver(registry domain.WorkerRegistry, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		registry:  registry,
		preferred: []domain.WorkerKind{domain.KindTaskExecutor, domain.KindScheduler},
		logger:    slog.Default(),
		cache:     make(map[domain.CallSite]domain.Worker),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.defaultWorker = sync.OnceValues(r.findDefault)
	return r
}

// Resolve devolve o worker do call site. Só resoluções bem sucedidas vão para o cache.
func (r *Resolver) Resolve(site domain.CallSite) (domain.Worker, error) {
	r.mu.RLock()
	w, ok := r.cache[site]
	r.mu.RUnlock()
	if ok {
		return w, nil
	}

	var err error
	if site.Qualifier != "" {
		w, err = r.byQualifier(site)
	} else {
		w, err = r.defaultWorker()
	}
	if err != nil {
		return nil, err
	}

	// duas goroutines podem resolver o mesmo site; o resultado é o mesmo,
	// então a última escrita vence.
	r.mu.Lock()
	r.cache[site] = w
	r.mu.Unlock()
	return w, nil
}

func (r *Resolver) byQualifier(site domain.CallSite) (domain.Worker, error) {
	name := site.Qualifier
	if r.qualifiers != nil {
		resolved, err := r.qualifiers.ResolveQualifier(name)
		if err != nil {
			return nil, fmt.Errorf("resolve qualifier %q for %s: %w", site.Qualifier, site.Name, err)
		}
		name = resolved
	}
	if r.registry != nil {
		if w, ok := r.registry.Lookup(name); ok {
			return w, nil
		}
	}
	return nil, fmt.Errorf("%w: %q (call site %s)", domain.ErrNoSuchWorker, name, site.Name)
}

func (r *Resolver) findDefault() (domain.Worker, error) {
	if r.registry != nil {
		cands := r.registry.Candidates(r.preferred...)
		if len(cands) == 1 {
			return cands[0].Worker, nil
		}
		if w, ok := r.registry.Lookup(domain.DefaultWorkerName); ok {
			return w, nil
		}
		if len(cands) > 1 {
			names := make([]string, 0, len(cands))
			for _, c := range cands {
				names = append(names, c.Name)
			}
			r.logger.Warn("ambiguous default worker, none registered under the default name",
				"candidates", names, "default_name", domain.DefaultWorkerName)
		}
	}
	if r.fallback == nil {
		return nil, domain.ErrNoWorker
	}
	r.logger.Info("no default worker in registry, using local fallback")
	return r.fallback(), nil
}

// Forget limpa o cache (ex.: depois de trocar workers no registry).
// O worker padrão já determinado é mantido.
func (r *Resolver) Forget() {
	r.mu.Lock()
	r.cache = make(map[domain.CallSite]domain.Worker)
	r.mu.Unlock()
}
