package interception

import (
	"time"

	"method-dispatch/interception/application"
	"method-dispatch/interception/domain"
)

// KeyFunc escolhe o bucket de rate limit de uma invocação.
type KeyFunc func(inv domain.Invocation) string

type RateLimitOptions struct {
	Store      domain.LimiterStore
	Stats      domain.StatsStore
	KeyFn      KeyFunc
	RetryAfter time.Duration
	Order      int
}

// DefaultKeyFunc usa o nome do call site e, se argIndex >= 0 e existir,
// o argumento nessa posição ("site:arg").
func DefaultKeyFunc(argIndex int) KeyFunc {
	return func(inv domain.Invocation) string {
		site := inv.CallSite().Name
		if site == "" {
			site = "unknown"
		}
		args := inv.Arguments()
		if argIndex < 0 || argIndex >= len(args) {
			return site
		}
		return site + ":" + formatKey(args[argIndex])
	}
}

// RateLimitInterceptor bloqueia com *domain.RateLimitError quando o bucket da
// chave está vazio. O restante da cadeia não roda nesse caso.
type RateLimitInterceptor struct {
	svc   application.RateService
	opts  RateLimitOptions
	order int
}

func RateLimit(opts RateLimitOptions) *RateLimitInterceptor {
	if opts.RetryAfter == 0 {
		opts.RetryAfter = 1 * time.Second
	}
	if opts.KeyFn == nil {
		opts.KeyFn = DefaultKeyFunc(-1)
	}
	return &RateLimitInterceptor{
		svc: application.RateService{
			Store:      opts.Store,
			RetryAfter: opts.RetryAfter,
		},
		opts:  opts,
		order: opts.Order,
	}
}

func (r *RateLimitInterceptor) Order() int   { return r.order }
func (r *RateLimitInterceptor) Name() string { return "ratelimit" }

func (r *RateLimitInterceptor) Invoke(inv domain.Invocation) (any, error) {
	key := domain.Key(r.opts.KeyFn(inv))

	dec := r.svc.Decide(key)
	if r.opts.Stats != nil {
		outcome := domain.OutcomeAllowed
		if !dec.Allowed {
			outcome = domain.OutcomeDenied
		}
		_ = r.opts.Stats.Record(inv.Context(), domain.StatsEvent{
			Key:     key,
			Site:    inv.CallSite().Name,
			Outcome: outcome,
			At:      time.Now(),
		})
	}
	if !dec.Allowed {
		return nil, &domain.RateLimitError{Key: key, RetryAfter: dec.RetryAfter}
	}

	return inv.Proceed()
}
