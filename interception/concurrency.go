package interception

import (
	"time"

	"method-dispatch/interception/application"
	"method-dispatch/interception/domain"
	"method-dispatch/interception/infra"
)

// ConcurrencyOptions configura o interceptor de throttle.
//
// Limit segue a convenção do infra.Throttle: -1 sem limite, 0 recusa tudo,
// K > 0 no máximo K execuções simultâneas do restante da cadeia.
type ConcurrencyOptions struct {
	Limit          int
	AcquireTimeout time.Duration
	// Throttle, se definido, substitui o criado a partir de Limit
	// (ex.: compartilhar o mesmo limite entre vários call sites).
	Throttle domain.Throttle
	Order    int
}

// ConcurrencyInterceptor segura uma vaga do throttle enquanto o restante da
// cadeia executa. Colocado depois do Async, a espera acontece no worker.
type ConcurrencyInterceptor struct {
	svc   application.ThrottleService
	order int
}

// Concurrency monta o interceptor a partir de opts.
//
// Atenção: o zero value ConcurrencyOptions{} tem Limit 0 e cria um throttle
// fechado, em que toda chamada falha com domain.ErrThrottleClosed. Para não
// limitar, use Limit: -1 (infra.Unbounded).
func Concurrency(opts ConcurrencyOptions) *ConcurrencyInterceptor {
	th := opts.Throttle
	if th == nil {
		th = infra.NewThrottle(opts.Limit)
	}
	return &ConcurrencyInterceptor{
		svc: application.ThrottleService{
			Throttle:       th,
			AcquireTimeout: opts.AcquireTimeout,
		},
		order: opts.Order,
	}
}

func (c *ConcurrencyInterceptor) Order() int   { return c.order }
func (c *ConcurrencyInterceptor) Name() string { return "throttle" }

func (c *ConcurrencyInterceptor) Invoke(inv domain.Invocation) (any, error) {
	return c.svc.Guard(inv.Context(), inv.Proceed)
}
