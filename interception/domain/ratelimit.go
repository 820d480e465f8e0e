package domain

// Regras e contratos do rate limit aplicado a invocações.

import "time"

// Key identifica o "dono" de um bucket (call site, call site + argumento, etc.).
type Key string

// Limiter decide se uma chamada é permitida agora.
//
// A camada de infra usa golang.org/x/time/rate (token bucket).
type Limiter interface {
	Allow() bool
}

// RetryHinter é opcional: informa quanto falta para o próximo token.
type RetryHinter interface {
	RetryIn() time.Duration
}

// LimiterStore obtém um limiter por chave.
// A implementação pode manter cache, TTL, etc.
type LimiterStore interface {
	Get(Key) Limiter
}

type Decision struct {
	Allowed bool
	// RetryAfter é a sugestão de espera quando bloquear.
	// Se 0, não há recomendação.
	RetryAfter time.Duration
}
