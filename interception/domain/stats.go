package domain

import (
	"context"
	"time"
)

// Outcome é o desfecho registrado para uma invocação.
type Outcome string

const (
	OutcomeAllowed   Outcome = "allowed"   // rate limit deixou passar
	OutcomeDenied    Outcome = "denied"    // rate limit bloqueou
	OutcomeSubmitted Outcome = "submitted" // entregue a um worker
	OutcomeRejected  Outcome = "rejected"  // worker recusou
	OutcomeFailed    Outcome = "failed"    // continuação terminou com erro
	OutcomeHandled   Outcome = "handled"   // erro entregue ao ExceptionHandler
)

// StatsEvent representa um evento de decisão/despacho.
//
// Cuidado com cardinalidade: Key pode conter argumentos da chamada.
type StatsEvent struct {
	Key     Key
	Site    string
	Outcome Outcome

	At time.Time
}

// StatsStore é a estratégia de persistência das estatísticas.
//
// Implementações podem armazenar em Redis, memória, etc.
// Quem registra trata erro como best-effort (não derruba a chamada).
type StatsStore interface {
	Record(ctx context.Context, ev StatsEvent) error
}
