package application

import (
	"context"
	"time"

	"method-dispatch/interception/domain"
)

// ThrottleService concentra a regra de aquisição/liberação de vagas com timeout,
// sem saber nada sobre a cadeia de interceptores.
type ThrottleService struct {
	Throttle       domain.Throttle
	AcquireTimeout time.Duration
}

// Acquire tenta adquirir uma vaga.
// - Se `AcquireTimeout <= 0`, espera indefinidamente (até ctx cancelar).
// - Se `AcquireTimeout > 0`, espera até o timeout.
// Em caso de erro nenhuma vaga foi adquirida e release é nil.
func (s ThrottleService) Acquire(ctx context.Context) (func(), error) {
	if s.Throttle == nil {
		return func() {}, nil
	}

	if s.AcquireTimeout <= 0 {
		return s.Throttle.Acquire(ctx)
	}

	acqCtx, cancel := context.WithTimeout(ctx, s.AcquireTimeout)
	defer cancel()
	return s.Throttle.Acquire(acqCtx)
}

// Guard executa fn dentro de uma vaga; o release acontece em todos os caminhos
// de saída, inclusive panic.
func (s ThrottleService) Guard(ctx context.Context, fn func() (any, error)) (any, error) {
	release, err := s.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()
	return fn()
}
