package infra

import (
	"context"
	"fmt"
	"sync"

	"method-dispatch/interception/domain"
)

const (
	// Unbounded desativa a contagem.
	Unbounded = -1
	// NoConcurrency fecha o throttle: toda aquisição falha.
	NoConcurrency = 0
)

// Throttle é um semáforo baseado em channel com capacidade `limit`.
//
// O channel é ao mesmo tempo o contador e o mecanismo de espera: cada vaga
// ocupada é um elemento no buffer, e quem espera fica bloqueado no envio.
// O mutex protege a troca de limite, a contagem de quem espera e a de quem
// passou enquanto o limite era -1 (free), que não ocupa o channel.
type Throttle struct {
	mu      sync.Mutex
	limit   int
	sem     chan struct{}
	waiting int
	free    int
}

var _ domain.Throttle = (*Throttle)(nil)

// NewThrottle cria um throttle com o limite dado (-1, 0 ou positivo).
func NewThrottle(limit int) *Throttle {
	t := &Throttle{}
	t.setLimit(limit)
	return t
}

func (t *Throttle) setLimit(limit int) {
	if limit < 0 {
		limit = Unbounded
	}
	t.limit = limit
	t.sem = nil
	if limit > 0 {
		t.sem = make(chan struct{}, limit)
	}
}

// SetLimit troca o limite. Só é permitido sem chamadores em voo
// (admitidos ou esperando); caso contrário devolve domain.ErrThrottleBusy.
func (t *Throttle) SetLimit(limit int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.sem) > 0 || t.waiting > 0 || t.free > 0 {
		return domain.ErrThrottleBusy
	}
	t.setLimit(limit)
	return nil
}

func (t *Throttle) Limit() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.limit
}

// Active indica se há controle de admissão (limite >= 0).
func (t *Throttle) Active() bool { return t.Limit() >= 0 }

// Count é o número de chamadores admitidos e ainda não liberados.
// Sem limite a contagem fica desativada e Count é 0.
func (t *Throttle) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sem)
}

// Waiting é o número de chamadores bloqueados em Acquire.
func (t *Throttle) Waiting() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.waiting
}

// Acquire implementa domain.Throttle.
func (t *Throttle) Acquire(ctx context.Context) (func(), error) {
	t.mu.Lock()
	switch {
	case t.limit == NoConcurrency:
		t.mu.Unlock()
		return nil, domain.ErrThrottleClosed
	case t.limit < 0:
		t.free++
		t.mu.Unlock()
		return t.freeReleaser(), nil
	}

	sem := t.sem
	select {
	case sem <- struct{}{}:
		t.mu.Unlock()
		return releaser(sem), nil
	default:
	}
	t.waiting++
	t.mu.Unlock()

	defer func() {
		t.mu.Lock()
		t.waiting--
		t.mu.Unlock()
	}()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrThrottleInterrupted, err)
	}
	select {
	case sem <- struct{}{}:
		return releaser(sem), nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %w", domain.ErrThrottleInterrupted, ctx.Err())
	}
}

func (t *Throttle) freeReleaser() func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			t.mu.Lock()
			t.free--
			t.mu.Unlock()
		})
	}
}

// releaser libera exatamente uma vaga, uma única vez.
func releaser(sem chan struct{}) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			select {
			case <-sem:
			default:
			}
		})
	}
}
