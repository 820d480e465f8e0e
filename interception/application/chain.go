package application

import (
	"context"

	"method-dispatch/interception/domain"

	"github.com/google/uuid"
)

// Chain é a lista ordenada de interceptores de um call site mais o terminal.
//
// É imutável depois de criada; Execute pode ser chamado de várias goroutines.
type Chain struct {
	interceptors []domain.Interceptor
	terminal     domain.Terminal
}

// NewChain preserva a ordem recebida: o primeiro interceptor é o mais externo.
// Para montar por precedência, passe a lista por SortInterceptors antes.
func NewChain(terminal domain.Terminal, interceptors ...domain.Interceptor) *Chain {
	list := make([]domain.Interceptor, 0, len(interceptors))
	for _, ic := range interceptors {
		if ic != nil {
			list = append(list, ic)
		}
	}
	return &Chain{interceptors: list, terminal: terminal}
}

func (c *Chain) Len() int { return len(c.interceptors) }

// Execute cria uma Invocation e a conduz pela cadeia.
// Erros do terminal ou de qualquer elo voltam sem alteração.
func (c *Chain) Execute(ctx context.Context, target any, site domain.CallSite, args []any) (any, error) {
	if c.terminal == nil {
		return nil, domain.ErrNoTerminal
	}
	if ctx == nil {
		ctx = context.Background()
	}
	inv := &invocation{
		id:     uuid.NewString(),
		ctx:    ctx,
		target: target,
		site:   site,
		args:   args,
		chain:  c,
		index:  -1,
	}
	return inv.Proceed()
}
