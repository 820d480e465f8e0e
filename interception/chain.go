package interception

import (
	"context"

	"method-dispatch/interception/application"
	"method-dispatch/interception/domain"
)

// Options descreve um call site interceptado.
type Options struct {
	// Target é o receptor repassado ao terminal (pode ser nil).
	Target       any
	Site         domain.CallSite
	Interceptors []domain.Interceptor
	// SortByOrder ordena Interceptors por domain.Ordered (estável).
	// Sem isso vale a ordem da lista.
	SortByOrder bool
}

// Invoker é a operação já envolvida pela cadeia.
type Invoker func(ctx context.Context, args ...any) (any, error)

// Wrap monta a cadeia uma vez e devolve o Invoker. Cada chamada cria uma
// Invocation nova; os argumentos são copiados, então o slice do chamador
// nunca é alterado pelos interceptores.
func Wrap(terminal domain.Terminal, opts Options) Invoker {
	list := opts.Interceptors
	if opts.SortByOrder {
		list = application.SortInterceptors(list)
	}
	chain := application.NewChain(terminal, list...)
	return func(ctx context.Context, args ...any) (any, error) {
		return chain.Execute(ctx, opts.Target, opts.Site, append([]any(nil), args...))
	}
}
