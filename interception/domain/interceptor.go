package domain

import "math"

const (
	HighestPrecedence = math.MinInt32
	LowestPrecedence  = math.MaxInt32
)

// Interceptor é um elo da cadeia. Pode executar código antes/depois de
// inv.Proceed(), interromper a cadeia ou trocar o resultado.
type Interceptor interface {
	Invoke(inv Invocation) (any, error)
}

// InterceptorFunc adapta uma função comum para Interceptor.
type InterceptorFunc func(inv Invocation) (any, error)

func (f InterceptorFunc) Invoke(inv Invocation) (any, error) { return f(inv) }

// Ordered é implementado por interceptores com precedência configurável.
// Valores menores rodam antes (mais externos).
type Ordered interface {
	Order() int
}

// Named é opcional; usado apenas em logs.
type Named interface {
	Name() string
}
