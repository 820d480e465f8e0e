package domain

import "context"

// Result é o desfecho de uma continuação: valor ou erro, nunca os dois.
type Result struct {
	Value any
	Err   error
}

// Future é o handle de um resultado pendente.
type Future interface {
	// Get bloqueia até o término ou até ctx encerrar.
	Get(ctx context.Context) (any, error)
	// Poll não bloqueia; ok=false enquanto pendente.
	Poll() (res Result, ok bool)
	Done() <-chan struct{}
	// OnComplete registra um callback; se já terminou, roda na hora.
	OnComplete(fn func(Result))
	// Cancel: se ainda não começou, não começa mais. Se já está rodando,
	// o cancelamento é best-effort e o resultado é descartado.
	Cancel() bool
	Cancelled() bool
}
