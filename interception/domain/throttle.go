package domain

import "context"

// Throttle limita quantos chamadores passam de um ponto ao mesmo tempo.
//
// A semântica é: Acquire bloqueia até conseguir uma vaga ou até o ctx encerrar.
// Ao adquirir, retorna uma função de release que deve ser chamada exatamente uma vez
// (chamadas extras não têm efeito).
//
// Limite -1 desativa a contagem, 0 fecha o throttle (ErrThrottleClosed) e
// valores positivos limitam a concorrência.
type Throttle interface {
	Acquire(ctx context.Context) (release func(), err error)
}
