package domain

import (
	"context"
	"time"
)

// ResultShape descreve o formato de retorno declarado por um call site.
type ResultShape int

const (
	// ShapeVoid: sem retorno. O chamador não tem como observar o resultado.
	ShapeVoid ResultShape = iota
	// ShapeFuture: retorna um Future com valor; erros ficam observáveis nele.
	ShapeFuture
	// ShapeCompletion: retorna um Future que só sinaliza término.
	// Erros não chegam ao chamador e vão para o ExceptionHandler.
	ShapeCompletion
)

func (s ResultShape) String() string {
	switch s {
	case ShapeVoid:
		return "void"
	case ShapeFuture:
		return "future"
	case ShapeCompletion:
		return "completion"
	default:
		return "unknown"
	}
}

// ObservesErrors indica se o chamador consegue observar um erro assíncrono.
func (s ResultShape) ObservesErrors() bool { return s == ShapeFuture }

// ReturnsHandle indica se o chamador recebe um Future.
func (s ResultShape) ReturnsHandle() bool { return s != ShapeVoid }

// StartDeadline é uma dica de prazo para o início de uma tarefa no worker.
//
// Valores: DeadlineNone (espera indefinida), DeadlineImmediate (começa já ou
// ignora o throttle, se o worker permitir) ou uma duração positiva.
type StartDeadline time.Duration

const (
	DeadlineNone      StartDeadline = 0
	DeadlineImmediate StartDeadline = -1
)

// CallSite identifica o método/operação interceptado.
//
// É comparável e pode ser usado como chave de map (cache de workers).
type CallSite struct {
	Name      string
	Shape     ResultShape
	Qualifier string
	Deadline  StartDeadline
}

func (c CallSite) String() string { return c.Name }

// Terminal é a operação real chamada quando a cadeia termina.
type Terminal func(ctx context.Context, target any, args []any) (any, error)

// Invocation representa uma chamada interceptada em andamento.
//
// A mesma instância é compartilhada por todos os interceptores de uma travessia:
// mudanças em Arguments ficam visíveis para os próximos elos e para o Terminal.
// Proceed deve ser chamado no máximo uma vez por travessia; para reinvocar
// (ex.: retry), use Clone.
type Invocation interface {
	ID() string
	Context() context.Context
	SetContext(ctx context.Context)
	Target() any
	CallSite() CallSite
	Arguments() []any
	SetArgument(i int, v any)
	Proceed() (any, error)
	Clone() Invocation
}
