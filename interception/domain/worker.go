package domain

import "context"

// DefaultWorkerName é o nome bem conhecido do worker padrão no registry.
const DefaultWorkerName = "taskExecutor"

// WorkerKind classifica workers no registry para a resolução do padrão.
type WorkerKind string

const (
	KindTaskExecutor WorkerKind = "task-executor"
	KindScheduler    WorkerKind = "scheduler"
	KindExecutor     WorkerKind = "executor"
)

// Task é a continuação submetida a um worker.
type Task func(ctx context.Context) (any, error)

// Worker executa continuações fora da goroutine do chamador.
type Worker interface {
	// Submit agenda a tarefa e devolve o Future ligado ao seu desfecho.
	Submit(ctx context.Context, task Task) (Future, error)
	// Execute agenda uma função fire-and-forget.
	Execute(fn func()) error
}

// DropHandler recebe o erro de uma tarefa aceita pelo worker mas descartada
// antes de começar (prazo de início estourado, throttle fechado).
// No Submit, o erro devolvido conclui o Future; nil o conclui sem erro.
type DropHandler func(err error) error

// DeadlineWorker aceita a dica de prazo de início. onDrop pode ser nil.
type DeadlineWorker interface {
	Worker
	SubmitWithin(ctx context.Context, task Task, d StartDeadline, onDrop DropHandler) (Future, error)
	ExecuteWithin(fn func(), d StartDeadline, onDrop DropHandler) error
}

// Stopper é implementado por workers com ciclo de vida.
type Stopper interface {
	Stop(ctx context.Context) error
}

// NamedWorker é uma entrada do registry.
type NamedWorker struct {
	Name   string
	Kind   WorkerKind
	Worker Worker
}

// WorkerRegistry é o único ponto de busca de workers por nome/tipo.
type WorkerRegistry interface {
	Lookup(name string) (Worker, bool)
	// Candidates devolve, em ordem de registro, os workers dos tipos pedidos.
	Candidates(kinds ...WorkerKind) []NamedWorker
}

// QualifierResolver expande um qualifier declarado (placeholders/expressões)
// para o nome final do worker.
type QualifierResolver interface {
	ResolveQualifier(q string) (string, error)
}

// ExceptionHandler recebe erros assíncronos que o chamador não pode observar.
type ExceptionHandler interface {
	HandleUncaught(err error, site CallSite, args []any)
}

type ExceptionHandlerFunc func(err error, site CallSite, args []any)

func (f ExceptionHandlerFunc) HandleUncaught(err error, site CallSite, args []any) {
	f(err, site, args)
}
