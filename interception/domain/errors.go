package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrNoTerminal = errors.New("chain has no terminal operation")

	ErrThrottleClosed      = errors.New("throttle closed: concurrency limit is 0")
	ErrThrottleInterrupted = errors.New("throttle wait interrupted")
	ErrThrottleBusy        = errors.New("throttle limit cannot change with callers in flight")

	ErrNoSuchWorker  = errors.New("no worker registered for qualifier")
	ErrNoWorker      = errors.New("no default worker available")
	ErrRejected      = errors.New("task rejected by worker")
	ErrWorkerStopped = errors.New("worker stopped")
	ErrStartDeadline = errors.New("task start deadline exceeded")
	ErrCancelled     = errors.New("task cancelled")

	ErrRateLimited = errors.New("rate limited")
)

// PanicError carrega um panic recuperado numa continuação assíncrona.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string { return fmt.Sprintf("panic: %v", e.Value) }

// RateLimitError é devolvido pelo interceptor de rate limit ao bloquear.
type RateLimitError struct {
	Key        Key
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited: key=%s retry_after=%s", e.Key, e.RetryAfter)
}

func (e *RateLimitError) Unwrap() error { return ErrRateLimited }
