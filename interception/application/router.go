package application

import (
	"context"
	"log/slog"
	"time"

	"method-dispatch/interception/domain"
)

// ExceptionRouter decide o destino de um erro assíncrono: o Future do chamador,
// quando o formato de retorno permite observar erros, ou o ExceptionHandler.
type ExceptionRouter struct {
	handler domain.ExceptionHandler
	stats   domain.StatsStore
	logger  *slog.Logger
}

func NewExceptionRouter(handler domain.ExceptionHandler, stats domain.StatsStore, logger *slog.Logger) *ExceptionRouter {
	if logger == nil {
		logger = slog.Default()
	}
	if handler == nil {
		handler = LoggingExceptionHandler{Logger: logger}
	}
	return &ExceptionRouter{handler: handler, stats: stats, logger: logger}
}

// Route devolve err quando ele deve completar o Future; caso contrário entrega
// ao handler e devolve nil.
func (r *ExceptionRouter) Route(err error, site domain.CallSite, args []any) error {
	if err == nil {
		return nil
	}
	if site.Shape.ObservesErrors() {
		return err
	}
	r.deliver(err, site, args)
	return nil
}

func (r *ExceptionRouter) deliver(err error, site domain.CallSite, args []any) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("exception handler failed",
				"site", site.Name, "handler_panic", p, "original_error", err)
		}
	}()
	r.handler.HandleUncaught(err, site, args)
	if r.stats != nil {
		_ = r.stats.Record(context.Background(), domain.StatsEvent{
			Key: domain.Key(site.Name), Site: site.Name, Outcome: domain.OutcomeHandled, At: time.Now(),
		})
	}
}

// LoggingExceptionHandler é o handler padrão: registra e engole o erro.
type LoggingExceptionHandler struct {
	Logger *slog.Logger
}

func (h LoggingExceptionHandler) HandleUncaught(err error, site domain.CallSite, args []any) {
	l := h.Logger
	if l == nil {
		l = slog.Default()
	}
	l.Error("unexpected error in async call", "site", site.Name, "args", len(args), "error", err)
}
