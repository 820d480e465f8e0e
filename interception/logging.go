package interception

import (
	"context"
	"log/slog"
	"time"

	"method-dispatch/interception/domain"
)

// LoggingInterceptor registra fim e duração do restante da cadeia.
// Chamadas bem sucedidas saem em Debug; erros em Warn.
type LoggingInterceptor struct {
	logger *slog.Logger
	order  int
}

func Logging(logger *slog.Logger) *LoggingInterceptor {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingInterceptor{logger: logger}
}

// WithOrder devolve o interceptor com outra precedência.
func (l *LoggingInterceptor) WithOrder(order int) *LoggingInterceptor {
	l.order = order
	return l
}

func (l *LoggingInterceptor) Order() int   { return l.order }
func (l *LoggingInterceptor) Name() string { return "logging" }

func (l *LoggingInterceptor) Invoke(inv domain.Invocation) (any, error) {
	start := time.Now()
	res, err := inv.Proceed()

	site := inv.CallSite()
	attrs := []slog.Attr{
		slog.String("site", site.Name),
		slog.String("invocation", inv.ID()),
		slog.Int("args", len(inv.Arguments())),
		slog.Duration("elapsed", time.Since(start)),
	}
	if err != nil {
		attrs = append(attrs, slog.Any("error", err))
		l.logger.LogAttrs(context.WithoutCancel(inv.Context()), slog.LevelWarn, "invocation failed", attrs...)
		return res, err
	}
	l.logger.LogAttrs(inv.Context(), slog.LevelDebug, "invocation completed", attrs...)
	return res, nil
}
