package interception

import (
	"log/slog"

	"method-dispatch/interception/application"
	"method-dispatch/interception/domain"
	"method-dispatch/interception/infra"
)

// AsyncOptions configura o interceptor de despacho assíncrono.
type AsyncOptions struct {
	Registry domain.WorkerRegistry
	// Handler recebe os erros de call sites void/completion.
	// nil = application.LoggingExceptionHandler.
	Handler    domain.ExceptionHandler
	Qualifiers domain.QualifierResolver
	Stats      domain.StatsStore
	Logger     *slog.Logger
	// DisableFallback faz Resolve falhar com domain.ErrNoWorker quando o
	// registry não tem worker padrão, em vez de criar um GoroutineWorker local.
	DisableFallback bool
	// Order; nil = domain.HighestPrecedence.
	Order *int
}

func Async(opts AsyncOptions) *application.AsyncInterceptor {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ropts := []application.ResolverOption{application.WithResolverLogger(logger)}
	if opts.Qualifiers != nil {
		ropts = append(ropts, application.WithQualifierResolver(opts.Qualifiers))
	}
	if !opts.DisableFallback {
		ropts = append(ropts, application.WithFallback(func() domain.Worker {
			return infra.NewGoroutineWorker(infra.WithWorkerLogger(logger))
		}))
	}
	resolver := application.NewResolver(opts.Registry, ropts...)
	router := application.NewExceptionRouter(opts.Handler, opts.Stats, logger)

	aopts := []application.AsyncOption{
		application.WithAsyncLogger(logger),
		application.WithAsyncStats(opts.Stats),
	}
	if opts.Order != nil {
		aopts = append(aopts, application.WithAsyncOrder(*opts.Order))
	}
	return application.NewAsyncInterceptor(resolver, router, aopts...)
}
