package interception

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"method-dispatch/interception/domain"
)

const tracerName = "method-dispatch/interception"

// TracingInterceptor abre um span em volta do restante da cadeia. O contexto
// com o span substitui o da invocação durante o Proceed, então elos seguintes e
// o terminal o herdam; depois o contexto anterior volta.
type TracingInterceptor struct {
	tracer trace.Tracer
	order  int
}

// Tracing usa o TracerProvider global quando tp é nil.
func Tracing(tp trace.TracerProvider) *TracingInterceptor {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return &TracingInterceptor{tracer: tp.Tracer(tracerName)}
}

func (t *TracingInterceptor) WithOrder(order int) *TracingInterceptor {
	t.order = order
	return t
}

func (t *TracingInterceptor) Order() int   { return t.order }
func (t *TracingInterceptor) Name() string { return "tracing" }

func (t *TracingInterceptor) Invoke(inv domain.Invocation) (any, error) {
	site := inv.CallSite()
	ctx, span := t.tracer.Start(inv.Context(), "invoke "+site.Name,
		trace.WithAttributes(
			attribute.String("dispatch.site", site.Name),
			attribute.String("dispatch.shape", site.Shape.String()),
			attribute.String("dispatch.invocation_id", inv.ID()),
			attribute.Int("dispatch.args", len(inv.Arguments())),
		),
	)
	defer span.End()

	prev := inv.Context()
	inv.SetContext(ctx)
	res, err := inv.Proceed()
	inv.SetContext(prev)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invocation failed")
		return res, err
	}
	span.SetStatus(codes.Ok, "")
	return res, nil
}
