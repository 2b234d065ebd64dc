package tracing

import (
	"context"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/acadamier/backend/core"
)

// Init installs the global tracer provider. Spans are exported to the OTLP collector
// at conf.Tracing.CollectorURL when it is set, and dropped otherwise.
// The returned function flushes pending spans and releases the exporter.
func Init(ctx context.Context, conf *core.Config) (func(context.Context) error, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			attribute.String("service.name", conf.AppName),
			attribute.String("service.version", conf.Build),
			attribute.String("deployment.environment", conf.Env),
		),
	)
	if err != nil {
		return nil, errors.Wrap(err, "creating resource")
	}

	options := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	}

	if conf.Tracing.CollectorURL != "" {
		conn, err := grpc.NewClient(conf.Tracing.CollectorURL, grpc.WithTransportCredentials(insecure.NewCredentials()))
		if err != nil {
			return nil, errors.Wrap(err, "creating gRPC connection")
		}

		exporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
		if err != nil {
			return nil, errors.Wrap(err, "creating trace exporter")
		}
		options = append(options, sdktrace.WithSpanProcessor(sdktrace.NewBatchSpanProcessor(exporter)))
	}

	provider := sdktrace.NewTracerProvider(options...)
	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	return provider.Shutdown, nil
}
