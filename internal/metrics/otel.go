package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

// TelemetryConfig controls how metrics are exported.
type TelemetryConfig struct {
	Enabled      bool
	ServiceName  string
	OtlpEndpoint string
	OtlpInsecure bool
}

// Setup wires an OpenTelemetry meter provider to a Prometheus registry and,
// when an endpoint is configured, to an OTLP exporter. The returned handler
// is nil when metrics are disabled.
func Setup(ctx context.Context, cfg TelemetryConfig) (*Recorder, http.Handler, func(context.Context) error, error) {
	noop := func(context.Context) error { return nil }
	if !cfg.Enabled {
		return NewRecorder(), nil, noop, nil
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "auction-backend"
	}

	reg := prometheus.NewRegistry()
	promReader, err := promexporter.New(promexporter.WithRegisterer(reg))
	if err != nil {
		return nil, nil, nil, err
	}
	opts := []sdkmetric.Option{sdkmetric.WithReader(promReader)}

	if cfg.OtlpEndpoint != "" {
		otlpOpts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(cfg.OtlpEndpoint)}
		if cfg.OtlpInsecure {
			otlpOpts = append(otlpOpts, otlpmetrichttp.WithInsecure())
		}
		exp, err := otlpmetrichttp.New(ctx, otlpOpts...)
		if err != nil {
			return nil, nil, nil, err
		}
		opts = append(opts, sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp, sdkmetric.WithInterval(15*time.Second))))
	}

	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName(cfg.ServiceName)))
	if err != nil {
		return nil, nil, nil, err
	}
	opts = append(opts, sdkmetric.WithResource(res))

	provider := sdkmetric.NewMeterProvider(opts...)
	inst, err := newInstruments(provider)
	if err != nil {
		return nil, nil, nil, err
	}
	return newRecorder(inst), promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), provider.Shutdown, nil
}

type instruments struct {
	ctx              context.Context
	commands         metric.Int64Counter
	commandLatencyMs metric.Float64Histogram
	bids             metric.Int64Counter
	resolutions      metric.Int64Counter
	connections      metric.Int64UpDownCounter
	dropped          metric.Int64Counter
	requests         metric.Int64Counter
	requestLatencyMs metric.Float64Histogram
}

func newInstruments(provider metric.MeterProvider) (*instruments, error) {
	meter := provider.Meter("auction-backend")

	commands, err := meter.Int64Counter("auction_commands_total")
	if err != nil {
		return nil, err
	}
	commandLatency, err := meter.Float64Histogram("auction_command_duration_ms")
	if err != nil {
		return nil, err
	}
	bids, err := meter.Int64Counter("auction_bids_accepted_total")
	if err != nil {
		return nil, err
	}
	resolutions, err := meter.Int64Counter("auction_items_resolved_total")
	if err != nil {
		return nil, err
	}
	connections, err := meter.Int64UpDownCounter("realtime_connections")
	if err != nil {
		return nil, err
	}
	dropped, err := meter.Int64Counter("realtime_slow_clients_dropped_total")
	if err != nil {
		return nil, err
	}
	requests, err := meter.Int64Counter("http_requests_total")
	if err != nil {
		return nil, err
	}
	requestLatency, err := meter.Float64Histogram("http_request_duration_ms")
	if err != nil {
		return nil, err
	}

	return &instruments{
		ctx:              context.Background(),
		commands:         commands,
		commandLatencyMs: commandLatency,
		bids:             bids,
		resolutions:      resolutions,
		connections:      connections,
		dropped:          dropped,
		requests:         requests,
		requestLatencyMs: requestLatency,
	}, nil
}

func (o *instruments) add(counter metric.Int64Counter, attrs ...attribute.KeyValue) {
	counter.Add(o.ctx, 1, metric.WithAttributes(attrs...))
}

func (o *instruments) record(hist metric.Float64Histogram, d time.Duration, attrs ...attribute.KeyValue) {
	hist.Record(o.ctx, float64(d.Microseconds())/1000, metric.WithAttributes(attrs...))
}
