package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics exposes application-level instruments.
type Metrics struct {
	deductions     metric.Int64Counter
	creditsSpent   metric.Int64Counter
	creditsGranted metric.Int64Counter
	limitDenials   metric.Int64Counter
	accountCreates metric.Int64Counter
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				if log != nil {
					log.Info("shutting down meter provider")
				}
				return provider.Shutdown(ctx)
			},
		})
	}

	return provider, nil
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	switch protocol {
	case "http", "http/protobuf":
		return otlpmetrichttp.New(context.Background(),
			otlpmetrichttp.WithEndpoint(endpoint),
			otlpmetrichttp.WithInsecure(),
		)
	case "", "grpc":
		return otlpmetricgrpc.New(context.Background(),
			otlpmetricgrpc.WithEndpoint(endpoint),
			otlpmetricgrpc.WithInsecure(),
		)
	default:
		return nil, fmt.Errorf("unsupported otlp protocol %q", protocol)
	}
}

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "reelforge"
	}
	meter := provider.Meter(name)

	deductions, err := meter.Int64Counter("reelforge_credit_deductions_total")
	if err != nil {
		return nil, err
	}
	creditsSpent, err := meter.Int64Counter("reelforge_credits_spent_total")
	if err != nil {
		return nil, err
	}
	creditsGranted, err := meter.Int64Counter("reelforge_credits_granted_total")
	if err != nil {
		return nil, err
	}
	limitDenials, err := meter.Int64Counter("reelforge_limit_denials_total")
	if err != nil {
		return nil, err
	}
	accountCreates, err := meter.Int64Counter("reelforge_credit_accounts_created_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		deductions:     deductions,
		creditsSpent:   creditsSpent,
		creditsGranted: creditsGranted,
		limitDenials:   limitDenials,
		accountCreates: accountCreates,
	}, nil
}

// RecordDeduction counts an accepted deduction and the credits it consumed.
func (m *Metrics) RecordDeduction(ctx context.Context, plan string, amount int64) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("plan", strings.TrimSpace(plan)))
	m.deductions.Add(ctx, 1, attrs)
	m.creditsSpent.Add(ctx, amount, attrs)
}

// RecordLimitDenial counts a deduction rejected by a window cap or balance.
func (m *Metrics) RecordLimitDenial(ctx context.Context, kind string) {
	if m == nil {
		return
	}
	m.limitDenials.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", strings.TrimSpace(kind))))
}

// RecordCreditsGranted counts credits added to an account.
func (m *Metrics) RecordCreditsGranted(ctx context.Context, amount int64, bonus bool) {
	if m == nil {
		return
	}
	m.creditsGranted.Add(ctx, amount, metric.WithAttributes(attribute.Bool("bonus", bonus)))
}

// RecordAccountCreated counts lazily created ledger accounts.
func (m *Metrics) RecordAccountCreated(ctx context.Context) {
	if m == nil {
		return
	}
	m.accountCreates.Add(ctx, 1)
}
