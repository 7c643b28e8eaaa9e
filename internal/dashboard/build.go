package dashboard

import (
	"marketpulse-dash/internal/auth"
	"marketpulse-dash/internal/client"
	"marketpulse-dash/internal/config"
	"marketpulse-dash/internal/view"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Build wires a market client, an auth session over store and a dashboard
// session from cfg. Every call returns an independent session.
func Build(cfg *config.Config, store auth.Store, sink view.Sink, tracer trace.Tracer, logger *zap.Logger) (*Session, *auth.Session) {
	api := client.New(client.Options{
		BaseURL:       cfg.MarketAPIBase,
		Timeout:       cfg.RequestTimeout(),
		RatePerSecond: cfg.ClientRatePerSec,
	}, tracer, logger)
	sess := auth.NewSession(store, api, tracer, logger)
	api.UseTokens(sess)

	dash := New(Deps{
		Auth:   sess,
		Market: api,
		Sink:   sink,
		Tracer: tracer,
		Logger: logger,
	}, Options{
		Config:          cfg.PollConfig(),
		DefaultSymbol:   cfg.DefaultSymbol,
		HistoryCapacity: cfg.HistoryCapacity,
	})
	return dash, sess
}

// LayoutFor returns the table and chart sizes configured in cfg.
func LayoutFor(cfg *config.Config) view.Layout {
	return view.Layout{TableRows: cfg.TableRows, ChartPoints: cfg.ChartPoints}
}
