// SPDX-License-Identifier: MIT

// Package observe exports session counters and the latest level as
// OpenTelemetry metrics. Everything is observed at collection time, so
// nothing here touches the audio path.
package observe

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"

	"github.com/zthompson47/time2freq/internal/analysis"
	"github.com/zthompson47/time2freq/internal/audio"
)

// meterName is the instrumentation scope for all time2freq metrics.
const meterName = "github.com/zthompson47/time2freq"

// StatsSource is implemented by *audio.Session.
type StatsSource interface {
	Stats() audio.Stats
}

// LevelSource returns the latest level without draining anything. It is
// implemented by the meter.
type LevelSource interface {
	Latest() analysis.Level
}

type counter struct {
	name, desc, unit string
	value            func(audio.Stats) uint64
}

var counters = []counter{
	{"time2freq.frames.played", "Frames delivered to the output device.", "{frame}", func(s audio.Stats) uint64 { return s.FramesPlayed }},
	{"time2freq.frames.silent", "Frames zero-filled by the device callback.", "{frame}", func(s audio.Stats) uint64 { return s.SilentFrames }},
	{"time2freq.underruns", "Frames zero-filled while a track was playing.", "{frame}", func(s audio.Stats) uint64 { return s.Underruns }},
	{"time2freq.samples.pushed", "Samples pushed into the playback ring.", "{sample}", func(s audio.Stats) uint64 { return s.SamplesPushed }},
	{"time2freq.tap.dropped", "Samples the analysis tap had no room for.", "{sample}", func(s audio.Stats) uint64 { return s.TapDropped }},
	{"time2freq.decode.errors", "Packets that failed to decode and were skipped.", "{packet}", func(s audio.Stats) uint64 { return s.DecodeErrors }},
	{"time2freq.tracks.started", "Play commands taken by the worker.", "{track}", func(s audio.Stats) uint64 { return s.TracksStarted }},
	{"time2freq.tracks.failed", "Tracks that could not be opened or decoded.", "{track}", func(s audio.Stats) uint64 { return s.TracksFailed }},
	{"time2freq.tracks.completed", "Tracks played to the end.", "{track}", func(s audio.Stats) uint64 { return s.TracksCompleted }},
}

// Register creates observable instruments on mp and a callback reading
// stats and levels. levels may be nil. Unregister the returned
// registration before the session is closed.
func Register(mp metric.MeterProvider, stats StatsSource, levels LevelSource) (metric.Registration, error) {
	m := mp.Meter(meterName)

	instruments := make([]metric.Int64ObservableCounter, len(counters))
	observables := make([]metric.Observable, 0, len(counters)+2)
	for i, c := range counters {
		inst, err := m.Int64ObservableCounter(c.name,
			metric.WithDescription(c.desc),
			metric.WithUnit(c.unit),
		)
		if err != nil {
			return nil, err
		}
		instruments[i] = inst
		observables = append(observables, inst)
	}

	var rms, loudness metric.Float64ObservableGauge
	if levels != nil {
		var err error
		if rms, err = m.Float64ObservableGauge("time2freq.level.rms",
			metric.WithDescription("Short-window RMS per channel, linear full scale."),
		); err != nil {
			return nil, err
		}
		if loudness, err = m.Float64ObservableGauge("time2freq.level.loudness",
			metric.WithDescription("EBU R128 momentary loudness."),
			metric.WithUnit("LUFS"),
		); err != nil {
			return nil, err
		}
		observables = append(observables, rms, loudness)
	}

	left := metric.WithAttributes(attribute.String("channel", "left"))
	right := metric.WithAttributes(attribute.String("channel", "right"))

	return m.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		s := stats.Stats()
		for i, c := range counters {
			o.ObserveInt64(instruments[i], int64(c.value(s)))
		}
		if levels != nil {
			l := levels.Latest()
			o.ObserveFloat64(rms, float64(l.RMS[0]), left)
			o.ObserveFloat64(rms, float64(l.RMS[1]), right)
			o.ObserveFloat64(loudness, float64(l.Loudness))
		}
		return nil
	}, observables...)
}

// Provider is a meter provider backed by a Prometheus registry.
type Provider struct {
	*sdkmetric.MeterProvider
	registry *prometheus.Registry
}

// NewPrometheusProvider builds a meter provider whose metrics are served by
// Handler. It uses its own registry, so several providers can coexist.
func NewPrometheusProvider(version string) (*Provider, error) {
	reg := prometheus.NewRegistry()
	exp, err := promexporter.New(promexporter.WithRegisterer(reg))
	if err != nil {
		return nil, err
	}
	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(
		attribute.String("service.name", "time2freq"),
		attribute.String("service.version", version),
	))
	if err != nil {
		return nil, err
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(exp),
	)
	return &Provider{MeterProvider: mp, registry: reg}, nil
}

// Handler serves the registry in the Prometheus text format.
func (p *Provider) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}
