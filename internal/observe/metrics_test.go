// SPDX-License-Identifier: MIT
package observe

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/zthompson47/time2freq/internal/analysis"
	"github.com/zthompson47/time2freq/internal/audio"
)

type fakeStats struct{ s audio.Stats }

func (f *fakeStats) Stats() audio.Stats { return f.s }

type fakeLevels struct{ l analysis.Level }

func (f *fakeLevels) Latest() analysis.Level { return f.l }

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

func TestRegisterObservesStats(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	stats := &fakeStats{s: audio.Stats{FramesPlayed: 4800, Underruns: 12, TracksStarted: 2, TracksFailed: 1}}
	levels := &fakeLevels{l: analysis.Level{RMS: [2]float32{0.5, 0.25}, Loudness: -9}}
	reg, err := Register(mp, stats, levels)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	defer reg.Unregister()

	stats.s.FramesPlayed = 9600
	rm := collect(t, reader)

	tests := []struct {
		name string
		want int64
	}{
		{"time2freq.frames.played", 9600},
		{"time2freq.underruns", 12},
		{"time2freq.tracks.started", 2},
		{"time2freq.tracks.failed", 1},
		{"time2freq.tap.dropped", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := findMetric(rm, tt.name)
			if m == nil {
				t.Fatal("metric not found")
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				t.Fatalf("data is %T, want Sum[int64]", m.Data)
			}
			if !sum.IsMonotonic || len(sum.DataPoints) != 1 || sum.DataPoints[0].Value != tt.want {
				t.Errorf("got %+v, want value %d", sum.DataPoints, tt.want)
			}
		})
	}

	m := findMetric(rm, "time2freq.level.rms")
	if m == nil {
		t.Fatal("rms gauge not found")
	}
	gauge := m.Data.(metricdata.Gauge[float64])
	got := map[string]float64{}
	for _, dp := range gauge.DataPoints {
		ch, _ := dp.Attributes.Value(attribute.Key("channel"))
		got[ch.AsString()] = dp.Value
	}
	if got["left"] != 0.5 || got["right"] != 0.25 {
		t.Errorf("rms = %v", got)
	}
	loud := findMetric(rm, "time2freq.level.loudness")
	if loud == nil || loud.Data.(metricdata.Gauge[float64]).DataPoints[0].Value != -9 {
		t.Errorf("loudness metric = %+v", loud)
	}
}

func TestRegisterWithoutLevels(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	if _, err := Register(mp, &fakeStats{}, nil); err != nil {
		t.Fatalf("Register: %v", err)
	}
	rm := collect(t, reader)
	if findMetric(rm, "time2freq.level.rms") != nil {
		t.Error("level gauge registered without a level source")
	}
	if findMetric(rm, "time2freq.decode.errors") == nil {
		t.Error("decode error counter missing")
	}
}

func TestPrometheusHandler(t *testing.T) {
	p, err := NewPrometheusProvider("test")
	if err != nil {
		t.Fatalf("NewPrometheusProvider: %v", err)
	}
	t.Cleanup(func() { _ = p.Shutdown(context.Background()) })

	if _, err := Register(p, &fakeStats{s: audio.Stats{Underruns: 7}}, nil); err != nil {
		t.Fatalf("Register: %v", err)
	}

	rec := httptest.NewRecorder()
	p.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Result().Body)
	if !strings.Contains(string(body), "time2freq_underruns") {
		t.Errorf("underrun counter missing from scrape:\n%s", body)
	}
}
