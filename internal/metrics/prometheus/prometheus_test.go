package prometheus

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func counterValue(t *testing.T, c prometheus.Collector) float64 {
	t.Helper()
	ch := make(chan prometheus.Metric, 1)
	c.Collect(ch)
	m := &dto.Metric{}
	if err := (<-ch).Write(m); err != nil {
		t.Fatalf("write metric: %v", err)
	}
	return m.GetCounter().GetValue()
}

func TestRecordCallStartEnd(t *testing.T) {
	RecordCallStart()
	before := counterValueGauge(t, callsActive)
	RecordCallEnd("answered", 12.5)
	after := counterValueGauge(t, callsActive)
	if after != before-1 {
		t.Errorf("callsActive = %f, want %f", after, before-1)
	}
}

func counterValueGauge(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	m := &dto.Metric{}
	if err := g.Write(m); err != nil {
		t.Fatalf("write gauge: %v", err)
	}
	return m.GetGauge().GetValue()
}

func TestRecordBargeIn(t *testing.T) {
	before := counterValue(t, bargeInsTotal)
	RecordBargeIn()
	after := counterValue(t, bargeInsTotal)
	if after != before+1 {
		t.Errorf("bargeInsTotal = %f, want %f", after, before+1)
	}
}

func TestRecordTurn(t *testing.T) {
	RecordTurn("user")
	RecordTurn("assistant")
	if v := testutilGetCounterVecValue(turnsTotal, "user"); v < 1 {
		t.Errorf("turnsTotal{role=user} = %f, want >= 1", v)
	}
	if v := testutilGetCounterVecValue(turnsTotal, "assistant"); v < 1 {
		t.Errorf("turnsTotal{role=assistant} = %f, want >= 1", v)
	}
}

func testutilGetCounterVecValue(vec *prometheus.CounterVec, label string) float64 {
	m := &dto.Metric{}
	_ = vec.WithLabelValues(label).Write(m)
	return m.GetCounter().GetValue()
}

func TestRecordProviderLatency(t *testing.T) {
	RecordProviderLatency("stt", "deepgram", 0.12)
	// Histogram observation succeeding without panic is the behavior under test.
}

func TestRecordProviderError(t *testing.T) {
	RecordProviderError("llm", "openai", "transient")
}

func TestRecordProviderTokens(t *testing.T) {
	RecordProviderTokens("openai", 100, 50)
	RecordProviderTokens("openai", 0, 0) // zero values must not register a sample
}

func TestRecordJobEnqueued(t *testing.T) {
	before := testutilGetCounterVecValue(jobsEnqueuedTotal, "priority")
	RecordJobEnqueued("priority")
	after := testutilGetCounterVecValue(jobsEnqueuedTotal, "priority")
	if after != before+1 {
		t.Errorf("jobsEnqueuedTotal{route=priority} = %f, want %f", after, before+1)
	}
}

func TestRecordJobCompleted(t *testing.T) {
	before := testutilGetCounterVecValue(jobsCompletedTotal, "busy")
	RecordJobCompleted("busy")
	after := testutilGetCounterVecValue(jobsCompletedTotal, "busy")
	if after != before+1 {
		t.Errorf("jobsCompletedTotal{outcome=busy} = %f, want %f", after, before+1)
	}
}

func TestRecordRetryScheduled(t *testing.T) {
	before := counterValue(t, retriesScheduledTotal)
	RecordRetryScheduled()
	after := counterValue(t, retriesScheduledTotal)
	if after != before+1 {
		t.Errorf("retriesScheduledTotal = %f, want %f", after, before+1)
	}
}

func TestRecordActionStep(t *testing.T) {
	before := testutilGetCounterVecValue(actionStepsTotal, "book_meeting")
	RecordActionStep("book_meeting", "ok")
	after := testutilGetCounterVecValue(actionStepsTotal, "book_meeting")
	if after != before+1 {
		t.Errorf("actionStepsTotal{type=book_meeting} = %f, want %f", after, before+1)
	}
}

func TestNewExporter(t *testing.T) {
	exporter := NewExporter(":9091")
	if exporter == nil {
		t.Fatal("Expected non-nil exporter")
	}
	if exporter.Registry() == nil {
		t.Error("Expected non-nil registry")
	}
}

func TestNewExporterWithRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	exporter := NewExporterWithRegistry(":9092", reg)

	if exporter.Registry() != reg {
		t.Error("Expected custom registry to be used")
	}
}

func TestExporterHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "test_counter",
		Help: "Test counter",
	})
	reg.MustRegister(counter)
	counter.Inc()

	exporter := NewExporterWithRegistry(":9093", reg)
	handler := exporter.Handler()

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	resp := rec.Result()
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}

	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "test_counter") {
		t.Error("Expected response to contain test_counter metric")
	}
}

func TestExporterRegister(t *testing.T) {
	reg := prometheus.NewRegistry()
	exporter := NewExporterWithRegistry(":9094", reg)

	counter := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "custom_counter",
		Help: "Custom counter",
	})

	err := exporter.Register(counter)
	if err != nil {
		t.Errorf("Expected no error registering counter, got %v", err)
	}

	// Registering again should fail
	err = exporter.Register(counter)
	if err == nil {
		t.Error("Expected error when registering duplicate counter")
	}
}

func TestExporterMustRegister(t *testing.T) {
	reg := prometheus.NewRegistry()
	exporter := NewExporterWithRegistry(":9095", reg)

	counter := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "must_register_counter",
		Help: "Must register counter",
	})

	// Should not panic
	exporter.MustRegister(counter)
}

func TestExporterStartShutdown(t *testing.T) {
	exporter := NewExporterWithRegistry(":0", prometheus.NewRegistry())

	// Start in goroutine
	errCh := make(chan error, 1)
	go func() {
		errCh <- exporter.Start()
	}()

	// Give server time to start
	time.Sleep(100 * time.Millisecond)

	// Shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := exporter.Shutdown(ctx)
	if err != nil {
		t.Errorf("Expected no error on shutdown, got %v", err)
	}

	// Start should have returned with ErrServerClosed
	select {
	case err := <-errCh:
		if err != http.ErrServerClosed {
			t.Errorf("Expected ErrServerClosed, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Error("Timeout waiting for server to stop")
	}
}

func TestExporterDoubleStart(t *testing.T) {
	exporter := NewExporterWithRegistry(":0", prometheus.NewRegistry())

	go func() {
		_ = exporter.Start()
	}()

	time.Sleep(100 * time.Millisecond)

	// Starting again should be a no-op, not a second listener.
	err := exporter.Start()
	if err != nil {
		t.Errorf("Expected no error on double start, got %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = exporter.Shutdown(ctx)
}
