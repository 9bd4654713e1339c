package metric

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/ringpipe/errors"
)

func gatheredNames(t *testing.T, registry *MetricsRegistry) map[string]bool {
	t.Helper()
	families, err := registry.PrometheusRegistry().Gather()
	require.NoError(t, err)
	names := make(map[string]bool, len(families))
	for _, mf := range families {
		names[mf.GetName()] = true
	}
	return names
}

func TestNewMetricsRegistry(t *testing.T) {
	registry := NewMetricsRegistry()

	assert.NotNil(t, registry)
	assert.NotNil(t, registry.PrometheusRegistry())
	assert.Same(t, registry.Metrics, registry.CoreMetrics())
}

func TestMetricsRegistry_RegisterKinds(t *testing.T) {
	registry := NewMetricsRegistry()

	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "test_counter", Help: "c"})
	gauge := prometheus.NewGauge(prometheus.GaugeOpts{Name: "test_gauge", Help: "g"})
	histogram := prometheus.NewHistogram(prometheus.HistogramOpts{Name: "test_histogram", Help: "h"})
	counterVec := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "test_counter_vec", Help: "cv"},
		[]string{"k"})
	gaugeVec := prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: "test_gauge_vec", Help: "gv"}, []string{"k"})

	require.NoError(t, registry.RegisterCounter("fifo", "test_counter", counter))
	require.NoError(t, registry.RegisterGauge("fifo", "test_gauge", gauge))
	require.NoError(t, registry.RegisterHistogram("fifo", "test_histogram", histogram))
	require.NoError(t, registry.RegisterCounterVec("fifo", "test_counter_vec", counterVec))
	require.NoError(t, registry.RegisterGaugeVec("fifo", "test_gauge_vec", gaugeVec))

	counter.Inc()
	gauge.Set(42)
	histogram.Observe(1.5)
	counterVec.WithLabelValues("a").Inc()
	gaugeVec.WithLabelValues("a").Set(1)

	names := gatheredNames(t, registry)
	for _, name := range []string{"test_counter", "test_gauge", "test_histogram", "test_counter_vec", "test_gauge_vec"} {
		assert.True(t, names[name], "%s should be registered", name)
	}
	assert.Equal(t, 1.0, testutil.ToFloat64(counter))
}

func TestMetricsRegistry_PreventDuplicateRegistration(t *testing.T) {
	registry := NewMetricsRegistry()

	counter1 := prometheus.NewCounter(prometheus.CounterOpts{Name: "duplicate_counter", Help: "same"})
	counter2 := prometheus.NewCounter(prometheus.CounterOpts{Name: "duplicate_counter", Help: "same"})

	require.NoError(t, registry.RegisterCounter("pipeline", "duplicate_counter", counter1))

	// same key is rejected by the registry's own bookkeeping
	err := registry.RegisterCounter("pipeline", "duplicate_counter", counter2)
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
	assert.Contains(t, err.Error(), "duplicate metric registration")

	// different key, same prometheus name is rejected by prometheus
	err = registry.RegisterCounter("fifo", "duplicate_counter", counter2)
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
	assert.Contains(t, err.Error(), "prometheus conflict")
}

func TestMetricsRegistry_Unregister(t *testing.T) {
	registry := NewMetricsRegistry()

	gauge := prometheus.NewGauge(prometheus.GaugeOpts{Name: "unregister_gauge", Help: "g"})
	require.NoError(t, registry.RegisterGauge("fifo", "unregister_gauge", gauge))
	gauge.Set(1)

	assert.True(t, registry.Unregister("fifo", "unregister_gauge"))
	assert.False(t, registry.Unregister("fifo", "unregister_gauge"))
	assert.False(t, gatheredNames(t, registry)["unregister_gauge"])

	// name is free again
	require.NoError(t, registry.RegisterGauge("fifo", "unregister_gauge", gauge))
}

func TestMetricsRegistry_ThreadSafety(t *testing.T) {
	registry := NewMetricsRegistry()

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			name := fmt.Sprintf("concurrent_counter_%d", i)
			c := prometheus.NewCounter(prometheus.CounterOpts{Name: name, Help: "c"})
			errs <- registry.RegisterCounter("worker", name, c)
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
}

func TestCoreMetrics_RecordMethods(t *testing.T) {
	m := NewMetricsRegistry().CoreMetrics()

	m.RecordSessionOpened("fifo", "producer")
	m.RecordSessionOpened("fifo", "producer")
	m.RecordSessionClosed("fifo", "producer")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SessionsOpen.WithLabelValues("fifo", "producer")))

	m.RecordBytes("fifo", "in", 12)
	assert.Equal(t, 12.0, testutil.ToFloat64(m.BytesTotal.WithLabelValues("fifo", "in")))

	m.RecordError("modtimer", "invalid")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EndpointErrors.WithLabelValues("modtimer", "invalid")))

	m.RecordValueGenerated()
	m.RecordValueDropped()
	m.RecordDrain(8)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ValuesGenerated))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ValuesDropped))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DrainsTotal))

	m.RecordHealthStatus("fifo", true)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HealthCheckStatus.WithLabelValues("fifo")))

	m.RecordNATSStatus(true)
	m.RecordNATSReconnect()
	m.RecordCircuitBreakerState(1)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.NATSConnected))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.NATSCircuitBreaker))

	m.RecordWait("fifo", "read", 20*time.Millisecond)
	m.RecordRequest("/fifo", "200")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("/fifo", "200")))
}

func TestServer_Handler(t *testing.T) {
	registry := NewMetricsRegistry()
	registry.CoreMetrics().RecordDrain(3)

	srv := httptest.NewServer(NewServer(0, "", registry).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "ringpipe_pipeline_drains_total")

	resp, err = http.Get(srv.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestServer_AddressDefaults(t *testing.T) {
	s := NewServer(0, "", NewMetricsRegistry())
	assert.Equal(t, "http://localhost:9090/metrics", s.Address())
	assert.NoError(t, s.Stop())
}

func TestServer_RunStopsWithContext(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())

	s := NewServer(port, "", NewMetricsRegistry())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d/health", port))
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestServer_RunCancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := NewServer(0, "", NewMetricsRegistry())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return for a cancelled context")
	}
}
