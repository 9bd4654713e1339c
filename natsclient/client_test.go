package natsclient

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/ringpipe/errors"
	"github.com/c360/ringpipe/metric"
)

// unreachable refuses connections immediately
const unreachable = "nats://127.0.0.1:1"

func TestNewClient(t *testing.T) {
	c, err := NewClient("nats://localhost:4222")
	require.NoError(t, err)

	assert.Equal(t, "nats://localhost:4222", c.URL())
	assert.Equal(t, StatusDisconnected, c.Status())
	assert.False(t, c.IsHealthy())
	assert.Equal(t, time.Second, c.Backoff())
}

func TestNewClient_InvalidOption(t *testing.T) {
	_, err := NewClient(unreachable, WithCircuitBreakerThreshold(0))
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))

	_, err = NewClient(unreachable, WithMaxBackoff(0))
	require.Error(t, err)
}

func TestConnectionStatus_String(t *testing.T) {
	assert.Equal(t, "disconnected", StatusDisconnected.String())
	assert.Equal(t, "connecting", StatusConnecting.String())
	assert.Equal(t, "connected", StatusConnected.String())
	assert.Equal(t, "reconnecting", StatusReconnecting.String())
	assert.Equal(t, "circuit_open", StatusCircuitOpen.String())
	assert.Equal(t, "unknown", ConnectionStatus(99).String())
}

func TestConnect_FailureIsTransient(t *testing.T) {
	c, err := NewClient(unreachable, WithTimeout(200*time.Millisecond))
	require.NoError(t, err)

	err = c.Connect(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrNoConnection)
	assert.True(t, errors.IsTransient(err))
	assert.Equal(t, int32(1), c.Failures())
	assert.Equal(t, StatusDisconnected, c.Status())
}

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	c, err := NewClient(unreachable,
		WithTimeout(200*time.Millisecond),
		WithCircuitBreakerThreshold(2),
	)
	require.NoError(t, err)
	ctx := context.Background()

	require.Error(t, c.Connect(ctx))
	err = c.Connect(ctx)
	assert.ErrorIs(t, err, errors.ErrCircuitOpen)
	assert.Equal(t, StatusCircuitOpen, c.Status())
	assert.Equal(t, 2*time.Second, c.Backoff())

	// fails fast without dialing while open
	err = c.Connect(ctx)
	assert.ErrorIs(t, err, errors.ErrCircuitOpen)
	assert.Equal(t, int32(2), c.Failures())
}

func TestCircuitBreaker_HalfOpenAndReset(t *testing.T) {
	c, err := NewClient(unreachable, WithCircuitBreakerThreshold(1))
	require.NoError(t, err)

	c.recordFailure()
	require.Equal(t, StatusCircuitOpen, c.Status())

	c.halfOpen()
	assert.Equal(t, StatusDisconnected, c.Status())

	c.recordFailure()
	c.resetCircuit()
	assert.Equal(t, StatusDisconnected, c.Status())
	assert.Equal(t, int32(0), c.Failures())
	assert.Equal(t, time.Second, c.Backoff())
}

func TestCircuitBreaker_BackoffCapped(t *testing.T) {
	c, err := NewClient(unreachable,
		WithCircuitBreakerThreshold(1),
		WithMaxBackoff(3*time.Second),
	)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		c.recordFailure()
	}
	assert.Equal(t, 3*time.Second, c.Backoff())
}

func TestConnect_Cancelled(t *testing.T) {
	c, err := NewClient(unreachable)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = c.Connect(ctx)
	require.Error(t, err)
	assert.True(t, errors.IsTransient(err))
}

func TestPublish_NotConnected(t *testing.T) {
	c, err := NewClient(unreachable)
	require.NoError(t, err)

	err = c.Publish(context.Background(), "subject", []byte("x"))
	assert.ErrorIs(t, err, errors.ErrNoConnection)

	err = c.PublishToStream(context.Background(), "subject", []byte("x"))
	assert.ErrorIs(t, err, errors.ErrNoConnection)

	_, err = c.RTT()
	assert.ErrorIs(t, err, errors.ErrNoConnection)
}

func TestWaitForConnection_Timeout(t *testing.T) {
	c, err := NewClient(unreachable)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	err = c.WaitForConnection(ctx)
	assert.ErrorIs(t, err, errors.ErrConnectionTimeout)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestClose_Idempotent(t *testing.T) {
	c, err := NewClient(unreachable)
	require.NoError(t, err)

	require.NoError(t, c.Close(context.Background()))
	require.NoError(t, c.Close(context.Background()))

	err = c.Connect(context.Background())
	assert.ErrorIs(t, err, errors.ErrAlreadyStopped)
}

func TestMetrics_CircuitState(t *testing.T) {
	metrics := metric.NewMetrics()
	c, err := NewClient(unreachable, WithCircuitBreakerThreshold(1), WithMetrics(metrics))
	require.NoError(t, err)

	c.recordFailure()
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.NATSCircuitBreaker))
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.NATSConnected))

	c.halfOpen()
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.NATSCircuitBreaker))
}

func TestGetStatus(t *testing.T) {
	c, err := NewClient(unreachable, WithCircuitBreakerThreshold(3))
	require.NoError(t, err)

	c.recordFailure()
	st := c.GetStatus()
	assert.Equal(t, StatusDisconnected, st.Status)
	assert.Equal(t, int32(1), st.FailureCount)
	assert.False(t, st.LastFailureTime.IsZero())
}

func TestConcurrentFailures(t *testing.T) {
	c, err := NewClient(unreachable, WithCircuitBreakerThreshold(5))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.recordFailure()
			_ = c.Status()
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(20), c.Failures())
	assert.Equal(t, StatusCircuitOpen, c.Status())
}
