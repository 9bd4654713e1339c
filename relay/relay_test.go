package relay

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/ringpipe/config"
	"github.com/c360/ringpipe/errors"
	"github.com/c360/ringpipe/pipeline"
	"github.com/c360/ringpipe/pkg/retry"
	"github.com/c360/ringpipe/testutil"
)

const subject = "ringpipe.test.batches"

func newTestPipeline(t *testing.T) *pipeline.Pipeline {
	t.Helper()
	tun, err := config.NewTunables(config.Values{TimerPeriodMS: 1, EmergencyThreshold: 50, MaxRandom: 100}, nil)
	require.NoError(t, err)
	p, err := pipeline.New(pipeline.DefaultCapacity, tun)
	require.NoError(t, err)
	require.NoError(t, p.Start(context.Background()))
	t.Cleanup(func() { _ = p.Stop(time.Second) })
	return p
}

func runRelay(t *testing.T, r *Relay) (context.CancelFunc, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()
	return cancel, done
}

func TestNew_Validation(t *testing.T) {
	p := newTestPipeline(t)
	mock := testutil.NewMockNATSClient()

	_, err := New(nil, mock, subject)
	assert.ErrorIs(t, err, errors.ErrMissingConfig)
	_, err = New(p, mock, "")
	assert.ErrorIs(t, err, errors.ErrMissingConfig)

	// the mock has no JetStream
	_, err = New(p, mock, subject, WithStream("BATCHES"))
	assert.ErrorIs(t, err, errors.ErrInvalidConfig)
}

func TestRelay_PublishesBatches(t *testing.T) {
	p := newTestPipeline(t)
	mock := testutil.NewMockNATSClient()
	r, err := New(p, mock, subject)
	require.NoError(t, err)

	cancel, done := runRelay(t, r)
	testutil.WaitForMessageCount(t, mock, subject, 3, 5*time.Second)
	cancel()
	require.NoError(t, <-done)

	msgs := mock.GetMessages(subject)
	var prev Batch
	for i, raw := range msgs {
		var b Batch
		require.NoError(t, json.Unmarshal(raw, &b))
		assert.NotEmpty(t, b.Values)
		assert.NotEmpty(t, b.Session)
		assert.Equal(t, uint64(i+1), b.Seq)
		if i > 0 {
			assert.Equal(t, prev.Session, b.Session)
		}
		prev = b
	}

	stats := r.Stats()
	assert.GreaterOrEqual(t, stats.Published, int64(3))
	assert.False(t, stats.Running)
	assert.False(t, p.Stats().ConsumerOpen)
}

func TestRelay_HoldsConsumerSlot(t *testing.T) {
	p := newTestPipeline(t)
	mock := testutil.NewMockNATSClient()
	r, err := New(p, mock, subject)
	require.NoError(t, err)

	cancel, done := runRelay(t, r)
	defer func() {
		cancel()
		<-done
	}()

	require.Eventually(t, func() bool { return p.Stats().ConsumerOpen }, 5*time.Second, time.Millisecond)
	_, err = p.Open(context.Background())
	assert.ErrorIs(t, err, errors.ErrTooManyConsumers)

	err = r.Run(context.Background())
	assert.ErrorIs(t, err, errors.ErrAlreadyStarted)
}

func TestRelay_RetriesTransientFailures(t *testing.T) {
	p := newTestPipeline(t)
	mock := testutil.NewMockNATSClient()
	mock.FailNext(2)

	r, err := New(p, mock, subject, WithRetry(retry.Config{
		MaxAttempts:  3,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
	}))
	require.NoError(t, err)

	cancel, done := runRelay(t, r)
	testutil.WaitForMessageCount(t, mock, subject, 1, 5*time.Second)
	cancel()
	require.NoError(t, <-done)

	assert.Equal(t, int64(0), r.Stats().Failed)
}

func TestRelay_DropsBatchAfterRetries(t *testing.T) {
	p := newTestPipeline(t)
	mock := testutil.NewMockNATSClient()
	mock.FailNext(2)

	r, err := New(p, mock, subject, WithRetry(retry.Config{MaxAttempts: 2, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond}))
	require.NoError(t, err)

	cancel, done := runRelay(t, r)
	testutil.WaitForMessageCount(t, mock, subject, 1, 5*time.Second)
	cancel()
	require.NoError(t, <-done)

	stats := r.Stats()
	assert.Equal(t, int64(1), stats.Failed)

	var b Batch
	require.NoError(t, json.Unmarshal(mock.GetMessages(subject)[0], &b))
	assert.Equal(t, uint64(2), b.Seq)
}

type fakeStream struct {
	*testutil.MockNATSClient
	ensured []string
}

func (f *fakeStream) EnsureStream(_ context.Context, cfg jetstream.StreamConfig) (jetstream.Stream, error) {
	f.ensured = append(f.ensured, cfg.Name)
	return nil, nil
}

func (f *fakeStream) PublishToStream(ctx context.Context, subj string, data []byte) error {
	return f.Publish(ctx, "stream:"+subj, data)
}

func TestRelay_Stream(t *testing.T) {
	p := newTestPipeline(t)
	fs := &fakeStream{MockNATSClient: testutil.NewMockNATSClient()}

	r, err := New(p, fs, subject, WithStream("BATCHES"))
	require.NoError(t, err)

	cancel, done := runRelay(t, r)
	testutil.WaitForMessageCount(t, fs.MockNATSClient, "stream:"+subject, 1, 5*time.Second)
	cancel()
	require.NoError(t, <-done)

	assert.Equal(t, []string{"BATCHES"}, fs.ensured)
	assert.Equal(t, 0, fs.GetMessageCount(subject))
}
