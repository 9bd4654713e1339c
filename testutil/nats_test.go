package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/ringpipe/errors"
)

func TestMockNATSClient_PublishDeliversToSubscribers(t *testing.T) {
	client := NewMockNATSClient()
	ctx := context.Background()

	var got [][]byte
	require.NoError(t, client.Subscribe(ctx, "batches", func(_ context.Context, data []byte) {
		got = append(got, data)
	}))
	require.NoError(t, client.Subscribe(ctx, "batches", func(context.Context, []byte) {
		// subscribing from a handler must not deadlock
		_ = client.Subscribe(ctx, "other", func(context.Context, []byte) {})
	}))

	require.NoError(t, client.Publish(ctx, "batches", []byte("1\n2\n")))
	WaitForMessageCount(t, client, "batches", 1, time.Second)

	assert.Equal(t, [][]byte{[]byte("1\n2\n")}, got)
	assert.Equal(t, 0, client.GetMessageCount("other"))
}

func TestMockNATSClient_FailNextAndClose(t *testing.T) {
	client := NewMockNATSClient()
	ctx := context.Background()

	client.FailNext(1)
	err := client.Publish(ctx, "batches", []byte("x"))
	assert.True(t, errors.IsTransient(err))
	require.NoError(t, client.Publish(ctx, "batches", []byte("y")))
	assert.Equal(t, 1, client.GetMessageCount("batches"))

	require.NoError(t, client.Close())
	assert.ErrorIs(t, client.Publish(ctx, "batches", []byte("z")), errors.ErrAlreadyStopped)
}
