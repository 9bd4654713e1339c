//go:build integration

package natsclient

import (
	"context"
	"testing"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/suite"
)

type ClientIntegrationSuite struct {
	suite.Suite
	tc *TestClient
}

func TestClientIntegration(t *testing.T) {
	suite.Run(t, new(ClientIntegrationSuite))
}

func (s *ClientIntegrationSuite) SetupSuite() {
	s.tc = NewTestClient(s.T(), WithJetStream())
}

func (s *ClientIntegrationSuite) TestConnected() {
	s.True(s.tc.Client.IsHealthy())
	s.Equal(StatusConnected, s.tc.Client.Status())

	rtt, err := s.tc.Client.RTT()
	s.Require().NoError(err)
	s.Greater(rtt, time.Duration(0))
}

func (s *ClientIntegrationSuite) TestPublishSubscribe() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	got := make(chan []byte, 1)
	s.Require().NoError(s.tc.Client.Subscribe(ctx, "ringpipe.test.pubsub", func(_ context.Context, data []byte) {
		got <- data
	}))
	s.Require().NoError(s.tc.Client.Publish(ctx, "ringpipe.test.pubsub", []byte("hello")))

	select {
	case data := <-got:
		s.Equal([]byte("hello"), data)
	case <-ctx.Done():
		s.Fail("message not delivered")
	}
}

func (s *ClientIntegrationSuite) TestStream() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	cfg := jetstream.StreamConfig{Name: "RINGPIPE_TEST", Subjects: []string{"ringpipe.test.stream"}}
	stream, err := s.tc.Client.EnsureStream(ctx, cfg)
	s.Require().NoError(err)

	// second call returns the existing stream
	_, err = s.tc.Client.EnsureStream(ctx, cfg)
	s.Require().NoError(err)

	s.Require().NoError(s.tc.Client.PublishToStream(ctx, "ringpipe.test.stream", []byte("batch")))

	info, err := stream.Info(ctx)
	s.Require().NoError(err)
	s.Equal(uint64(1), info.State.Msgs)
}
