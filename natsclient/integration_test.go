package natsclient_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/mergestream/checker"
	"github.com/c360/mergestream/component"
	"github.com/c360/mergestream/engine"
	"github.com/c360/mergestream/mergeable"
	"github.com/c360/mergestream/message"
	"github.com/c360/mergestream/natsclient"
	"github.com/c360/mergestream/producer"
	"github.com/c360/mergestream/topology"
)

func TestIntegrationPublishSubscribe(t *testing.T) {
	if testing.Short() {
		t.Skip("integration test requires Docker")
	}

	tc := natsclient.NewTestClient(t)
	ctx := context.Background()

	received := make(chan []byte, 1)
	require.NoError(t, tc.Client.Subscribe(ctx, "it.echo", func(_ context.Context, data []byte) {
		received <- data
	}))
	require.NoError(t, tc.Client.Publish(ctx, "it.echo", []byte("hello")))
	require.NoError(t, tc.Client.Flush())

	select {
	case data := <-received:
		assert.Equal(t, []byte("hello"), data)
	case <-time.After(5 * time.Second):
		t.Fatal("message not delivered")
	}
}

// TestIntegrationPipelineOverNATS runs the full two-producer histogram merge
// against a real broker: each producer injects a 10-bin histogram holding 4
// entries, the root must converge to the elementwise doubled contents and the
// checker must see a total of 8.
func TestIntegrationPipelineOverNATS(t *testing.T) {
	if testing.Short() {
		t.Skip("integration test requires Docker")
	}

	tc := natsclient.NewTestClient(t)
	ctx := context.Background()

	fixture := []float64{0, 0, 1, 1, 0, 0, 2, 0, 0, 0, 0, 0}
	makeHistogram := func() mergeable.Object {
		h, err := mergeable.NewHistogram("quality", 10, 0, 10)
		require.NoError(t, err)
		require.NoError(t, h.SetContents(fixture))
		return h
	}

	producers := []string{"producer-1", "producer-2"}
	top, err := topology.Build(producers, topology.Options{
		FanIn:           2,
		Kind:            mergeable.KindHistogram,
		PublishInterval: 50 * time.Millisecond,
	})
	require.NoError(t, err)

	results := make(chan checker.Result, 16)
	eng, err := engine.New(
		component.Dependencies{Bus: tc.Client},
		top,
		mergeable.NewDefaultRegistry(),
		engine.Options{
			Checker: &checker.Config{
				Name:          "checker",
				Kind:          mergeable.KindHistogram,
				ExpectedTotal: 8,
				Tolerance:     0,
			},
			CheckerResults: results,
		})
	require.NoError(t, err)

	require.NoError(t, eng.Start(ctx))
	defer func() { _ = eng.Stop(10 * time.Second) }()

	for _, id := range producers {
		p, err := producer.New(producer.Deps{
			Config: producer.Config{
				SourceID: id,
				Subject:  topology.UpdateSubject(id),
				Interval: 20 * time.Millisecond,
			},
			Bus:  tc.Client,
			Next: producer.FromSlice([]mergeable.Object{makeHistogram()}),
		})
		require.NoError(t, err)
		require.NoError(t, p.Start(ctx))
		defer func() { _ = p.Stop(time.Second) }()
	}

	deadline := time.After(15 * time.Second)
	for {
		select {
		case r := <-results:
			if !r.Passed {
				continue // partial merge before both producers landed
			}
		case <-deadline:
			t.Fatal("checker never saw the complete merge over NATS")
		}
		break
	}

	// Verify the root snapshot contents directly off the broker.
	rootData := make(chan []byte, 16)
	require.NoError(t, tc.Client.Subscribe(ctx, top.Root().OutputSubject, func(_ context.Context, data []byte) {
		select {
		case rootData <- data:
		default:
		}
	}))

	select {
	case data := <-rootData:
		snap, err := message.DecodeSnapshot(data)
		require.NoError(t, err)
		obj, err := mergeable.NewDefaultRegistry().Decode(snap.Kind, snap.Payload)
		require.NoError(t, err)
		merged := obj.(*mergeable.Histogram)
		for i, v := range fixture {
			assert.Equal(t, 2*v, merged.Counts[i], "slot %d", i)
		}
		assert.Equal(t, float64(8), merged.TotalEntries())
	case <-time.After(5 * time.Second):
		t.Fatal("no root snapshot observed")
	}
}

func TestIntegrationReconnectCallback(t *testing.T) {
	if testing.Short() {
		t.Skip("integration test requires Docker")
	}

	tc := natsclient.NewTestClient(t)
	assert.True(t, tc.IsReady())

	status := tc.Client.GetStatus()
	assert.Equal(t, natsclient.StatusConnected, status.Status)
	assert.GreaterOrEqual(t, status.RTT, time.Duration(0))
}
