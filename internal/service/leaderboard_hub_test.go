package service

import (
	"context"
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/test"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLeaderboardHubDeliversPerSession(t *testing.T) {
	hub := NewLeaderboardHub(nil, nil, "", zerolog.Nop())

	mine, cancelMine := hub.Subscribe("s1")
	defer cancelMine()
	other, cancelOther := hub.Subscribe("s2")
	defer cancelOther()

	hub.Publish(context.Background(), LeaderboardEvent{Type: EventSubmissionCreated, SessionID: "s1", SubmissionID: "x"})

	select {
	case event := <-mine:
		assert.Equal(t, "x", event.SubmissionID)
		assert.NotEmpty(t, event.Source)
		assert.False(t, event.SentAt.IsZero())
	case <-time.After(time.Second):
		t.Fatal("expected event for s1")
	}

	select {
	case event := <-other:
		t.Fatalf("unexpected event for s2: %+v", event)
	default:
	}
}

func TestLeaderboardHubCancelClosesChannel(t *testing.T) {
	hub := NewLeaderboardHub(nil, nil, "", zerolog.Nop())

	events, cancel := hub.Subscribe("s1")
	cancel()
	cancel()

	_, open := <-events
	assert.False(t, open)

	hub.Publish(context.Background(), LeaderboardEvent{Type: EventLeaderboardReset, SessionID: "s1"})
}

func TestLeaderboardHubRelaysAcrossNodesViaRedis(t *testing.T) {
	_, client := setupRedis(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	nodeA := NewLeaderboardHub(client, nil, "bmc", zerolog.Nop())
	nodeB := NewLeaderboardHub(client, nil, "bmc", zerolog.Nop())
	nodeA.Start(ctx)
	nodeB.Start(ctx)

	remote, cancelRemote := nodeB.Subscribe("s1")
	defer cancelRemote()
	local, cancelLocal := nodeA.Subscribe("s1")
	defer cancelLocal()

	// the subscriptions are established asynchronously
	require.Eventually(t, func() bool {
		channels, err := client.PubSubNumSub(ctx, "bmc:leaderboard").Result()
		return err == nil && channels["bmc:leaderboard"] == 2
	}, 2*time.Second, 10*time.Millisecond)

	nodeA.Publish(ctx, LeaderboardEvent{Type: EventSubmissionCreated, SessionID: "s1"})

	select {
	case event := <-remote:
		assert.Equal(t, EventSubmissionCreated, event.Type)
	case <-time.After(2 * time.Second):
		t.Fatal("expected relayed event on node B")
	}

	select {
	case <-local:
	case <-time.After(time.Second):
		t.Fatal("expected local event on node A")
	}

	select {
	case event := <-local:
		t.Fatalf("node A must ignore its own relayed event, got %+v", event)
	case <-time.After(100 * time.Millisecond):
	}
}

func setupNATS(t *testing.T) (func() uint32, func() *nats.Conn) {
	t.Helper()

	opts := natsserver.DefaultTestOptions
	opts.Port = -1
	server := natsserver.RunServer(&opts)
	t.Cleanup(server.Shutdown)

	connect := func() *nats.Conn {
		conn, err := nats.Connect(server.ClientURL())
		require.NoError(t, err)
		t.Cleanup(conn.Close)
		return conn
	}
	return server.NumSubscriptions, connect
}

func TestLeaderboardHubRelaysAcrossNodesViaNATS(t *testing.T) {
	numSubs, connect := setupNATS(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	nodeA := NewLeaderboardHub(nil, connect(), "bmc", zerolog.Nop())
	nodeB := NewLeaderboardHub(nil, connect(), "bmc", zerolog.Nop())
	nodeA.Start(ctx)
	nodeB.Start(ctx)

	remote, cancelRemote := nodeB.Subscribe("s1")
	defer cancelRemote()
	local, cancelLocal := nodeA.Subscribe("s1")
	defer cancelLocal()

	require.Eventually(t, func() bool { return numSubs() == 2 }, 2*time.Second, 10*time.Millisecond)

	nodeA.Publish(ctx, LeaderboardEvent{Type: EventSubmissionDeleted, SessionID: "s1", SubmissionID: "x"})

	select {
	case event := <-remote:
		assert.Equal(t, EventSubmissionDeleted, event.Type)
		assert.Equal(t, "x", event.SubmissionID)
	case <-time.After(2 * time.Second):
		t.Fatal("expected relayed event on node B")
	}

	select {
	case <-local:
	case <-time.After(time.Second):
		t.Fatal("expected local event on node A")
	}

	select {
	case event := <-local:
		t.Fatalf("node A must ignore its own relayed event, got %+v", event)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestLeaderboardHubPrefersNATSWhenBothRelaysConfigured(t *testing.T) {
	_, client := setupRedis(t)
	numSubs, connect := setupNATS(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	nodeA := NewLeaderboardHub(client, connect(), "bmc", zerolog.Nop())
	nodeB := NewLeaderboardHub(client, connect(), "bmc", zerolog.Nop())
	nodeA.Start(ctx)
	nodeB.Start(ctx)

	remote, cancelRemote := nodeB.Subscribe("s1")
	defer cancelRemote()

	require.Eventually(t, func() bool { return numSubs() == 2 }, 2*time.Second, 10*time.Millisecond)

	channels, err := client.PubSubNumSub(ctx, "bmc:leaderboard").Result()
	require.NoError(t, err)
	assert.Zero(t, channels["bmc:leaderboard"])

	nodeA.Publish(ctx, LeaderboardEvent{Type: EventLeaderboardReset, SessionID: "s1"})

	select {
	case event := <-remote:
		assert.Equal(t, EventLeaderboardReset, event.Type)
	case <-time.After(2 * time.Second):
		t.Fatal("expected relayed event on node B")
	}

	select {
	case event := <-remote:
		t.Fatalf("event delivered twice: %+v", event)
	case <-time.After(200 * time.Millisecond):
	}
}
