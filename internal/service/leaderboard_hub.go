package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/bmc-canvas-api/internal/observability"
)

const leaderboardBufferSize = 16

// Leaderboard event types.
const (
	EventSubmissionCreated = "submission.created"
	EventSubmissionDeleted = "submission.deleted"
	EventLeaderboardReset  = "leaderboard.reset"
	EventSessionDeleted    = "session.deleted"
)

// LeaderboardEvent signals that a session's leaderboard changed.
type LeaderboardEvent struct {
	Type         string    `json:"type"`
	SessionID    string    `json:"sessionId"`
	SubmissionID string    `json:"submissionId,omitempty"`
	Source       string    `json:"source"`
	SentAt       time.Time `json:"sentAt"`
}

// LeaderboardHub fans leaderboard changes out to local subscribers and, when a relay is
// configured, to the other API nodes.
type LeaderboardHub interface {
	Publish(ctx context.Context, event LeaderboardEvent)
	Subscribe(sessionID string) (<-chan LeaderboardEvent, func())
	Start(ctx context.Context)
}

type leaderboardHub struct {
	redis        *redis.Client
	redisChannel string
	nats         *nats.Conn
	natsSubject  string
	logger       zerolog.Logger
	broker       *leaderboardBroker
	nodeID       string
}

type leaderboardBroker struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan LeaderboardEvent]struct{}
}

// NewLeaderboardHub constructs the hub. redisClient and natsConn are optional relays; with
// neither the hub only serves subscribers of this process.
func NewLeaderboardHub(redisClient *redis.Client, natsConn *nats.Conn, channelBase string, logger zerolog.Logger) LeaderboardHub {
	channel := ""
	subject := ""
	if channelBase != "" {
		channel = channelBase + ":leaderboard"
		subject = strings.ReplaceAll(channelBase, ":", ".") + ".leaderboard"
	}

	return &leaderboardHub{
		redis:        redisClient,
		redisChannel: channel,
		nats:         natsConn,
		natsSubject:  subject,
		logger:       logger.With().Str("component", "leaderboard_hub").Logger(),
		broker: &leaderboardBroker{
			subscribers: make(map[string]map[chan LeaderboardEvent]struct{}),
		},
		nodeID: uuid.NewString(),
	}
}

func (h *leaderboardHub) Start(ctx context.Context) {
	switch {
	case h.natsEnabled():
		go h.consumeNATS(ctx)
	case h.redisEnabled():
		go h.consumeRedis(ctx)
	}
}

func (h *leaderboardHub) Publish(ctx context.Context, event LeaderboardEvent) {
	event.Source = h.nodeID
	if event.SentAt.IsZero() {
		event.SentAt = time.Now().UTC()
	}

	h.broker.broadcast(event)
	if err := h.relay(ctx, event); err != nil {
		h.logger.Warn().Err(err).Str("session_id", event.SessionID).Msg("failed to relay leaderboard event")
	}
}

func (h *leaderboardHub) Subscribe(sessionID string) (<-chan LeaderboardEvent, func()) {
	channel := make(chan LeaderboardEvent, leaderboardBufferSize)

	h.broker.subscribe(sessionID, channel)
	observability.StreamClientsActive().Inc()

	var once sync.Once
	cleanup := func() {
		once.Do(func() {
			h.broker.unsubscribe(sessionID, channel)
			observability.StreamClientsActive().Dec()
		})
	}

	return channel, cleanup
}

// relay uses a single transport so remote nodes see each event once. NATS wins when both
// are configured.
func (h *leaderboardHub) relay(ctx context.Context, event LeaderboardEvent) error {
	if !h.natsEnabled() && !h.redisEnabled() {
		return nil
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	if h.natsEnabled() {
		return h.nats.Publish(h.natsSubject, payload)
	}
	return h.redis.Publish(ctx, h.redisChannel, payload).Err()
}

func (h *leaderboardHub) natsEnabled() bool {
	return h.nats != nil && h.natsSubject != ""
}

func (h *leaderboardHub) redisEnabled() bool {
	return h.redis != nil && h.redisChannel != ""
}

func (h *leaderboardHub) consumeRedis(ctx context.Context) {
	pubsub := h.redis.Subscribe(ctx, h.redisChannel)
	defer func() { _ = pubsub.Close() }()

	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			h.logger.Error().Err(err).Msg("leaderboard redis subscription closed")
			return
		}
		h.handleEvent([]byte(msg.Payload))
	}
}

func (h *leaderboardHub) consumeNATS(ctx context.Context) {
	// each node rebroadcasts every event to its own clients, so no queue group
	sub, err := h.nats.Subscribe(h.natsSubject, func(msg *nats.Msg) {
		h.handleEvent(msg.Data)
	})
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to subscribe to nats leaderboard subject")
		return
	}

	go func() {
		<-ctx.Done()
		if err := sub.Drain(); err != nil {
			h.logger.Warn().Err(err).Msg("failed to drain leaderboard nats subscription")
		}
	}()
}

func (h *leaderboardHub) handleEvent(payload []byte) {
	var event LeaderboardEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		h.logger.Warn().Err(err).Msg("invalid leaderboard event payload")
		return
	}

	if event.Source == h.nodeID || event.SessionID == "" {
		return
	}

	h.broker.broadcast(event)
}

func (b *leaderboardBroker) subscribe(sessionID string, ch chan LeaderboardEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.subscribers[sessionID]; !exists {
		b.subscribers[sessionID] = make(map[chan LeaderboardEvent]struct{})
	}
	b.subscribers[sessionID][ch] = struct{}{}
}

func (b *leaderboardBroker) unsubscribe(sessionID string, ch chan LeaderboardEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if subscribers, ok := b.subscribers[sessionID]; ok {
		delete(subscribers, ch)
		close(ch)
		if len(subscribers) == 0 {
			delete(b.subscribers, sessionID)
		}
	}
}

func (b *leaderboardBroker) broadcast(event LeaderboardEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch := range b.subscribers[event.SessionID] {
		select {
		case ch <- event:
		default:
		}
	}
}
