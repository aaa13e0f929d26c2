package bus

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/loadboard/loadboard/internal/domain/event"
)

const (
	redisEventChannel = "loadboard:negotiation:events"
	mirrorQueueSize   = 256
)

// envelope carries an event across instances. Origin lets a node skip its
// own mirrored publishes when they come back around.
type envelope struct {
	Origin     string       `json:"origin"`
	ChannelKey string       `json:"channelKey"`
	Event      *event.Event `json:"event"`
}

type mirrorJob struct {
	channelKey string
	ev         *event.Event
}

// Bridge mirrors local publishes onto a Redis pub/sub channel and relays
// remote publishes into the local hub, so multiple instances fan out to all
// connected viewers. Mirroring is fire-and-forget: a Redis failure is
// retried with backoff and then logged, never surfaced to the write path.
// A single worker drains the mirror queue, so events reach Redis in the
// order they were published.
type Bridge struct {
	hub     *Hub
	client  *redis.Client
	nodeID  string
	retries int
	backoff time.Duration
	jobs    chan mirrorJob
	logger  zerolog.Logger
}

func NewBridge(hub *Hub, client *redis.Client, logger zerolog.Logger) *Bridge {
	return &Bridge{
		hub:     hub,
		client:  client,
		nodeID:  uuid.NewString(),
		retries: 3,
		backoff: 250 * time.Millisecond,
		jobs:    make(chan mirrorJob, mirrorQueueSize),
		logger:  logger.With().Str("service", "bus").Logger(),
	}
}

// Publish delivers locally and queues the mirror to Redis. A full queue
// drops the mirror rather than blocking the write path.
func (b *Bridge) Publish(channelKey string, ev *event.Event) {
	b.hub.Publish(channelKey, ev)
	select {
	case b.jobs <- mirrorJob{channelKey: channelKey, ev: ev}:
	default:
		b.logger.Warn().
			Str("channel", channelKey).
			Str("event_id", ev.EventID.String()).
			Msg("mirror queue full, dropping event")
	}
}

func (b *Bridge) mirror(ctx context.Context, channelKey string, ev *event.Event) {
	payload, err := json.Marshal(envelope{Origin: b.nodeID, ChannelKey: channelKey, Event: ev})
	if err != nil {
		b.logger.Error().Err(err).Str("channel", channelKey).Msg("failed to marshal event envelope")
		return
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	delay := b.backoff
	for attempt := 1; attempt <= b.retries; attempt++ {
		if err = b.client.Publish(ctx, redisEventChannel, payload).Err(); err == nil {
			return
		}
		if attempt < b.retries {
			time.Sleep(delay)
			delay *= 2
		}
	}
	b.logger.Warn().Err(err).
		Str("channel", channelKey).
		Str("event_id", ev.EventID.String()).
		Msg("dropping event mirror after retries")
}

func (b *Bridge) mirrorLoop(ctx context.Context) {
	for {
		select {
		case job := <-b.jobs:
			b.mirror(ctx, job.channelKey, job.ev)
		case <-ctx.Done():
			return
		}
	}
}

// Run drains the mirror queue and relays remote-origin events into the
// local hub until ctx is done.
func (b *Bridge) Run(ctx context.Context) {
	go b.mirrorLoop(ctx)

	sub := b.client.Subscribe(ctx, redisEventChannel)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var env envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				b.logger.Warn().Err(err).Msg("malformed event envelope")
				continue
			}
			if env.Origin == b.nodeID || env.Event == nil {
				continue
			}
			b.hub.Publish(env.ChannelKey, env.Event)
		case <-ctx.Done():
			return
		}
	}
}
