package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/artemis-ci-api/internal/dto"
	"github.com/noah-isme/artemis-ci-api/internal/observability"
)

const (
	resultBufferSize  = 16
	lastResultTTL     = 24 * time.Hour
	realtimeKeepalive = 30 * time.Second
)

// ResultBroadcaster delivers new results to clients watching a participation topic.
type ResultBroadcaster interface {
	Broadcast(ctx context.Context, message dto.NewSubmissionMessage)
	Subscribe(participationID uint) (<-chan dto.NewSubmissionMessage, func())
	LastResult(ctx context.Context, participationID uint) *dto.NewSubmissionMessage
	ServeConnection(conn *websocket.Conn, opts RealtimeConnectionOptions)
	Start(ctx context.Context)
}

// RealtimeConnectionOptions describes one websocket subscriber.
type RealtimeConnectionOptions struct {
	ParticipationID uint
	CorrelationID   string
	Context         context.Context
}

// TopicForParticipation returns the topic name results of a participation are published on.
func TopicForParticipation(participationID uint) string {
	return fmt.Sprintf("/topic/participation/%d/newSubmission", participationID)
}

type resultBroadcaster struct {
	redis       *redis.Client
	redisStream string
	redisCache  string
	nats        *nats.Conn
	natsSubject string
	logger      zerolog.Logger
	tracer      trace.Tracer
	broker      *resultBroker
	nodeID      string
}

type resultEvent struct {
	Source  string                   `json:"source"`
	Topic   string                   `json:"topic"`
	Message dto.NewSubmissionMessage `json:"message"`
	SentAt  time.Time                `json:"sent_at"`
}

type resultBroker struct {
	mu          sync.RWMutex
	subscribers map[uint]map[chan dto.NewSubmissionMessage]struct{}
}

// NewResultBroadcaster constructs a broadcaster. Redis and NATS are optional; without them
// results only reach clients connected to this node.
func NewResultBroadcaster(redisClient *redis.Client, channelBase string, natsConn *nats.Conn, logger zerolog.Logger) ResultBroadcaster {
	stream, cache, subject := "", "", ""
	if channelBase != "" {
		stream = channelBase + ":results"
		cache = channelBase + ":results:last"
		subject = strings.ReplaceAll(channelBase, ":", ".") + ".results"
	}

	return &resultBroadcaster{
		redis:       redisClient,
		redisStream: stream,
		redisCache:  cache,
		nats:        natsConn,
		natsSubject: subject,
		logger:      logger.With().Str("component", "result_broadcaster").Logger(),
		tracer:      otel.Tracer("github.com/noah-isme/artemis-ci-api/internal/service/broadcaster"),
		broker: &resultBroker{
			subscribers: make(map[uint]map[chan dto.NewSubmissionMessage]struct{}),
		},
		nodeID: uuid.NewString(),
	}
}

// Start consumes results published by other nodes. NATS carries the fan-out when configured,
// redis pubsub otherwise; the redis cache is used either way.
func (s *resultBroadcaster) Start(ctx context.Context) {
	switch {
	case s.useNATS():
		go s.consumeNATS(ctx)
	case s.useRedisPubSub():
		go s.consumeRedis(ctx)
	}
}

func (s *resultBroadcaster) useNATS() bool {
	return s.nats != nil && s.natsSubject != ""
}

func (s *resultBroadcaster) useRedisPubSub() bool {
	return !s.useNATS() && s.redis != nil && s.redisStream != ""
}

func (s *resultBroadcaster) Broadcast(ctx context.Context, message dto.NewSubmissionMessage) {
	spanCtx, span := s.tracer.Start(ctx, "results.broadcast", trace.WithAttributes(
		attribute.Int("participation.id", int(message.ParticipationID)),
	))
	defer span.End()

	s.cacheLastResult(spanCtx, message)
	s.broker.broadcast(message.ParticipationID, message)
	if err := s.publish(spanCtx, message); err != nil {
		span.RecordError(err)
		s.logger.Warn().Err(err).Uint("participation_id", message.ParticipationID).Msg("failed to publish result to broker")
	}
}

func (s *resultBroadcaster) Subscribe(participationID uint) (<-chan dto.NewSubmissionMessage, func()) {
	channel := make(chan dto.NewSubmissionMessage, resultBufferSize)

	s.broker.subscribe(participationID, channel)
	observability.RealtimeClientsActive().Inc()

	var once sync.Once
	cleanup := func() {
		once.Do(func() {
			s.broker.unsubscribe(participationID, channel)
			observability.RealtimeClientsActive().Dec()
		})
	}

	return channel, cleanup
}

func (s *resultBroadcaster) LastResult(ctx context.Context, participationID uint) *dto.NewSubmissionMessage {
	if s.redis == nil || s.redisCache == "" {
		return nil
	}

	raw, err := s.redis.Get(ctx, s.cacheKey(participationID)).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.logger.Debug().Err(err).Msg("failed to read cached result")
		}
		return nil
	}

	var message dto.NewSubmissionMessage
	if err := json.Unmarshal([]byte(raw), &message); err != nil {
		s.logger.Warn().Err(err).Msg("invalid cached result payload")
		return nil
	}
	return &message
}

// ServeConnection streams results of one participation to a websocket client until it disconnects.
func (s *resultBroadcaster) ServeConnection(conn *websocket.Conn, opts RealtimeConnectionOptions) {
	baseCtx := opts.Context
	if baseCtx == nil {
		baseCtx = context.Background()
	}

	messages, cleanup := s.Subscribe(opts.ParticipationID)
	defer cleanup()

	logger := s.logger.With().
		Uint("participation_id", opts.ParticipationID).
		Str("correlation_id", opts.CorrelationID).
		Logger()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		// Clients never send on this topic; reading only detects disconnects.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				logger.Debug().Err(err).Msg("realtime read loop ended")
				return
			}
		}
	}()

	if last := s.LastResult(baseCtx, opts.ParticipationID); last != nil {
		if err := conn.WriteJSON(last); err != nil {
			logger.Debug().Err(err).Msg("failed to replay cached result")
			_ = conn.Close()
			return
		}
	}

	ticker := time.NewTicker(realtimeKeepalive)
	defer ticker.Stop()

	for {
		select {
		case message, ok := <-messages:
			if !ok {
				return
			}
			if err := conn.WriteJSON(message); err != nil {
				logger.Debug().Err(err).Msg("realtime write loop terminated")
				_ = conn.Close()
				return
			}
		case <-ticker.C:
			if err := conn.WriteMessage(websocket.PingMessage, []byte("keepalive")); err != nil {
				logger.Debug().Err(err).Msg("realtime ping failed")
				_ = conn.Close()
				return
			}
		case <-closed:
			return
		case <-baseCtx.Done():
			_ = conn.Close()
			return
		}
	}
}

func (s *resultBroadcaster) cacheKey(participationID uint) string {
	return fmt.Sprintf("%s:%d", s.redisCache, participationID)
}

func (s *resultBroadcaster) cacheLastResult(ctx context.Context, message dto.NewSubmissionMessage) {
	if s.redis == nil || s.redisCache == "" {
		return
	}

	payload, err := json.Marshal(message)
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to marshal result for cache")
		return
	}

	if err := s.redis.Set(ctx, s.cacheKey(message.ParticipationID), payload, lastResultTTL).Err(); err != nil {
		s.logger.Warn().Err(err).Msg("failed to cache last result")
	}
}

func (s *resultBroadcaster) publish(ctx context.Context, message dto.NewSubmissionMessage) error {
	event := resultEvent{
		Source:  s.nodeID,
		Topic:   TopicForParticipation(message.ParticipationID),
		Message: message,
		SentAt:  time.Now().UTC(),
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	switch {
	case s.useNATS():
		return s.nats.Publish(s.natsSubject, payload)
	case s.useRedisPubSub():
		return s.redis.Publish(ctx, s.redisStream, payload).Err()
	}
	return nil
}

func (s *resultBroadcaster) consumeRedis(ctx context.Context) {
	pubsub := s.redis.Subscribe(ctx, s.redisStream)
	defer func() { _ = pubsub.Close() }()

	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			s.logger.Error().Err(err).Msg("result redis subscription closed")
			return
		}
		s.handleEvent([]byte(msg.Payload))
	}
}

func (s *resultBroadcaster) consumeNATS(ctx context.Context) {
	// Not a queue group: every node serves its own websocket clients.
	sub, err := s.nats.Subscribe(s.natsSubject, func(msg *nats.Msg) {
		s.handleEvent(msg.Data)
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to subscribe to nats results subject")
		return
	}

	go func() {
		<-ctx.Done()
		if err := sub.Drain(); err != nil {
			s.logger.Warn().Err(err).Msg("failed to drain result nats subscription")
		}
	}()
}

func (s *resultBroadcaster) handleEvent(payload []byte) {
	var event resultEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		s.logger.Warn().Err(err).Msg("invalid result event payload")
		return
	}

	if event.Source == s.nodeID {
		return
	}

	s.broker.broadcast(event.Message.ParticipationID, event.Message)
}

func (b *resultBroker) subscribe(participationID uint, ch chan dto.NewSubmissionMessage) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.subscribers[participationID]; !exists {
		b.subscribers[participationID] = make(map[chan dto.NewSubmissionMessage]struct{})
	}
	b.subscribers[participationID][ch] = struct{}{}
}

func (b *resultBroker) unsubscribe(participationID uint, ch chan dto.NewSubmissionMessage) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if subscribers, ok := b.subscribers[participationID]; ok {
		delete(subscribers, ch)
		close(ch)
		if len(subscribers) == 0 {
			delete(b.subscribers, participationID)
		}
	}
}

func (b *resultBroker) broadcast(participationID uint, message dto.NewSubmissionMessage) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch := range b.subscribers[participationID] {
		select {
		case ch <- message:
		default:
		}
	}
}
