package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ChangesChannel is the pub/sub channel carrying collection change events.
const ChangesChannel = "clientdesk:changes"

const (
	publishQueueSize = 64
	publishTimeout   = 2 * time.Second
)

// changeEvent is the payload published after every local commit.
type changeEvent struct {
	Origin      string   `json:"origin"`
	Collections []string `json:"collections"`
}

// RedisBridge relays change notifications between processes that share one
// database file, so live queries in every process see each other's writes.
type RedisBridge struct {
	client  *redis.Client
	pubsub  *redis.PubSub
	logger  *slog.Logger
	hub     *hub
	done    chan struct{}
	// pending holds events waiting to be published off the commit path.
	pending chan []string
	origin  string
	wg      sync.WaitGroup
	closeMu sync.Once
}

// NewRedisBridge connects to the redis server at redisURL.
func NewRedisBridge(redisURL string) (*RedisBridge, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewRedisBridgeWithClient(client), nil
}

// NewRedisBridgeWithClient creates a bridge from an existing client.
func NewRedisBridgeWithClient(client *redis.Client) *RedisBridge {
	return &RedisBridge{
		client:  client,
		logger:  slog.Default(),
		origin:  uuid.NewString(),
		done:    make(chan struct{}),
		pending: make(chan []string, publishQueueSize),
	}
}

// AttachBridge subscribes the bridge to the change channel and starts
// publishing this store's commits to it.
func (s *SQLiteStorage) AttachBridge(ctx context.Context, b *RedisBridge) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if b == nil {
		return fmt.Errorf("%w: bridge", ErrNilParameter)
	}
	b.logger = s.logger

	pubsub := b.client.Subscribe(ctx, ChangesChannel)
	// Wait for the subscription to be confirmed so no event is lost.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return fmt.Errorf("subscribe %s: %w", ChangesChannel, err)
	}
	b.pubsub = pubsub
	b.hub = s.hub

	b.wg.Add(2)
	go b.receive(s.hub)
	go b.sendLoop()

	s.hub.setPublisher(b.publish)
	return nil
}

func (b *RedisBridge) receive(h *hub) {
	defer b.wg.Done()
	ch := b.pubsub.Channel()
	for {
		select {
		case <-b.done:
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var ev changeEvent
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				b.logger.Warn("dropping malformed change event", "error", err)
				continue
			}
			if ev.Origin == b.origin {
				continue
			}
			h.signal(ev.Collections)
		}
	}
}

// publish queues a change event. It never blocks the committing writer; when
// the queue is full the event is dropped and logged.
func (b *RedisBridge) publish(collections []string) {
	select {
	case b.pending <- collections:
	default:
		b.logger.Warn("change event queue full, dropping event", "collections", collections)
	}
}

func (b *RedisBridge) sendLoop() {
	defer b.wg.Done()
	for {
		select {
		case <-b.done:
			return
		case collections := <-b.pending:
			b.send(collections)
		}
	}
}

func (b *RedisBridge) send(collections []string) {
	payload, err := json.Marshal(changeEvent{Origin: b.origin, Collections: collections})
	if err != nil {
		b.logger.Error("failed to encode change event", "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := b.client.Publish(ctx, ChangesChannel, payload).Err(); err != nil {
		b.logger.Warn("failed to publish change event", "error", err)
	}
}

// Close detaches the bridge from its store, unsubscribes and closes the
// redis connection. Queued events that were not sent yet are dropped.
func (b *RedisBridge) Close() error {
	var err error
	b.closeMu.Do(func() {
		if b.hub != nil {
			b.hub.setPublisher(nil)
		}
		close(b.done)
		if b.pubsub != nil {
			if cerr := b.pubsub.Close(); cerr != nil {
				err = cerr
			}
		}
		b.wg.Wait()
		if cerr := b.client.Close(); cerr != nil && err == nil {
			err = cerr
		}
	})
	return err
}
