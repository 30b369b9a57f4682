package registry

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/Veraticus/clientdesk/internal/common"
	"github.com/Veraticus/clientdesk/internal/model"
	"github.com/Veraticus/clientdesk/internal/service"
)

// Subscription lifecycle errors.
var (
	ErrAlreadyStarted = errors.New("subscription already started")
	ErrStopped        = errors.New("subscription stopped while starting")
)

// Subscription keeps a live, sorted copy of the client list. It stops on its
// own when the context passed to Start ends, after which it can be started
// again.
type Subscription struct {
	store    service.DocumentStore
	logger   *slog.Logger
	listener service.Listener
	onChange func([]model.Client)
	clients  []model.Client
	mu       sync.Mutex
	// gen identifies the current Start; callbacks and watchers from an
	// earlier one are ignored.
	gen     uint64
	running bool
}

// SubscriptionOption configures a Subscription.
type SubscriptionOption func(*Subscription)

// WithOnChange registers a callback receiving every new client list.
func WithOnChange(fn func([]model.Client)) SubscriptionOption {
	return func(s *Subscription) {
		s.onChange = fn
	}
}

// NewSubscription creates a stopped subscription over store.
func NewSubscription(store service.DocumentStore, logger *slog.Logger, opts ...SubscriptionOption) *Subscription {
	s := &Subscription{
		store:  store,
		logger: common.LoggerOrDefault(logger),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start attaches the live query. The first snapshot is loaded before Start
// returns.
func (s *Subscription) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.running = true
	s.gen++
	gen := s.gen
	s.mu.Unlock()

	l, err := s.store.Listen(ctx, ClientsCollection, func(docs []service.Document) {
		s.handle(gen, docs)
	})
	if err != nil {
		s.mu.Lock()
		if s.gen == gen {
			s.running = false
		}
		s.mu.Unlock()
		return err
	}

	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		l.Stop()
		return ErrStopped
	}
	s.listener = l
	s.mu.Unlock()

	go s.watch(gen, l)
	s.logger.Debug("client subscription started")
	return nil
}

// watch marks the subscription stopped when its listener ends without Stop.
func (s *Subscription) watch(gen uint64, l service.Listener) {
	<-l.Done()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen || s.listener != l {
		return
	}
	s.listener = nil
	s.running = false
	s.logger.Debug("client subscription ended with its context")
}

func (s *Subscription) handle(gen uint64, docs []service.Document) {
	clients := normalizeAll(docs)

	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		return
	}
	s.clients = clients
	onChange := s.onChange
	s.mu.Unlock()

	if onChange != nil {
		out := make([]model.Client, len(clients))
		copy(out, clients)
		onChange(out)
	}
}

// Stop detaches the live query. Stopping a stopped subscription is a no-op.
func (s *Subscription) Stop() {
	s.mu.Lock()
	l := s.listener
	s.listener = nil
	s.running = false
	s.gen++
	s.mu.Unlock()

	if l != nil {
		l.Stop()
		s.logger.Debug("client subscription stopped")
	}
}

// Running reports whether the live query is attached.
func (s *Subscription) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Clients returns a copy of the latest client list.
func (s *Subscription) Clients() []model.Client {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Client, len(s.clients))
	copy(out, s.clients)
	return out
}
