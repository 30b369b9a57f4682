package storage

import (
	"context"
	"log/slog"
	"sync"

	"github.com/Veraticus/clientdesk/internal/service"
)

// hub fans committed changes out to live listeners and, when a bridge is
// attached, to other processes.
type hub struct {
	logger  *slog.Logger
	subs    map[string]map[*listener]struct{}
	publish func(collections []string)
	mu      sync.Mutex
	closed  bool
}

func newHub(logger *slog.Logger) *hub {
	return &hub{
		logger: logger,
		subs:   make(map[string]map[*listener]struct{}),
	}
}

// notify wakes local listeners and forwards the change to the bridge.
func (h *hub) notify(collections []string) {
	if len(collections) == 0 {
		return
	}
	h.signal(collections)

	h.mu.Lock()
	publish := h.publish
	h.mu.Unlock()
	if publish != nil {
		publish(collections)
	}
}

// signal wakes local listeners only.
func (h *hub) signal(collections []string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, c := range collections {
		for l := range h.subs[c] {
			l.wake()
		}
	}
}

func (h *hub) setPublisher(fn func(collections []string)) {
	h.mu.Lock()
	h.publish = fn
	h.mu.Unlock()
}

func (h *hub) add(l *listener) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	set, ok := h.subs[l.collection]
	if !ok {
		set = make(map[*listener]struct{})
		h.subs[l.collection] = set
	}
	set[l] = struct{}{}
	return true
}

func (h *hub) remove(l *listener) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.subs[l.collection]; ok {
		delete(set, l)
		if len(set) == 0 {
			delete(h.subs, l.collection)
		}
	}
}

func (h *hub) close() {
	h.mu.Lock()
	var all []*listener
	for _, set := range h.subs {
		for l := range set {
			all = append(all, l)
		}
	}
	h.closed = true
	h.mu.Unlock()

	for _, l := range all {
		l.Stop()
	}
}

type listener struct {
	hub        *hub
	signals    chan struct{}
	done       chan struct{}
	collection string
	stopOnce   sync.Once
}

// wake schedules a refresh. Pending refreshes coalesce into one.
func (l *listener) wake() {
	select {
	case l.signals <- struct{}{}:
	default:
	}
}

// Stop detaches the listener. It does not wait for an in-flight callback.
func (l *listener) Stop() {
	l.stopOnce.Do(func() {
		l.hub.remove(l)
		close(l.done)
	})
}

// Done is closed when the listener stops.
func (l *listener) Done() <-chan struct{} {
	return l.done
}

// Listen attaches a live query to collection. fn receives the current
// snapshot before Listen returns and a fresh snapshot after every committed
// change to the collection's documents, until Stop is called or ctx ends.
func (s *SQLiteStorage) Listen(ctx context.Context, collection string, fn func([]service.Document)) (service.Listener, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if fn == nil {
		return nil, ErrNilParameter
	}

	if err := validateCollectionPath(collection); err != nil {
		return nil, err
	}

	l := &listener{
		hub:        s.hub,
		collection: collection,
		signals:    make(chan struct{}, 1),
		done:       make(chan struct{}),
	}
	// Register before the first read so no commit slips between the two.
	if !s.hub.add(l) {
		return nil, ErrStoreClosed
	}

	docs, err := s.List(ctx, collection)
	if err != nil {
		l.Stop()
		return nil, err
	}
	fn(docs)

	go func() {
		for {
			select {
			case <-ctx.Done():
				l.Stop()
				return
			case <-l.done:
				return
			case <-l.signals:
			}

			docs, err := s.List(ctx, collection)
			if err != nil {
				if ctx.Err() == nil {
					s.logger.Warn("live query refresh failed", "collection", collection, "error", err)
				}
				continue
			}

			select {
			case <-l.done:
				return
			default:
			}
			fn(docs)
		}
	}()

	return l, nil
}
