package repo

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/lib/pq"
	"github.com/rs/zerolog"

	"github.com/24981a0558-joel/manna-contribution/internal/domain"
)

// NotifyChannel is the channel the contributions trigger notifies with the
// partition label as payload.
const NotifyChannel = "contributions_changed"

// Lister reads the full contents of a partition.
type Lister interface {
	List(ctx context.Context, p domain.Partition) ([]domain.Contribution, error)
}

type subscriber struct {
	id         int
	onSnapshot domain.SnapshotFunc
	onError    func(error)
}

type topic struct {
	partition domain.Partition
	subs      map[int]*subscriber
}

// hub fans partition snapshots out to subscribers. Deliveries are
// serialized so every subscriber sees snapshots in the order they were read.
type hub struct {
	lister  Lister
	timeout time.Duration

	deliver sync.Mutex
	mu      sync.Mutex
	topics  map[string]*topic
	nextID  int
}

func newHub(lister Lister, timeout time.Duration) *hub {
	return &hub{lister: lister, timeout: timeout, topics: make(map[string]*topic)}
}

func (h *hub) watch(ctx context.Context, p domain.Partition, onSnapshot domain.SnapshotFunc, onError func(error)) (func(), error) {
	h.deliver.Lock()
	defer h.deliver.Unlock()

	rows, err := h.lister.List(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrSubscription, err)
	}

	h.mu.Lock()
	h.nextID++
	sub := &subscriber{id: h.nextID, onSnapshot: onSnapshot, onError: onError}
	t, ok := h.topics[p.Label()]
	if !ok {
		t = &topic{partition: p, subs: make(map[int]*subscriber)}
		h.topics[p.Label()] = t
	}
	t.subs[sub.id] = sub
	h.mu.Unlock()

	onSnapshot(rows)

	var once sync.Once
	return func() { once.Do(func() { h.remove(p.Label(), sub.id) }) }, nil
}

func (h *hub) remove(label string, id int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	t, ok := h.topics[label]
	if !ok {
		return
	}
	delete(t.subs, id)
	if len(t.subs) == 0 {
		delete(h.topics, label)
	}
}

func (h *hub) subscribers(label string) (domain.Partition, []*subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	t, ok := h.topics[label]
	if !ok {
		return domain.Partition{}, nil
	}
	out := make([]*subscriber, 0, len(t.subs))
	for _, s := range t.subs {
		out = append(out, s)
	}
	return t.partition, out
}

func (h *hub) labels() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, 0, len(h.topics))
	for label := range h.topics {
		out = append(out, label)
	}
	return out
}

// refresh reads label once and hands the snapshot to every subscriber. A
// failed read ends every subscription of the partition.
func (h *hub) refresh(label string) {
	h.deliver.Lock()
	defer h.deliver.Unlock()

	p, subs := h.subscribers(label)
	if len(subs) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	rows, err := h.lister.List(ctx, p)
	cancel()
	if err != nil {
		h.mu.Lock()
		delete(h.topics, label)
		h.mu.Unlock()
		err = fmt.Errorf("%w: %v", domain.ErrSubscription, err)
		for _, s := range subs {
			if s.onError != nil {
				s.onError(err)
			}
		}
		return
	}
	for _, s := range subs {
		s.onSnapshot(rows)
	}
}

// Feed implements domain.ContributionFeed with LISTEN/NOTIFY. Every
// notification re-reads the whole partition; reconnects refresh every
// watched partition since notifications may have been missed.
type Feed struct {
	hub      *hub
	listener *pq.Listener
	logger   zerolog.Logger
	done     chan struct{}
	wg       sync.WaitGroup
}

// NewFeed connects a listener to dsn and starts dispatching.
func NewFeed(dsn string, lister Lister, logger zerolog.Logger) (*Feed, error) {
	logger = logger.With().Str("component", "feed").Logger()
	listener := pq.NewListener(dsn, 2*time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		switch ev {
		case pq.ListenerEventDisconnected:
			logger.Warn().Err(err).Msg("listener disconnected")
		case pq.ListenerEventReconnected:
			logger.Info().Msg("listener reconnected")
		case pq.ListenerEventConnectionAttemptFailed:
			logger.Error().Err(err).Msg("listener connection attempt failed")
		}
	})
	if err := listener.Listen(NotifyChannel); err != nil {
		_ = listener.Close()
		return nil, fmt.Errorf("listen %s: %w", NotifyChannel, err)
	}
	f := &Feed{
		hub:      newHub(lister, 15*time.Second),
		listener: listener,
		logger:   logger,
		done:     make(chan struct{}),
	}
	f.wg.Add(1)
	go f.run()
	return f, nil
}

func (f *Feed) run() {
	defer f.wg.Done()
	ping := time.NewTicker(90 * time.Second)
	defer ping.Stop()
	for {
		select {
		case <-f.done:
			return
		case n, ok := <-f.listener.Notify:
			if !ok {
				return
			}
			if n == nil {
				for _, label := range f.hub.labels() {
					f.hub.refresh(label)
				}
				continue
			}
			f.hub.refresh(n.Extra)
		case <-ping.C:
			if err := f.listener.Ping(); err != nil {
				f.logger.Warn().Err(err).Msg("listener ping failed")
			}
		}
	}
}

// Watch delivers the current rows of p and then a fresh snapshot after every
// committed change. ctx bounds only the initial read.
func (f *Feed) Watch(ctx context.Context, p domain.Partition, onSnapshot domain.SnapshotFunc, onError func(error)) (func(), error) {
	return f.hub.watch(ctx, p, onSnapshot, onError)
}

// Close stops the listener.
func (f *Feed) Close() error {
	close(f.done)
	err := f.listener.Close()
	f.wg.Wait()
	return err
}
