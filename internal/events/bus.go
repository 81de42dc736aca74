// ABOUTME: Multi-consumer broadcast bus decoupling ingestion from its observers
// ABOUTME: Publish never blocks; per-feed order is preserved and stale progress is coalesced

package events

import (
	"sync"

	"github.com/charmbracelet/log"
)

// queue length at which a subscriber is considered to be lagging
const lagWarnThreshold = 1024

// Bus broadcasts ingestion events to any number of subscribers. Publishing
// is non-blocking: each subscriber owns a queue drained by its own dispatch
// goroutine, so a slow or absent consumer never stalls the orchestrator.
type Bus struct {
	mu     sync.Mutex
	subs   map[*Subscription]struct{}
	closed bool
	logger *log.Logger
}

// NewBus creates an empty event bus.
func NewBus() *Bus {
	return &Bus{
		subs:   make(map[*Subscription]struct{}),
		logger: log.Default().WithPrefix("events"),
	}
}

// Subscribe registers a new consumer and returns its subscription. The
// buffer sizes the delivery channels; the per-subscriber queue behind them
// is what guarantees publish never blocks. Subscribers joining mid-run see
// only events produced from this point forward.
func (b *Bus) Subscribe(buffer int) *Subscription {
	if buffer < 0 {
		buffer = 0
	}
	s := &Subscription{
		bus:      b,
		progress: make(chan Progress, buffer),
		articles: make(chan ArticleArrived, buffer),
		stop:     make(chan struct{}),
	}
	s.cond = sync.NewCond(&s.mu)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		s.markClosed()
		close(s.progress)
		close(s.articles)
		return s
	}
	b.subs[s] = struct{}{}
	go s.dispatch()
	return s
}

// PublishProgress broadcasts a progress event. A queued progress event for
// the same feed that has not been delivered yet is superseded by this one.
func (b *Bus) PublishProgress(p Progress) {
	for _, s := range b.snapshot() {
		s.enqueueProgress(p)
	}
}

// PublishArticle broadcasts an article-arrived event to every subscriber.
func (b *Bus) PublishArticle(a ArticleArrived) {
	for _, s := range b.snapshot() {
		s.enqueueArticle(a)
	}
}

// Close unsubscribes all consumers and rejects future subscriptions.
func (b *Bus) Close() {
	b.mu.Lock()
	subs := make([]*Subscription, 0, len(b.subs))
	for s := range b.subs {
		subs = append(subs, s)
	}
	b.closed = true
	b.mu.Unlock()

	for _, s := range subs {
		s.Unsubscribe()
	}
}

func (b *Bus) snapshot() []*Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := make([]*Subscription, 0, len(b.subs))
	for s := range b.subs {
		subs = append(subs, s)
	}
	return subs
}

func (b *Bus) remove(s *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs, s)
}

// queuedEvent is one pending delivery; exactly one field is set.
type queuedEvent struct {
	progress *Progress
	article  *ArticleArrived
}

// Subscription is the handle returned by Bus.Subscribe. Consumers receive
// from Progress() and Articles() and call Unsubscribe when done.
type Subscription struct {
	bus      *Bus
	progress chan Progress
	articles chan ArticleArrived

	mu     sync.Mutex
	cond   *sync.Cond
	queue  []queuedEvent
	closed bool
	warned bool

	stop     chan struct{}
	stopOnce sync.Once
}

// Progress returns the channel of run progress events. The channel is closed
// after Unsubscribe.
func (s *Subscription) Progress() <-chan Progress {
	return s.progress
}

// Articles returns the channel of article-arrived events. The channel is
// closed after Unsubscribe.
func (s *Subscription) Articles() <-chan ArticleArrived {
	return s.articles
}

// Unsubscribe detaches the consumer. Pending events are discarded and the
// delivery channels are closed. Safe to call more than once.
func (s *Subscription) Unsubscribe() {
	s.stopOnce.Do(func() {
		s.bus.remove(s)
		s.markClosed()
		close(s.stop)
	})
}

func (s *Subscription) markClosed() {
	s.mu.Lock()
	s.closed = true
	s.queue = nil
	s.mu.Unlock()
	if s.cond != nil {
		s.cond.Signal()
	}
}

func (s *Subscription) enqueueProgress(p Progress) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	// Supersede: drop the pending progress event for the same feed, keep the
	// new one at the tail so per-feed order matches production order.
	for i := range s.queue {
		if s.queue[i].progress != nil && s.queue[i].progress.FeedID == p.FeedID {
			s.queue = append(s.queue[:i], s.queue[i+1:]...)
			break
		}
	}
	s.queue = append(s.queue, queuedEvent{progress: &p})
	s.warnIfLagging()
	s.cond.Signal()
}

func (s *Subscription) enqueueArticle(a ArticleArrived) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.queue = append(s.queue, queuedEvent{article: &a})
	s.warnIfLagging()
	s.cond.Signal()
}

// warnIfLagging logs once when a consumer stops draining. Article events are
// never dropped, so the only remedy is the consumer catching up.
func (s *Subscription) warnIfLagging() {
	if !s.warned && len(s.queue) > lagWarnThreshold {
		s.warned = true
		s.bus.logger.Warn("subscriber lagging", "queued", len(s.queue))
	}
}

// dispatch drains the queue into the delivery channels until unsubscribed.
func (s *Subscription) dispatch() {
	for {
		s.mu.Lock()
		for len(s.queue) == 0 && !s.closed {
			s.cond.Wait()
		}
		if s.closed {
			s.mu.Unlock()
			close(s.progress)
			close(s.articles)
			return
		}
		ev := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()

		if ev.progress != nil {
			select {
			case s.progress <- *ev.progress:
			case <-s.stop:
				close(s.progress)
				close(s.articles)
				return
			}
		} else {
			select {
			case s.articles <- *ev.article:
			case <-s.stop:
				close(s.progress)
				close(s.articles)
				return
			}
		}
	}
}
