package services

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"gamefeed-service/logger"
	"gamefeed-service/models"
)

// OpsFeed is the operations-health delta source. Every dispatch loop
// subscribes and drains its own buffer on the dispatch cadence; ops
// events share the game feed's filtering and serialization path.
type OpsFeed interface {
	Subscribe() *OpsSubscription
	Close() error
}

// OpsSubscription is one consumer's buffered view of the feed.
type OpsSubscription struct {
	feed *ChannelOpsFeed
	ch   chan models.Event
}

// Poll returns whatever ops events accumulated since the last poll.
func (s *OpsSubscription) Poll() []models.Event {
	var events []models.Event
	for {
		select {
		case event, ok := <-s.ch:
			if !ok {
				return events
			}
			events = append(events, event)
		default:
			return events
		}
	}
}

// Close detaches the subscription from the feed.
func (s *OpsSubscription) Close() {
	s.feed.unsubscribe(s)
}

// ChannelOpsFeed fans ops events out to each subscriber's own buffered
// channel, the in-memory stand-in for a real queue. A full subscriber
// buffer drops the event for that subscriber only.
type ChannelOpsFeed struct {
	mu          sync.Mutex
	subscribers map[*OpsSubscription]bool
	closed      bool
}

func NewChannelOpsFeed() *ChannelOpsFeed {
	return &ChannelOpsFeed{
		subscribers: make(map[*OpsSubscription]bool),
	}
}

func (f *ChannelOpsFeed) Subscribe() *OpsSubscription {
	sub := &OpsSubscription{
		feed: f,
		ch:   make(chan models.Event, 256),
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		close(sub.ch)
		return sub
	}
	f.subscribers[sub] = true
	return sub
}

func (f *ChannelOpsFeed) unsubscribe(sub *OpsSubscription) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subscribers[sub] {
		delete(f.subscribers, sub)
		close(sub.ch)
	}
}

// Publish delivers one ops event to every subscriber. Never blocks.
func (f *ChannelOpsFeed) Publish(event models.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for sub := range f.subscribers {
		select {
		case sub.ch <- event:
		default:
			logger.Errorf("[OpsFeed] subscriber buffer full, dropping %s", event.Kind)
		}
	}
}

func (f *ChannelOpsFeed) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil
	}
	f.closed = true
	for sub := range f.subscribers {
		delete(f.subscribers, sub)
		close(sub.ch)
	}
	return nil
}

// OpsMonitor turns component health transitions into ops events.
// Components report healthy/failing after each cycle; only the
// transitions publish, steady state stays quiet.
type OpsMonitor struct {
	feed    *ChannelOpsFeed
	mu      sync.Mutex
	failing map[string]bool
}

func NewOpsMonitor(feed *ChannelOpsFeed) *OpsMonitor {
	return &OpsMonitor{
		feed:    feed,
		failing: make(map[string]bool),
	}
}

// ReportFailure publishes OPS_INCIDENT on the first failure of a
// component; repeated failures of an already-failing component are
// absorbed.
func (m *OpsMonitor) ReportFailure(component, detail string) {
	m.mu.Lock()
	alreadyFailing := m.failing[component]
	m.failing[component] = true
	m.mu.Unlock()

	if alreadyFailing {
		return
	}
	logger.Errorf("[OpsMonitor] %s failing: %s", component, detail)
	m.feed.Publish(opsEvent(models.KindOpsIncident, component, detail))
}

// ReportHealthy publishes OPS_RECOVERY when a previously failing
// component comes back.
func (m *OpsMonitor) ReportHealthy(component string) {
	m.mu.Lock()
	wasFailing := m.failing[component]
	delete(m.failing, component)
	m.mu.Unlock()

	if !wasFailing {
		return
	}
	logger.Printf("[OpsMonitor] %s recovered", component)
	m.feed.Publish(opsEvent(models.KindOpsRecovery, component, "recovered"))
}

func opsEvent(kind models.EventKind, component, detail string) models.Event {
	payload := models.OpsPayload{
		Component: component,
		Detail:    detail,
	}
	return models.Event{
		ID:        uuid.NewString(),
		Kind:      kind,
		Timestamp: time.Now(),
		Source:    models.EventSourceOps,
		Priority:  models.PriorityFor(kind),
		Payload:   models.MarshalPayload(payload),
	}
}
