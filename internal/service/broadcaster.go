package service

import (
	"sync"

	"github.com/google/uuid"
)

// Number of chunks buffered per subscriber. A subscriber that falls
// further behind than this starts dropping chunks; the durable build
// log remains the complete record.
const subscriberBuffer = 256

// Broadcaster fans out a running build's output chunks to any number of
// subscribed observers. A build is tracked from the moment its pending
// record exists until its executor reports completion, so a subscription
// opened before the first chunk is emitted misses nothing. Completion
// closes every subscriber channel; the closed channel is the sentinel.
type Broadcaster struct {
	mu      sync.Mutex
	builds  map[string]map[string]chan string
	metrics Recorder
}

func NewBroadcaster(metrics Recorder) *Broadcaster {
	if metrics == nil {
		metrics = NoopRecorder{}
	}
	return &Broadcaster{
		builds:  make(map[string]map[string]chan string),
		metrics: metrics,
	}
}

// Track registers a build before its executor starts. Must be called
// before the first Publish for the build.
func (b *Broadcaster) Track(buildID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.builds[buildID]; !ok {
		b.builds[buildID] = make(map[string]chan string)
	}
}

// Subscribe attaches an observer to a tracked build. It reports false
// when the build is unknown or already complete; the caller should then
// read the durable log instead.
func (b *Broadcaster) Subscribe(buildID string) (string, <-chan string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subscribers, ok := b.builds[buildID]
	if !ok {
		return "", nil, false
	}
	id := uuid.NewString()
	ch := make(chan string, subscriberBuffer)
	subscribers[id] = ch
	b.metrics.AddStreamSubscribers(1)
	return id, ch, true
}

// Unsubscribe detaches a single observer. The underlying build and any
// other subscribers are unaffected.
func (b *Broadcaster) Unsubscribe(buildID, subscriberID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subscribers, ok := b.builds[buildID]
	if !ok {
		return
	}
	ch, ok := subscribers[subscriberID]
	if !ok {
		return
	}
	close(ch)
	delete(subscribers, subscriberID)
	b.metrics.AddStreamSubscribers(-1)
}

// Publish delivers one chunk to every current subscriber of the build.
// Each subscriber gets an independent copy; a full subscriber buffer
// drops the chunk for that subscriber only.
func (b *Broadcaster) Publish(buildID, chunk string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.builds[buildID] {
		select {
		case ch <- chunk:
		default:
		}
	}
}

// Complete closes every subscriber channel of the build and stops
// tracking it. Late subscribers are told the build is already complete.
func (b *Broadcaster) Complete(buildID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subscribers, ok := b.builds[buildID]
	if !ok {
		return
	}
	for _, ch := range subscribers {
		close(ch)
	}
	if n := len(subscribers); n > 0 {
		b.metrics.AddStreamSubscribers(-n)
	}
	delete(b.builds, buildID)
}
