package compositor

import "sync"

// Aggregator collects per-region snapshots into a single observable state
// array. The engine publishes a fresh array after every instance transition;
// consumers read the latest one or subscribe for pushes. Safe for concurrent
// use: publishing happens on the engine loop while HTTP handlers and
// subscribers read from their own goroutines.
type Aggregator struct {
	mu     sync.RWMutex
	latest []RegionSnapshot
	subs   []chan []RegionSnapshot
}

// NewAggregator returns an empty aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{}
}

// Publish replaces the consolidated view and fans it out to subscribers.
// Sends never block: a subscriber that falls behind misses intermediate
// arrays but always receives a later, complete one.
func (a *Aggregator) Publish(snapshots []RegionSnapshot) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.latest = snapshots
	for _, sub := range a.subs {
		select {
		case sub <- snapshots:
		default:
		}
	}
}

// Snapshot returns the most recently published state array.
func (a *Aggregator) Snapshot() []RegionSnapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]RegionSnapshot, len(a.latest))
	copy(out, a.latest)
	return out
}

// Subscribe registers a push channel with the given buffer.
func (a *Aggregator) Subscribe(buffer int) <-chan []RegionSnapshot {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan []RegionSnapshot, buffer)
	a.mu.Lock()
	defer a.mu.Unlock()
	a.subs = append(a.subs, ch)
	return ch
}
