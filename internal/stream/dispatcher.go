package stream

import (
	"context"
	"sync"
	"time"

	"github.com/dochub-labs/dochub/backend/internal/catalog"
)

// Collection names of the two replicated snapshot feeds.
const (
	CollectionSections = "sections"
	CollectionLinks    = "links"
)

// SectionsEvent delivers a full snapshot of the sections collection, or a
// subscription-level failure when Err is set.
type SectionsEvent struct {
	Sections  []catalog.Section
	Err       error
	Timestamp time.Time
}

// ResourcesEvent delivers a full snapshot of the links collection, or a
// subscription-level failure when Err is set.
type ResourcesEvent struct {
	Resources []catalog.Resource
	Err       error
	Timestamp time.Time
}

// Dispatcher fans full-collection snapshots out to subscribers. Each write to
// the catalog re-publishes the affected collection in full; subscribers are
// expected to replace, never patch, whatever state they hold.
type Dispatcher struct {
	mu           sync.RWMutex
	sectionSubs  map[int64]chan SectionsEvent
	resourceSubs map[int64]chan ResourcesEvent
	nextID       int64
	bufferSize   int
	clock        func() time.Time
}

// NewDispatcher constructs a dispatcher with a small per-subscriber buffer.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		sectionSubs:  make(map[int64]chan SectionsEvent),
		resourceSubs: make(map[int64]chan ResourcesEvent),
		bufferSize:   16,
		clock:        time.Now,
	}
}

// SubscribeSections registers a subscriber on the sections feed. The returned
// cancel func releases the subscription; it is also released when ctx ends.
// No event is delivered after release.
func (d *Dispatcher) SubscribeSections(ctx context.Context) (<-chan SectionsEvent, func()) {
	stream := make(chan SectionsEvent, d.bufferSize)
	id := d.nextSequence()

	d.mu.Lock()
	d.sectionSubs[id] = stream
	d.mu.Unlock()

	cancel := func() {
		d.mu.Lock()
		delete(d.sectionSubs, id)
		d.mu.Unlock()
	}
	go func() {
		<-ctx.Done()
		cancel()
	}()
	return stream, cancel
}

// SubscribeResources registers a subscriber on the links feed.
func (d *Dispatcher) SubscribeResources(ctx context.Context) (<-chan ResourcesEvent, func()) {
	stream := make(chan ResourcesEvent, d.bufferSize)
	id := d.nextSequence()

	d.mu.Lock()
	d.resourceSubs[id] = stream
	d.mu.Unlock()

	cancel := func() {
		d.mu.Lock()
		delete(d.resourceSubs, id)
		d.mu.Unlock()
	}
	go func() {
		<-ctx.Done()
		cancel()
	}()
	return stream, cancel
}

// PublishSections broadcasts a sections snapshot to every subscriber.
func (d *Dispatcher) PublishSections(sections []catalog.Section) {
	d.broadcastSections(SectionsEvent{Sections: sections, Timestamp: d.clock()})
}

// PublishSectionsError signals a failure of the sections feed itself.
func (d *Dispatcher) PublishSectionsError(err error) {
	d.broadcastSections(SectionsEvent{Err: err, Timestamp: d.clock()})
}

// PublishResources broadcasts a links snapshot to every subscriber.
func (d *Dispatcher) PublishResources(resources []catalog.Resource) {
	d.broadcastResources(ResourcesEvent{Resources: resources, Timestamp: d.clock()})
}

// PublishResourcesError signals a failure of the links feed itself.
func (d *Dispatcher) PublishResourcesError(err error) {
	d.broadcastResources(ResourcesEvent{Err: err, Timestamp: d.clock()})
}

func (d *Dispatcher) broadcastSections(event SectionsEvent) {
	d.mu.RLock()
	streams := make([]chan SectionsEvent, 0, len(d.sectionSubs))
	for _, stream := range d.sectionSubs {
		streams = append(streams, stream)
	}
	d.mu.RUnlock()

	for _, stream := range streams {
		select {
		case stream <- event:
		default:
		}
	}
}

func (d *Dispatcher) broadcastResources(event ResourcesEvent) {
	d.mu.RLock()
	streams := make([]chan ResourcesEvent, 0, len(d.resourceSubs))
	for _, stream := range d.resourceSubs {
		streams = append(streams, stream)
	}
	d.mu.RUnlock()

	for _, stream := range streams {
		select {
		case stream <- event:
		default:
		}
	}
}

func (d *Dispatcher) nextSequence() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	return d.nextID
}
