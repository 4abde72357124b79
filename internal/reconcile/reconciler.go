// Package reconcile merges the two independently updating snapshot feeds of
// the catalog (sections and links) into one consistent nested view.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/dochub-labs/dochub/backend/internal/catalog"
	"github.com/dochub-labs/dochub/backend/internal/stream"
	"go.uber.org/zap"
)

// State describes what the reconciler currently knows about its feeds.
type State int

const (
	// StateLoading means no section snapshot has been observed yet. An empty
	// aggregate list in this state means "no data yet", not "no sections".
	StateLoading State = iota
	// StateLive means the view reflects the latest observed snapshots.
	StateLive
	// StateFailed means a subscription reported an error. The view is emptied
	// because stale data is worse than no data for an administrative tool.
	StateFailed
)

// ErrConnectionLost distinguishes a failed subscription from a legitimately
// empty catalog.
var ErrConnectionLost = errors.New("reconcile: catalog subscription failed")

// Reconciler owns the aggregated section list. Both feeds deliver full
// snapshots; every apply replaces state wholesale, so a late or out-of-order
// event can never leave a partially patched view behind.
type Reconciler struct {
	mu       sync.Mutex
	sections []catalog.Section
	attached map[string][]catalog.Resource
	state    State
	cause    error
	closed   bool
	done     chan struct{}
	logger   *zap.Logger
}

// New constructs an empty reconciler in the Loading state.
func New(logger *zap.Logger) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{
		attached: make(map[string][]catalog.Resource),
		state:    StateLoading,
		done:     make(chan struct{}),
		logger:   logger,
	}
}

// ApplySections replaces the known section set with the snapshot. Resource
// lists already attached to surviving section ids are preserved so a section
// reload does not flash "0 resources" while the links feed catches up; ids
// new to this snapshot start with an empty list.
func (r *Reconciler) ApplySections(snapshot []catalog.Section) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}

	sections := make([]catalog.Section, len(snapshot))
	copy(sections, snapshot)
	sort.Slice(sections, func(i, j int) bool {
		return sections[i].Title < sections[j].Title
	})

	attached := make(map[string][]catalog.Resource, len(sections))
	for _, section := range sections {
		if links, ok := r.attached[section.ID]; ok {
			attached[section.ID] = links
		} else {
			attached[section.ID] = nil
		}
	}

	r.sections = sections
	r.attached = attached
	r.state = StateLive
	r.cause = nil
}

// ApplyResources regroups the full resource snapshot by owning section and
// reattaches the groups onto every currently known section, regardless of
// which resources actually changed. Resources referencing an unknown section
// are dropped silently: section deletion cascades asynchronously, so such
// orphans are expected and must never surface.
func (r *Reconciler) ApplyResources(snapshot []catalog.Resource) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed || r.state == StateFailed {
		return
	}

	grouped := make(map[string][]catalog.Resource)
	for _, resource := range snapshot {
		if resource.SectionID == "" {
			continue
		}
		grouped[resource.SectionID] = append(grouped[resource.SectionID], resource.Clone())
	}

	attached := make(map[string][]catalog.Resource, len(r.sections))
	orphans := 0
	for id := range grouped {
		if !r.knownSectionLocked(id) {
			orphans += len(grouped[id])
		}
	}
	for _, section := range r.sections {
		attached[section.ID] = grouped[section.ID]
	}

	if orphans > 0 {
		r.logger.Debug("dropped orphaned resources", zap.Int("count", orphans))
	}
	r.attached = attached
}

// FailSections records a failure of the sections subscription.
func (r *Reconciler) FailSections(err error) {
	r.fail(stream.CollectionSections, err)
}

// FailResources records a failure of the links subscription.
func (r *Reconciler) FailResources(err error) {
	r.fail(stream.CollectionLinks, err)
}

func (r *Reconciler) fail(collection string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}

	r.logger.Warn("catalog subscription failed",
		zap.String("collection", collection),
		zap.Error(err))

	r.sections = nil
	r.attached = make(map[string][]catalog.Resource)
	r.state = StateFailed
	r.cause = fmt.Errorf("%w: %s: %v", ErrConnectionLost, collection, err)
}

// Aggregates returns the current joined view. In the Failed state it returns
// the connection error and no data; Loading and Live states return the data
// observed so far, which is empty until the first section snapshot lands.
func (r *Reconciler) Aggregates() ([]catalog.SectionAggregate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == StateFailed {
		return nil, r.cause
	}

	aggregates := make([]catalog.SectionAggregate, 0, len(r.sections))
	for _, section := range r.sections {
		links := r.attached[section.ID]
		copied := make([]catalog.Resource, len(links))
		copy(copied, links)
		aggregates = append(aggregates, catalog.SectionAggregate{
			Section: section,
			Links:   copied,
		})
	}
	return aggregates, nil
}

// State reports the current feed state.
func (r *Reconciler) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Close tears the reconciler down. Every apply or fail arriving afterwards,
// including late callbacks from an already-cancelled subscription, is a
// no-op. Close is idempotent.
func (r *Reconciler) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	close(r.done)
}

// Run pumps both subscription channels into the reconciler until the context
// ends or Close is called, then releases both subscriptions together.
func (r *Reconciler) Run(ctx context.Context, sectionEvents <-chan stream.SectionsEvent, resourceEvents <-chan stream.ResourcesEvent, release func()) {
	if release != nil {
		defer release()
	}
	defer r.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.done:
			return
		case event, ok := <-sectionEvents:
			if !ok {
				sectionEvents = nil
				if resourceEvents == nil {
					return
				}
				continue
			}
			if event.Err != nil {
				r.FailSections(event.Err)
			} else {
				r.ApplySections(event.Sections)
			}
		case event, ok := <-resourceEvents:
			if !ok {
				resourceEvents = nil
				if sectionEvents == nil {
					return
				}
				continue
			}
			if event.Err != nil {
				r.FailResources(event.Err)
			} else {
				r.ApplyResources(event.Resources)
			}
		}
	}
}

func (r *Reconciler) knownSectionLocked(id string) bool {
	for _, section := range r.sections {
		if section.ID == id {
			return true
		}
	}
	return false
}
