package eventline

import "k8s.io/apimachinery/pkg/types"

// eventStore is the indexed in-memory buffer of pending and in-flight
// events, keyed by resource UID. Per identity it holds at most one event
// under processing, at most one not-yet-scheduled event (the coalescing
// slot), the highest generation ever admitted, and the most recently
// received payload for generation-aware retry refresh.
//
// The store is a passive data structure: every mutation happens under the
// scheduler's mutex, the store itself does no locking.
type eventStore struct {
	underProcessing map[types.UID]*Event
	notScheduled    map[types.UID]*Event
	lastGeneration  map[types.UID]int64
	lastReceived    map[types.UID]*Event
}

func newEventStore() *eventStore {
	return &eventStore{
		underProcessing: make(map[types.UID]*Event),
		notScheduled:    make(map[types.UID]*Event),
		lastGeneration:  make(map[types.UID]int64),
		lastReceived:    make(map[types.UID]*Event),
	}
}

// cleanup removes every slot for the identity. Called when a DELETED event
// with a deletion timestamp arrives: the API server has already honored
// finalizer removal, so keeping state would only leak memory.
func (s *eventStore) cleanup(uid types.UID) {
	delete(s.underProcessing, uid)
	delete(s.notScheduled, uid)
	delete(s.lastGeneration, uid)
	delete(s.lastReceived, uid)
}

func (s *eventStore) containsUnderProcessing(uid types.UID) bool {
	_, ok := s.underProcessing[uid]
	return ok
}

func (s *eventStore) containsNotScheduled(uid types.UID) bool {
	_, ok := s.notScheduled[uid]
	return ok
}

// addUnderProcessing promotes the event to in-flight and bumps the last
// stored generation.
func (s *eventStore) addUnderProcessing(e *Event) {
	s.underProcessing[e.UID()] = e
	s.updateLastGeneration(e)
}

// addOrReplaceNotScheduled overwrites the coalescing slot. The generation
// is bumped as well so that later events carrying the same generation are
// dropped by the admission filter.
func (s *eventStore) addOrReplaceNotScheduled(e *Event) {
	s.notScheduled[e.UID()] = e
	s.updateLastGeneration(e)
}

func (s *eventStore) removeUnderProcessing(uid types.UID) *Event {
	e := s.underProcessing[uid]
	delete(s.underProcessing, uid)
	return e
}

func (s *eventStore) removeNotScheduled(uid types.UID) *Event {
	e := s.notScheduled[uid]
	delete(s.notScheduled, uid)
	return e
}

// addLastReceived caches the most recent payload for the identity,
// regardless of generation. Used to refresh stale retry payloads.
func (s *eventStore) addLastReceived(e *Event) {
	s.lastReceived[e.UID()] = e
}

func (s *eventStore) getLastReceived(uid types.UID) *Event {
	return s.lastReceived[uid]
}

// hasLargerGeneration reports whether the event's generation exceeds the
// highest generation admitted so far. Identities never seen admit
// everything.
func (s *eventStore) hasLargerGeneration(e *Event) bool {
	last, ok := s.lastGeneration[e.UID()]
	if !ok {
		return true
	}
	return e.Resource.GetGeneration() > last
}

func (s *eventStore) getLastGeneration(uid types.UID) int64 {
	return s.lastGeneration[uid]
}

func (s *eventStore) updateLastGeneration(e *Event) {
	gen := e.Resource.GetGeneration()
	if last, ok := s.lastGeneration[e.UID()]; !ok || gen > last {
		s.lastGeneration[e.UID()] = gen
	}
}
