package eventline

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/apimachinery/pkg/watch"
	"sigs.k8s.io/controller-runtime/pkg/client"
)

// EventProcessor consumes a single event synchronously. The Dispatcher is
// the production implementation.
type EventProcessor interface {
	// HandleEvent reconciles the resource. A non-nil error puts the event
	// on the scheduler's retry path.
	HandleEvent(ctx context.Context, action watch.EventType, resource client.Object) error
}

// Scheduler ingests watch events and converts them into serialized,
// retry-aware dispatches. It guarantees:
//
//   - at most one in-flight reconciliation per resource UID;
//   - bursts for the same resource coalesce into a single pending event
//     carrying the latest payload;
//   - with generation-aware processing, metadata-only changes (generation
//     not increased) are not dispatched on their own; such an event can
//     still replace a pending event, become the refreshed payload of a
//     retry, or pass as a DELETED event;
//   - failed dispatches are retried with the event's backoff, unless a
//     newer event supersedes the failed one.
//
// A single coarse mutex guards every store transition: ingress, scheduling
// and completion. The mutex is never held across the user controller, the
// replace client, or a timer wait - only across O(1) store updates.
type Scheduler struct {
	mu sync.Mutex

	store     *eventStore
	executor  *scheduledExecutor
	processor EventProcessor
	retry     Retry

	// timers holds the cancel function for the armed timer of each
	// in-flight identity, so cleanup can disarm it.
	timers map[types.UID]func() bool

	generationAware bool

	baseCtx context.Context
	log     logr.Logger
	metrics *Metrics

	// exit terminates the process on unrecoverable watch closure.
	// Replaced in tests.
	exit func(code int)
}

// NewScheduler creates a Scheduler dispatching to processor. A fresh
// RetryExecution from retry is attached to every ingested event. With
// generationAware set, events whose generation does not exceed the highest
// generation already admitted for the identity are dropped, unless they
// replace a pending event or are DELETED events.
func NewScheduler(processor EventProcessor, retry Retry, generationAware bool, log logr.Logger) *Scheduler {
	return &Scheduler{
		store:           newEventStore(),
		executor:        newScheduledExecutor(),
		processor:       processor,
		retry:           retry,
		timers:          make(map[types.UID]func() bool),
		generationAware: generationAware,
		baseCtx:         context.Background(),
		log:             log,
		exit:            os.Exit,
	}
}

// WithMetrics attaches a metrics bundle. Nil leaves the scheduler unmetered.
func (s *Scheduler) WithMetrics(m *Metrics) *Scheduler {
	s.metrics = m
	return s
}

// WithContext sets the context passed to the processor for every dispatch.
// Defaults to context.Background.
func (s *Scheduler) WithContext(ctx context.Context) *Scheduler {
	s.baseCtx = ctx
	return s
}

// WithExitFunc replaces the process-exit hook invoked on terminal watch
// closure. Defaults to os.Exit; replace it in tests.
func (s *Scheduler) WithExitFunc(exit func(code int)) *Scheduler {
	s.exit = exit
	return s
}

// OnEvent implements the watch sink. Malformed notifications (Error
// actions, nil payloads, missing UID) are logged and skipped; they never
// crash the scheduler.
func (s *Scheduler) OnEvent(action watch.EventType, resource client.Object) {
	if action == watch.Error {
		s.log.V(1).Info("skipping error action from watch")
		s.metrics.recordEventSkipped(skipReasonErrorAction)
		return
	}
	if resource == nil || resource.GetUID() == "" {
		s.log.Info("skipping malformed watch event without uid", "action", action)
		s.metrics.recordEventSkipped(skipReasonMalformed)
		return
	}

	s.metrics.recordEventReceived(action)
	event := newEvent(action, resource, s.retry)
	s.log.V(1).Info("event received", "event", event.String())
	s.enqueue(event)
}

// enqueue runs the ingress decision procedure. The whole path is one
// critical section.
func (s *Scheduler) enqueue(event *Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	uid := event.UID()

	// The server only emits DELETED after every finalizer is removed, so
	// the delete path already ran on the earlier MODIFIED event that set
	// the deletion timestamp. Drop all state for the identity; dispatching
	// here would run the controller's delete callback a second time.
	if event.Action == watch.Deleted && event.markedForDeletion() {
		s.cancelTimer(uid)
		s.store.cleanup(uid)
		s.metrics.recordEventSkipped(skipReasonFinalizerHonored)
		s.log.V(1).Info("deletion timestamp present on delete, finalizer was honored, cleaning up", "event", event.String())
		return
	}

	if s.generationAware {
		// Kept even for events that are filtered below: a retry of a stale
		// payload would hit an optimistic-lock conflict, and this copy is
		// what the failure path refreshes from.
		s.store.addLastReceived(event)
	}

	// An identity with a pending slot always takes the newer payload, even
	// when the generation did not increase.
	if s.store.containsNotScheduled(uid) {
		s.store.addOrReplaceNotScheduled(event)
		s.metrics.recordEventCoalesced()
		s.log.V(1).Info("replaced pending event with newer payload", "event", event.String())
		return
	}

	// Generation semantics do not apply on the delete path: a DELETED
	// event without a deletion timestamp means our finalizer never took
	// hold, and it must still reach the dispatcher for opportunistic
	// cleanup.
	if s.generationAware && event.Action != watch.Deleted && !s.store.hasLargerGeneration(event) {
		s.metrics.recordEventSkipped(skipReasonGenerationFilter)
		s.log.V(1).Info("skipping event, generation not larger than last stored",
			"generation", event.Resource.GetGeneration(),
			"lastStored", s.store.getLastGeneration(uid))
		return
	}

	if s.store.containsUnderProcessing(uid) {
		s.store.addOrReplaceNotScheduled(event)
		s.log.V(1).Info("resource busy, parking event", "event", event.String())
		return
	}

	s.scheduleEventForExecution(event)
}

// scheduleEventForExecution moves the event into the in-flight slot and
// arms its timer. Caller must hold s.mu.
func (s *Scheduler) scheduleEventForExecution(event *Event) {
	delay, ok := event.nextDelay()
	if !ok {
		s.metrics.recordEventSkipped(skipReasonRetryExhausted)
		s.log.Info("event retry limit reached, discarding", "event", event.String())
		return
	}

	s.store.addUnderProcessing(event)
	s.timers[event.UID()] = s.executor.schedule(delay, func() {
		s.executeEvent(event)
	})
	s.log.V(1).Info("scheduled event for execution", "event", event.String(), "delay", delay)
}

// executeEvent runs on the executor worker, outside the mutex.
func (s *Scheduler) executeEvent(event *Event) {
	start := time.Now()
	err := s.processor.HandleEvent(s.baseCtx, event.Action, event.Resource)
	s.metrics.recordReconcile(time.Since(start), outcomeFor(err))

	if err != nil {
		s.log.Error(err, "event processing failed", "event", event.String())
		s.eventProcessingFailed(event)
		return
	}
	s.eventProcessingFinishedSuccessfully(event)
}

// eventProcessingFinishedSuccessfully releases the in-flight slot. A parked
// event, if any, is promoted and scheduled immediately with its own fresh
// retry execution.
func (s *Scheduler) eventProcessingFinishedSuccessfully(event *Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	uid := event.UID()
	delete(s.timers, uid)
	s.store.removeUnderProcessing(uid)
	if s.store.containsNotScheduled(uid) {
		s.log.V(1).Info("promoting pending event after success", "uid", uid)
		s.scheduleEventForExecution(s.store.removeNotScheduled(uid))
		return
	}
	if event.Action == watch.Deleted {
		// Terminal processing with no successor; the resource is gone, so
		// keeping generation memory would only leak.
		s.store.cleanup(uid)
	}
}

// eventProcessingFailed releases the in-flight slot and decides the retry.
// A parked newer event always wins over the failed one - a newer spec
// supersedes the event that failed, retry clock included. Otherwise, with
// generation-aware processing the payload is refreshed from the last
// received event when the resource has moved on (retrying the stale copy
// would only reproduce the optimistic-lock conflict); with it off, the
// failed event is rescheduled as-is and its retry execution provides the
// backoff.
func (s *Scheduler) eventProcessingFailed(event *Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	uid := event.UID()
	if !s.store.containsUnderProcessing(uid) {
		// The identity was cleaned up while this event was in flight.
		return
	}
	delete(s.timers, uid)
	s.store.removeUnderProcessing(uid)

	if s.store.containsNotScheduled(uid) {
		s.log.V(1).Info("promoting pending event after failure", "uid", uid)
		s.scheduleEventForExecution(s.store.removeNotScheduled(uid))
		return
	}

	retry := event
	if s.generationAware {
		retry = s.selectEventToRetry(event)
	}
	s.scheduleEventForExecution(retry)
	if s.store.containsUnderProcessing(uid) {
		s.metrics.recordRetryScheduled()
	}
}

// selectEventToRetry refreshes the retry payload when the last received
// event for the identity carries a different resourceVersion than the
// failed one. Caller must hold s.mu.
func (s *Scheduler) selectEventToRetry(event *Event) *Event {
	last := s.store.getLastReceived(event.UID())
	if last != nil && last.Resource.GetResourceVersion() != event.Resource.GetResourceVersion() {
		s.log.V(1).Info("retrying with refreshed payload",
			"failedResourceVersion", event.Resource.GetResourceVersion(),
			"refreshedResourceVersion", last.Resource.GetResourceVersion())
		return last
	}
	return event
}

// cancelTimer disarms the identity's pending timer, if armed. A timer that
// already fired is left alone; the completion callback will find the store
// empty and do nothing. Caller must hold s.mu.
func (s *Scheduler) cancelTimer(uid types.UID) {
	if cancel, ok := s.timers[uid]; ok {
		cancel()
		delete(s.timers, uid)
	}
}

// OnClose implements the watch sink for terminal connection faults. The
// watch source is expected to reconnect transparently during normal
// operation; OnClose fires only for unrecoverable errors, and rebuilding
// the scheduler's in-memory state requires a full re-list, so the process
// exits nonzero.
func (s *Scheduler) OnClose(err error) {
	s.log.Error(err, "watch connection closed, exiting")
	s.executor.shutdown()
	s.exit(1)
}
