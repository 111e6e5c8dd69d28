package eventline

import (
	"fmt"
	"time"

	"k8s.io/apimachinery/pkg/types"
	"k8s.io/apimachinery/pkg/watch"
	"sigs.k8s.io/controller-runtime/pkg/client"
)

// Event is a single watch notification for a custom resource, paired with
// the retry execution that tracks its dispatch attempts.
//
// Events are immutable once built; they live inside the scheduler's store
// until coalesced, dispatched, or discarded.
type Event struct {
	// Action is the watch action that produced this event
	// (watch.Added, watch.Modified or watch.Deleted).
	Action watch.EventType

	// Resource is the full resource payload as observed on the watch.
	Resource client.Object

	retry RetryExecution
}

func newEvent(action watch.EventType, resource client.Object, retry Retry) *Event {
	return &Event{
		Action:   action,
		Resource: resource,
		retry:    retry.NewExecution(),
	}
}

// UID returns the server-assigned UID under which events for the same
// logical resource are coalesced.
func (e *Event) UID() types.UID {
	return e.Resource.GetUID()
}

// nextDelay advances the event's retry execution. ok is false once the
// retry budget is exhausted.
func (e *Event) nextDelay() (delay time.Duration, ok bool) {
	return e.retry.NextDelay()
}

// markedForDeletion reports whether the API server has set the resource's
// deletion timestamp.
func (e *Event) markedForDeletion() bool {
	return e.Resource.GetDeletionTimestamp() != nil
}

// String renders the event for log output.
func (e *Event) String() string {
	return fmt.Sprintf("%s %s/%s uid=%s generation=%d resourceVersion=%s",
		e.Action,
		e.Resource.GetNamespace(), e.Resource.GetName(),
		e.Resource.GetUID(),
		e.Resource.GetGeneration(),
		e.Resource.GetResourceVersion())
}
