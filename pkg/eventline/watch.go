package eventline

import (
	"context"
	"errors"

	"github.com/go-logr/logr"
	"k8s.io/apimachinery/pkg/watch"
	"sigs.k8s.io/controller-runtime/pkg/client"
)

// WatchSource opens the notification stream for a registered custom
// resource. Implementations are expected to reconnect transparently and
// re-emit state during normal operation (client-go's RetryWatcher does
// this); the returned stream terminating is treated as unrecoverable.
type WatchSource interface {
	Watch(ctx context.Context, namespace string) (watch.Interface, error)
}

// EventSink consumes watch notifications. The Scheduler is the production
// implementation.
type EventSink interface {
	// OnEvent delivers one notification.
	OnEvent(action watch.EventType, resource client.Object)

	// OnClose reports terminal failure of the watch connection.
	OnClose(err error)
}

// RunWatch pumps the source's stream into the sink until ctx is cancelled
// or the stream terminates. Termination other than ctx cancellation is
// reported through OnClose, which for a Scheduler exits the process: queue
// state is process-local and only a full re-list can rebuild it.
func RunWatch(ctx context.Context, source WatchSource, namespace string, sink EventSink, log logr.Logger) {
	w, err := source.Watch(ctx, namespace)
	if err != nil {
		sink.OnClose(err)
		return
	}
	defer w.Stop()

	for {
		select {
		case <-ctx.Done():
			log.V(1).Info("watch stopped", "reason", ctx.Err())
			return
		case ev, ok := <-w.ResultChan():
			if !ok {
				sink.OnClose(errors.New("watch channel closed"))
				return
			}
			obj, ok := ev.Object.(client.Object)
			if !ok {
				// Error notifications carry a *metav1.Status here; the
				// sink only consumes resources.
				log.V(1).Info("dropping watch event with non-resource payload", "type", ev.Type)
				continue
			}
			sink.OnEvent(ev.Type, obj)
		}
	}
}
