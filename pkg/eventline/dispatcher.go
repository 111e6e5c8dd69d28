package eventline

import (
	"context"
	"fmt"

	"github.com/go-logr/logr"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/watch"
	"k8s.io/client-go/tools/record"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/controller/controllerutil"
)

// Dispatcher drives the finalizer protocol around a ResourceController.
// The reconciliation state is derived from the event, never stored:
//
//   - not marked for deletion: ensure the finalizer, call
//     CreateOrUpdateResource, persist when the controller returned a
//     resource or the finalizer was just added;
//   - marked for deletion with the finalizer present: call DeleteResource;
//     true removes the finalizer and persists, false leaves everything
//     untouched so a later event retriggers;
//   - marked for deletion without the finalizer: call DeleteResource
//     opportunistically (the finalizer never took hold, e.g. an
//     optimistic-lock error on the very first reconciliation) and persist
//     nothing.
//
// A Dispatcher holds no per-resource state; the scheduler's single-flight
// guarantee is what makes mutating the shared resource payload safe.
type Dispatcher struct {
	controller ResourceController
	finalizer  string
	client     ReplaceClient
	recorder   record.EventRecorder
	log        logr.Logger
}

// NewDispatcher creates a Dispatcher for the given controller. finalizer is
// the finalizer name to manage, typically ControllerConfiguration's
// derived one.
func NewDispatcher(controller ResourceController, finalizer string, replaceClient ReplaceClient, log logr.Logger) *Dispatcher {
	return &Dispatcher{
		controller: controller,
		finalizer:  finalizer,
		client:     replaceClient,
		log:        log,
	}
}

// WithEventRecorder attaches a Kubernetes event recorder. Reconcile
// failures emit Warning events, finalizer transitions Normal ones. Nil
// disables recording.
func (d *Dispatcher) WithEventRecorder(recorder record.EventRecorder) *Dispatcher {
	d.recorder = recorder
	return d
}

// HandleEvent implements EventProcessor.
func (d *Dispatcher) HandleEvent(ctx context.Context, action watch.EventType, resource client.Object) error {
	log := d.log.WithValues("namespace", resource.GetNamespace(), "name", resource.GetName())

	if action == watch.Deleted {
		// No deletion timestamp, or the scheduler would have swallowed
		// this: the resource was deleted before our finalizer ever took
		// hold. The resource is gone from the server, so cleanup runs
		// without any persistence.
		log.V(1).Info("resource deleted without finalizer, cleaning up opportunistically")
		if _, err := d.controller.DeleteResource(ctx, resource); err != nil {
			d.warn(resource, "CleanupFailed", err)
			return fmt.Errorf("deleteResource: %w", err)
		}
		return nil
	}

	if resource.GetDeletionTimestamp() != nil {
		return d.handleDelete(ctx, resource, log)
	}
	return d.handleCreateOrUpdate(ctx, resource, log)
}

func (d *Dispatcher) handleCreateOrUpdate(ctx context.Context, resource client.Object, log logr.Logger) error {
	// The finalizer goes on before the controller runs, so the controller
	// always observes the resource it will be persisted as.
	added := controllerutil.AddFinalizer(resource, d.finalizer)
	if added {
		log.V(1).Info("adding finalizer", "finalizer", d.finalizer)
	}

	updated, err := d.controller.CreateOrUpdateResource(ctx, resource)
	if err != nil {
		d.warn(resource, "ReconcileFailed", err)
		return fmt.Errorf("createOrUpdateResource: %w", err)
	}

	switch {
	case updated != nil:
		if err := d.client.ReplaceWithLock(ctx, updated); err != nil {
			d.warn(resource, "PersistFailed", err)
			return fmt.Errorf("replacing resource: %w", err)
		}
	case added:
		if err := d.client.ReplaceWithLock(ctx, resource); err != nil {
			d.warn(resource, "PersistFailed", err)
			return fmt.Errorf("persisting finalizer: %w", err)
		}
		d.normal(resource, "FinalizerAdded", "added finalizer "+d.finalizer)
	}
	return nil
}

func (d *Dispatcher) handleDelete(ctx context.Context, resource client.Object, log logr.Logger) error {
	if !controllerutil.ContainsFinalizer(resource, d.finalizer) {
		// We never managed to write our finalizer. Run cleanup
		// opportunistically; there is nothing of ours to persist.
		log.V(1).Info("resource marked for deletion without our finalizer, cleaning up opportunistically")
		if _, err := d.controller.DeleteResource(ctx, resource); err != nil {
			d.warn(resource, "CleanupFailed", err)
			return fmt.Errorf("deleteResource: %w", err)
		}
		return nil
	}

	done, err := d.controller.DeleteResource(ctx, resource)
	if err != nil {
		d.warn(resource, "CleanupFailed", err)
		return fmt.Errorf("deleteResource: %w", err)
	}
	if !done {
		// Controller vetoed the release; the finalizer stays and a later
		// event retriggers cleanup.
		log.V(1).Info("cleanup not finished, keeping finalizer", "finalizer", d.finalizer)
		return nil
	}

	controllerutil.RemoveFinalizer(resource, d.finalizer)
	if err := d.client.ReplaceWithLock(ctx, resource); err != nil {
		d.warn(resource, "PersistFailed", err)
		return fmt.Errorf("removing finalizer: %w", err)
	}
	d.normal(resource, "FinalizerRemoved", "removed finalizer "+d.finalizer)
	log.V(1).Info("finalizer removed, deletion can proceed")
	return nil
}

func (d *Dispatcher) warn(resource client.Object, reason string, err error) {
	if d.recorder != nil {
		d.recorder.Event(resource, corev1.EventTypeWarning, reason, err.Error())
	}
}

func (d *Dispatcher) normal(resource client.Object, reason, message string) {
	if d.recorder != nil {
		d.recorder.Event(resource, corev1.EventTypeNormal, reason, message)
	}
}
