package eventline_test

import (
	"context"
	"errors"
	"testing"

	"github.com/go-logr/logr"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/apimachinery/pkg/watch"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/controller/controllerutil"

	"github.com/streamline-controllers/eventline/pkg/eventline"
	"github.com/streamline-controllers/eventline/pkg/eventlinetest"
)

const testFinalizer = "testresources.test.eventline.io/finalizer"

func newDispatcher(controller *eventlinetest.FakeController, replace *eventlinetest.FakeReplaceClient) *eventline.Dispatcher {
	return eventline.NewDispatcher(controller, testFinalizer, replace, logr.Discard())
}

func TestDispatcherCallsCreateOrUpdateOnNewResource(t *testing.T) {
	controller := eventlinetest.NewFakeController()
	replace := eventlinetest.NewFakeReplaceClient()
	dispatcher := newDispatcher(controller, replace)

	if err := dispatcher.HandleEvent(context.Background(), watch.Added, eventlinetest.NewTestResource("r1")); err != nil {
		t.Fatalf("HandleEvent() error: %v", err)
	}
	if got := controller.CreateOrUpdateCalls(); got != 1 {
		t.Errorf("CreateOrUpdateResource calls = %d, want 1", got)
	}
}

func TestDispatcherAddsFinalizerBeforeControllerRuns(t *testing.T) {
	sawFinalizer := false
	controller := eventlinetest.NewFakeController().
		WithCreateOrUpdate(func(ctx context.Context, resource client.Object) (client.Object, error) {
			sawFinalizer = controllerutil.ContainsFinalizer(resource, testFinalizer)
			return nil, nil
		})
	replace := eventlinetest.NewFakeReplaceClient()
	dispatcher := newDispatcher(controller, replace)

	resource := eventlinetest.NewTestResource("r1")
	if err := dispatcher.HandleEvent(context.Background(), watch.Added, resource); err != nil {
		t.Fatalf("HandleEvent() error: %v", err)
	}

	if !sawFinalizer {
		t.Error("controller did not observe the finalizer")
	}
	// Finalizer was added, so the resource is persisted even though the
	// controller returned nil.
	if got := replace.Calls(); got != 1 {
		t.Errorf("ReplaceWithLock calls = %d, want 1", got)
	}
}

func TestDispatcherDoesNotPersistWhenNothingChanged(t *testing.T) {
	controller := eventlinetest.NewFakeController()
	replace := eventlinetest.NewFakeReplaceClient()
	dispatcher := newDispatcher(controller, replace)

	// Finalizer already present, controller returns nil.
	resource := eventlinetest.NewTestResource("r1").WithFinalizer(testFinalizer)
	if err := dispatcher.HandleEvent(context.Background(), watch.Modified, resource); err != nil {
		t.Fatalf("HandleEvent() error: %v", err)
	}

	if got := replace.Calls(); got != 0 {
		t.Errorf("ReplaceWithLock calls = %d, want 0", got)
	}
}

func TestDispatcherPersistsControllerReturnedResource(t *testing.T) {
	modified := eventlinetest.NewTestResource("r1").WithFinalizer(testFinalizer)
	modified.Status.State = "Ready"
	controller := eventlinetest.NewFakeController().
		WithCreateOrUpdate(func(ctx context.Context, resource client.Object) (client.Object, error) {
			return modified, nil
		})
	replace := eventlinetest.NewFakeReplaceClient()
	dispatcher := newDispatcher(controller, replace)

	resource := eventlinetest.NewTestResource("r1").WithFinalizer(testFinalizer)
	if err := dispatcher.HandleEvent(context.Background(), watch.Modified, resource); err != nil {
		t.Fatalf("HandleEvent() error: %v", err)
	}

	if got := replace.Calls(); got != 1 {
		t.Fatalf("ReplaceWithLock calls = %d, want 1", got)
	}
	if replace.LastCall() != modified {
		t.Error("ReplaceWithLock did not receive the controller's resource")
	}
}

func TestDispatcherDeleteWithFinalizer(t *testing.T) {
	controller := eventlinetest.NewFakeController()
	replace := eventlinetest.NewFakeReplaceClient()
	dispatcher := newDispatcher(controller, replace)

	resource := eventlinetest.NewTestResource("r1").
		WithFinalizer(testFinalizer).
		MarkedForDeletion()
	if err := dispatcher.HandleEvent(context.Background(), watch.Modified, resource); err != nil {
		t.Fatalf("HandleEvent() error: %v", err)
	}

	if got := controller.DeleteCalls(); got != 1 {
		t.Errorf("DeleteResource calls = %d, want 1", got)
	}
	if controllerutil.ContainsFinalizer(resource, testFinalizer) {
		t.Error("finalizer still present after authorized delete")
	}
	if got := replace.Calls(); got != 1 {
		t.Errorf("ReplaceWithLock calls = %d, want 1", got)
	}
	if got := controller.CreateOrUpdateCalls(); got != 0 {
		t.Errorf("CreateOrUpdateResource calls = %d on delete path, want 0", got)
	}
}

func TestDispatcherDeleteVetoKeepsFinalizer(t *testing.T) {
	controller := eventlinetest.NewFakeController().
		WithDelete(func(ctx context.Context, resource client.Object) (bool, error) {
			return false, nil
		})
	replace := eventlinetest.NewFakeReplaceClient()
	dispatcher := newDispatcher(controller, replace)

	resource := eventlinetest.NewTestResource("r1").
		WithFinalizer(testFinalizer).
		MarkedForDeletion()
	if err := dispatcher.HandleEvent(context.Background(), watch.Modified, resource); err != nil {
		t.Fatalf("HandleEvent() error: %v", err)
	}

	if !controllerutil.ContainsFinalizer(resource, testFinalizer) {
		t.Error("finalizer removed despite veto")
	}
	if got := replace.Calls(); got != 0 {
		t.Errorf("ReplaceWithLock calls = %d after veto, want 0", got)
	}
}

func TestDispatcherOpportunisticDeleteWithoutFinalizer(t *testing.T) {
	controller := eventlinetest.NewFakeController()
	replace := eventlinetest.NewFakeReplaceClient()
	dispatcher := newDispatcher(controller, replace)

	// Marked for deletion but our finalizer never took hold.
	resource := eventlinetest.NewTestResource("r1").MarkedForDeletion()
	if err := dispatcher.HandleEvent(context.Background(), watch.Modified, resource); err != nil {
		t.Fatalf("HandleEvent() error: %v", err)
	}

	if got := controller.DeleteCalls(); got != 1 {
		t.Errorf("DeleteResource calls = %d, want 1", got)
	}
	if got := replace.Calls(); got != 0 {
		t.Errorf("ReplaceWithLock calls = %d, want 0", got)
	}
}

func TestDispatcherDeletedActionRunsCleanupWithoutPersisting(t *testing.T) {
	controller := eventlinetest.NewFakeController()
	replace := eventlinetest.NewFakeReplaceClient()
	dispatcher := newDispatcher(controller, replace)

	// Deleted before the finalizer ever took hold: no deletion timestamp.
	resource := eventlinetest.NewTestResource("r1")
	if err := dispatcher.HandleEvent(context.Background(), watch.Deleted, resource); err != nil {
		t.Fatalf("HandleEvent() error: %v", err)
	}

	if got := controller.DeleteCalls(); got != 1 {
		t.Errorf("DeleteResource calls = %d, want 1", got)
	}
	if got := controller.CreateOrUpdateCalls(); got != 0 {
		t.Errorf("CreateOrUpdateResource calls = %d, want 0", got)
	}
	if got := replace.Calls(); got != 0 {
		t.Errorf("ReplaceWithLock calls = %d, want 0", got)
	}
}

func TestDispatcherSurfacesControllerError(t *testing.T) {
	boom := errors.New("boom")
	controller := eventlinetest.NewFakeController().
		WithCreateOrUpdate(func(ctx context.Context, resource client.Object) (client.Object, error) {
			return nil, boom
		})
	dispatcher := newDispatcher(controller, eventlinetest.NewFakeReplaceClient())

	err := dispatcher.HandleEvent(context.Background(), watch.Added, eventlinetest.NewTestResource("r1"))
	if !errors.Is(err, boom) {
		t.Errorf("HandleEvent() error = %v, want wrapped controller error", err)
	}
}

func TestDispatcherSurfacesReplaceConflict(t *testing.T) {
	conflict := apierrors.NewConflict(
		schema.GroupResource{Group: "test.eventline.io", Resource: "testresources"},
		"r1", errors.New("version mismatch"))
	replace := eventlinetest.NewFakeReplaceClient().FailWith(conflict)
	dispatcher := newDispatcher(eventlinetest.NewFakeController(), replace)

	err := dispatcher.HandleEvent(context.Background(), watch.Added, eventlinetest.NewTestResource("r1"))
	if err == nil {
		t.Fatal("HandleEvent() succeeded despite replace conflict")
	}
	if !apierrors.IsConflict(err) {
		t.Errorf("HandleEvent() error = %v, want conflict", err)
	}
}
