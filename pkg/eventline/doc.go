// Package eventline is the event scheduling and dispatch core for building
// custom-resource operators. It turns a raw stream of watch notifications
// into serialized, retry-aware reconciliation calls against a user-supplied
// ResourceController, including finalizer-mediated deletion handling.
//
// # Architecture
//
// The engine is built from two tightly coupled pieces:
//
//   - Scheduler - an in-memory coordinator that enforces at-most-one
//     in-flight reconciliation per resource UID, coalesces superseded
//     events, filters metadata-only changes when generation-aware
//     processing is enabled, and schedules retries with exponential backoff.
//   - Dispatcher - the reconciliation state machine that owns the finalizer
//     protocol: adding the finalizer on create/update, invoking the
//     controller's delete path only while the finalizer is still present,
//     and removing it transactionally on success.
//
// Data flows WatchSource -> Scheduler -> (timer) -> Dispatcher ->
// ResourceController -> ReplaceClient, and loops back into the Scheduler on
// both success and failure.
//
// # Basic Usage
//
// Implement ResourceController for your custom resource:
//
//	type MyController struct{}
//
//	func (c *MyController) CreateOrUpdateResource(ctx context.Context, obj client.Object) (client.Object, error) {
//	    // Business logic only - return the object to persist it, nil to skip.
//	    return obj, nil
//	}
//
//	func (c *MyController) DeleteResource(ctx context.Context, obj client.Object) (bool, error) {
//	    // Return true once external cleanup is done and the finalizer may go.
//	    return true, nil
//	}
//
// Then register it:
//
//	op := eventline.NewOperator(log)
//	op.Register(ctx, &MyController{}, eventline.ControllerConfiguration{
//	    CRDName: "myresources.example.com",
//	}, watchSource, eventline.NewReplaceClient(k8sClient))
//
// All queue state is process-local; on restart the scheduler is rebuilt by
// re-watching.
package eventline
