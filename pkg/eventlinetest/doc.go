// Package eventlinetest provides testing utilities for eventline
// controllers and for the engine itself.
//
// It ships a ready-made custom resource type (TestResource), a recording
// ResourceController with pluggable behavior, and a scripted ReplaceClient,
// so scheduler and dispatcher behavior can be exercised without a cluster:
//
//	controller := eventlinetest.NewFakeController()
//	replace := eventlinetest.NewFakeReplaceClient()
//	dispatcher := eventline.NewDispatcher(controller, "test/finalizer", replace, logr.Discard())
//
//	resource := eventlinetest.NewTestResource("r1")
//	err := dispatcher.HandleEvent(context.Background(), watch.Added, resource)
//
//	if got := controller.CreateOrUpdateCalls(); got != 1 { ... }
package eventlinetest
