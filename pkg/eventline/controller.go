package eventline

import (
	"context"
	"fmt"

	"sigs.k8s.io/controller-runtime/pkg/client"
)

// DefaultFinalizer is the finalizer applied when a controller registration
// names neither a finalizer nor a CRD to derive one from.
const DefaultFinalizer = "eventline.io/finalizer"

// ResourceController is the user-supplied business logic for a custom
// resource. Implementations must be deterministic with respect to their
// observable inputs; side effects outside Kubernetes are the implementer's
// concern.
type ResourceController interface {
	// CreateOrUpdateResource reconciles a resource that is not marked for
	// deletion. Returning a non-nil object signals that the controller
	// mutated the resource and wants it persisted; returning nil means no
	// persistence is needed. A non-nil error reschedules the event with
	// backoff.
	CreateOrUpdateResource(ctx context.Context, resource client.Object) (client.Object, error)

	// DeleteResource cleans up after a resource marked for deletion.
	// Returning true authorizes finalizer removal; false means the
	// controller is not ready to release the resource (external cleanup
	// still pending) and the finalizer must remain - a later event will
	// retrigger. A non-nil error reschedules the event with backoff.
	DeleteResource(ctx context.Context, resource client.Object) (bool, error)
}

// ControllerConfiguration is the declarative registration metadata for a
// ResourceController.
type ControllerConfiguration struct {
	// CRDName is the full CRD name, e.g. "webservers.example.com". Also
	// the default stem of the finalizer.
	CRDName string

	// Finalizer overrides the finalizer name. Empty derives
	// "<CRDName>/finalizer", falling back to DefaultFinalizer when CRDName
	// is empty too.
	Finalizer string

	// GenerationAware toggles generation-based deduplication. Nil means
	// enabled; disable it for CRDs without meaningful generation
	// semantics.
	GenerationAware *bool

	// Namespace restricts the watch to a single namespace. Empty watches
	// all namespaces.
	Namespace string

	// Retry overrides the retry configuration. Nil uses DefaultRetry.
	Retry *GenericRetry
}

func (c ControllerConfiguration) finalizerName() string {
	if c.Finalizer != "" {
		return c.Finalizer
	}
	if c.CRDName != "" {
		return fmt.Sprintf("%s/finalizer", c.CRDName)
	}
	return DefaultFinalizer
}

func (c ControllerConfiguration) generationAware() bool {
	return c.GenerationAware == nil || *c.GenerationAware
}

func (c ControllerConfiguration) retry() Retry {
	if c.Retry != nil {
		return *c.Retry
	}
	return DefaultRetry()
}
