package eventline

import (
	"context"

	"sigs.k8s.io/controller-runtime/pkg/client"
)

// ReplaceClient persists a modified resource with optimistic-lock
// semantics: the replace applies iff the server-side resourceVersion still
// matches the one on the submitted object, and fails with a Conflict
// otherwise. Conflicts surface to the scheduler as ordinary processing
// failures; generation-aware retry refresh is the designed remedy.
type ReplaceClient interface {
	ReplaceWithLock(ctx context.Context, resource client.Object) error
}

// lockingReplaceClient adapts a controller-runtime client. Update already
// carries the optimistic lock: the API server rejects it with a Conflict
// when the object's resourceVersion is stale.
type lockingReplaceClient struct {
	client client.Client
}

// NewReplaceClient returns a ReplaceClient backed by a controller-runtime
// client.
func NewReplaceClient(c client.Client) ReplaceClient {
	return &lockingReplaceClient{client: c}
}

func (r *lockingReplaceClient) ReplaceWithLock(ctx context.Context, resource client.Object) error {
	return r.client.Update(ctx, resource)
}
