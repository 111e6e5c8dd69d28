package eventlinetest

import (
	"context"
	"sync"

	"sigs.k8s.io/controller-runtime/pkg/client"

	"github.com/streamline-controllers/eventline/pkg/eventline"
)

// FakeController is a configurable, recording ResourceController.
// All methods are safe for concurrent use; the engine invokes the
// controller from its worker goroutine while tests inspect counters.
type FakeController struct {
	mu sync.Mutex

	createOrUpdateFunc func(ctx context.Context, resource client.Object) (client.Object, error)
	deleteFunc         func(ctx context.Context, resource client.Object) (bool, error)

	createOrUpdateCalls []client.Object
	deleteCalls         []client.Object
}

var _ eventline.ResourceController = &FakeController{}

// NewFakeController creates a FakeController whose default behavior is
// "no persistence needed" on create/update and "release authorized" on
// delete.
func NewFakeController() *FakeController {
	return &FakeController{}
}

// WithCreateOrUpdate sets the CreateOrUpdateResource implementation.
func (c *FakeController) WithCreateOrUpdate(fn func(ctx context.Context, resource client.Object) (client.Object, error)) *FakeController {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.createOrUpdateFunc = fn
	return c
}

// WithDelete sets the DeleteResource implementation.
func (c *FakeController) WithDelete(fn func(ctx context.Context, resource client.Object) (bool, error)) *FakeController {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deleteFunc = fn
	return c
}

// CreateOrUpdateResource implements eventline.ResourceController.
func (c *FakeController) CreateOrUpdateResource(ctx context.Context, resource client.Object) (client.Object, error) {
	c.mu.Lock()
	c.createOrUpdateCalls = append(c.createOrUpdateCalls, resource)
	fn := c.createOrUpdateFunc
	c.mu.Unlock()

	if fn != nil {
		return fn(ctx, resource)
	}
	return nil, nil
}

// DeleteResource implements eventline.ResourceController.
func (c *FakeController) DeleteResource(ctx context.Context, resource client.Object) (bool, error) {
	c.mu.Lock()
	c.deleteCalls = append(c.deleteCalls, resource)
	fn := c.deleteFunc
	c.mu.Unlock()

	if fn != nil {
		return fn(ctx, resource)
	}
	return true, nil
}

// CreateOrUpdateCalls returns the number of CreateOrUpdateResource
// invocations.
func (c *FakeController) CreateOrUpdateCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.createOrUpdateCalls)
}

// DeleteCalls returns the number of DeleteResource invocations.
func (c *FakeController) DeleteCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.deleteCalls)
}

// LastCreateOrUpdate returns the most recent resource passed to
// CreateOrUpdateResource, or nil.
func (c *FakeController) LastCreateOrUpdate() client.Object {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.createOrUpdateCalls) == 0 {
		return nil
	}
	return c.createOrUpdateCalls[len(c.createOrUpdateCalls)-1]
}

// LastDelete returns the most recent resource passed to DeleteResource, or
// nil.
func (c *FakeController) LastDelete() client.Object {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.deleteCalls) == 0 {
		return nil
	}
	return c.deleteCalls[len(c.deleteCalls)-1]
}
