package eventlinetest

import (
	"context"
	"sync"

	"sigs.k8s.io/controller-runtime/pkg/client"

	"github.com/streamline-controllers/eventline/pkg/eventline"
)

// FakeReplaceClient is a recording ReplaceClient with scripted failures.
// Safe for concurrent use.
type FakeReplaceClient struct {
	mu sync.Mutex

	calls []client.Object
	errs  []error
}

var _ eventline.ReplaceClient = &FakeReplaceClient{}

// NewFakeReplaceClient creates a FakeReplaceClient that accepts every
// replace.
func NewFakeReplaceClient() *FakeReplaceClient {
	return &FakeReplaceClient{}
}

// FailWith queues errors to return from subsequent ReplaceWithLock calls,
// one per call, in order. Once the queue drains, calls succeed again.
func (c *FakeReplaceClient) FailWith(errs ...error) *FakeReplaceClient {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errs = append(c.errs, errs...)
	return c
}

// ReplaceWithLock implements eventline.ReplaceClient.
func (c *FakeReplaceClient) ReplaceWithLock(ctx context.Context, resource client.Object) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, resource)
	if len(c.errs) > 0 {
		err := c.errs[0]
		c.errs = c.errs[1:]
		return err
	}
	return nil
}

// Calls returns the number of ReplaceWithLock invocations.
func (c *FakeReplaceClient) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.calls)
}

// LastCall returns the most recent resource submitted, or nil.
func (c *FakeReplaceClient) LastCall() client.Object {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.calls) == 0 {
		return nil
	}
	return c.calls[len(c.calls)-1]
}
