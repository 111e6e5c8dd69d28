package eventline_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"k8s.io/apimachinery/pkg/watch"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"github.com/streamline-controllers/eventline/pkg/eventline"
	"github.com/streamline-controllers/eventline/pkg/eventlinetest"
)

type fakeWatchSource struct {
	w   watch.Interface
	err error
}

func (s *fakeWatchSource) Watch(ctx context.Context, namespace string) (watch.Interface, error) {
	return s.w, s.err
}

type recordingSink struct {
	mu     sync.Mutex
	events []watch.EventType
	closed error
}

func (s *recordingSink) OnEvent(action watch.EventType, resource client.Object) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, action)
}

func (s *recordingSink) OnClose(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = err
}

func (s *recordingSink) eventCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func (s *recordingSink) closedWith() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func TestRunWatchDeliversEvents(t *testing.T) {
	fw := watch.NewFakeWithChanSize(4, false)
	sink := &recordingSink{}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		eventline.RunWatch(ctx, &fakeWatchSource{w: fw}, "", sink, logr.Discard())
	}()

	fw.Add(eventlinetest.NewTestResource("r1"))
	fw.Modify(eventlinetest.NewTestResource("r1").WithGeneration(2))

	eventlinetest.Eventually(t, time.Second, func() bool {
		return sink.eventCount() == 2
	}, "watch events not delivered")

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("pump did not stop on context cancellation")
	}
	if sink.closedWith() != nil {
		t.Error("OnClose invoked for a context-cancelled pump")
	}
}

func TestRunWatchReportsChannelClosure(t *testing.T) {
	fw := watch.NewFakeWithChanSize(1, false)
	sink := &recordingSink{}

	done := make(chan struct{})
	go func() {
		defer close(done)
		eventline.RunWatch(context.Background(), &fakeWatchSource{w: fw}, "", sink, logr.Discard())
	}()

	fw.Stop()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("pump did not stop on channel closure")
	}
	if sink.closedWith() == nil {
		t.Error("OnClose not invoked on channel closure")
	}
}
