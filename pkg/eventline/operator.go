package eventline

import (
	"context"
	"errors"

	"github.com/go-logr/logr"
	"k8s.io/client-go/tools/record"
)

// Operator is the registration facade tying watch source, scheduler and
// dispatcher together for any number of controllers.
type Operator struct {
	log      logr.Logger
	metrics  *Metrics
	recorder record.EventRecorder
}

// NewOperator creates an Operator logging through log.
func NewOperator(log logr.Logger) *Operator {
	return &Operator{log: log}
}

// WithMetrics attaches a shared metrics bundle to every controller
// registered afterwards.
func (o *Operator) WithMetrics(m *Metrics) *Operator {
	o.metrics = m
	return o
}

// WithEventRecorder attaches a Kubernetes event recorder to every
// controller registered afterwards.
func (o *Operator) WithEventRecorder(recorder record.EventRecorder) *Operator {
	o.recorder = recorder
	return o
}

// Register wires controller into a Dispatcher and Scheduler per cfg and
// starts pumping source into the scheduler. The pump runs until ctx is
// cancelled; a terminal watch failure exits the process (see
// Scheduler.OnClose).
//
// The returned Scheduler is mainly useful as an EventSink for callers that
// drive their own watch plumbing instead of source.
func (o *Operator) Register(ctx context.Context, controller ResourceController, cfg ControllerConfiguration, source WatchSource, replaceClient ReplaceClient) (*Scheduler, error) {
	if controller == nil {
		return nil, errors.New("controller must not be nil")
	}
	if replaceClient == nil {
		return nil, errors.New("replace client must not be nil")
	}

	log := o.log.WithValues("crd", cfg.CRDName)
	dispatcher := NewDispatcher(controller, cfg.finalizerName(), replaceClient, log).
		WithEventRecorder(o.recorder)
	scheduler := NewScheduler(dispatcher, cfg.retry(), cfg.generationAware(), log).
		WithMetrics(o.metrics).
		WithContext(ctx)

	if source != nil {
		go RunWatch(ctx, source, cfg.Namespace, scheduler, log)
	}
	return scheduler, nil
}
