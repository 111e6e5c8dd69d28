package eventline

import "time"

// Retry produces RetryExecutions. One execution is attached to every event
// at ingress, so each event carries its own attempt history.
type Retry interface {
	// NewExecution returns a fresh execution with no recorded attempts.
	NewExecution() RetryExecution
}

// RetryExecution is an opaque per-event counter of attempts.
//
// NextDelay returns the delay before the next attempt and true, or false
// once the retry budget is exhausted. The first call always returns zero:
// the initial dispatch is immediate. Exhaustion is terminal - after a false
// result the execution never returns true again.
type RetryExecution interface {
	NextDelay() (time.Duration, bool)
}

// GenericRetry is an exponential backoff retry configuration.
//
// The n-th retry (after the initial zero-delay attempt) waits
// InitialInterval * Multiplier^(n-1), clamped to MaxInterval. The budget is
// bounded by MaxAttempts and by MaxElapsedTime, where elapsed time is the
// sum of produced delays - the policy itself never consults the wall clock,
// so executions are pure with respect to their configuration.
//
// Zero fields take defaults at NewExecution time, mirroring DefaultRetry.
// MaxElapsedTime zero means no elapsed-time bound.
type GenericRetry struct {
	// InitialInterval is the delay before the first retry.
	InitialInterval time.Duration

	// Multiplier is the factor applied to the delay after each retry.
	Multiplier float64

	// MaxInterval caps the delay between retries.
	MaxInterval time.Duration

	// MaxAttempts is the total number of attempts, including the initial one.
	MaxAttempts int

	// MaxElapsedTime bounds the cumulative delay across all retries.
	MaxElapsedTime time.Duration
}

// DefaultRetry returns the default retry configuration: five attempts
// starting at two seconds with a 1.5x multiplier, which bounds the total
// retry effort to well under a minute.
func DefaultRetry() GenericRetry {
	return GenericRetry{
		InitialInterval: 2 * time.Second,
		Multiplier:      1.5,
		MaxInterval:     1 * time.Minute,
		MaxAttempts:     5,
	}
}

// NewExecution implements Retry.
func (r GenericRetry) NewExecution() RetryExecution {
	conf := r
	if conf.InitialInterval == 0 {
		conf.InitialInterval = 2 * time.Second
	}
	if conf.Multiplier == 0 {
		conf.Multiplier = 1.5
	}
	if conf.MaxInterval == 0 {
		conf.MaxInterval = 1 * time.Minute
	}
	if conf.MaxAttempts == 0 {
		conf.MaxAttempts = 5
	}
	return &genericRetryExecution{conf: conf}
}

// genericRetryExecution tracks the attempt history for a single event.
// Not safe for concurrent use; the scheduler only advances an execution
// under its mutex.
type genericRetryExecution struct {
	conf      GenericRetry
	attempts  int
	lastDelay time.Duration
	elapsed   time.Duration
}

func (e *genericRetryExecution) NextDelay() (time.Duration, bool) {
	if e.attempts >= e.conf.MaxAttempts {
		return 0, false
	}
	e.attempts++

	var delay time.Duration
	switch e.attempts {
	case 1:
		delay = 0
	case 2:
		delay = e.conf.InitialInterval
	default:
		delay = time.Duration(float64(e.lastDelay) * e.conf.Multiplier)
	}
	if delay > e.conf.MaxInterval {
		delay = e.conf.MaxInterval
	}

	e.elapsed += delay
	if e.conf.MaxElapsedTime > 0 && e.elapsed > e.conf.MaxElapsedTime {
		// Pin the counter so later calls stay exhausted.
		e.attempts = e.conf.MaxAttempts
		return 0, false
	}

	e.lastDelay = delay
	return delay, true
}
