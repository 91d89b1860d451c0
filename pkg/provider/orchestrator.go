package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"VisionAnalytica/internal/entity"
	"github.com/sirupsen/logrus"
)

// Recorder receives per-attempt observations. pkg/metrics implements it.
type Recorder interface {
	ObserveAttempt(provider string, success bool, elapsed time.Duration)
	IncSkipped(provider string)
}

type noopRecorder struct{}

func (noopRecorder) ObserveAttempt(string, bool, time.Duration) {}
func (noopRecorder) IncSkipped(string)                          {}

type OrchestratorOption func(*Orchestrator)

func WithAttemptTimeout(d time.Duration) OrchestratorOption {
	return func(o *Orchestrator) {
		o.timeout = d
	}
}

func WithRecorder(r Recorder) OrchestratorOption {
	return func(o *Orchestrator) {
		if r != nil {
			o.recorder = r
		}
	}
}

// Orchestrator tries providers strictly one after another in the order given
// and returns the first success. It holds no per-request state.
type Orchestrator struct {
	descriptors []Descriptor
	timeout     time.Duration
	log         *logrus.Logger
	recorder    Recorder
}

func NewOrchestrator(log *logrus.Logger, descriptors []Descriptor, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		descriptors: append([]Descriptor(nil), descriptors...),
		log:         log,
		recorder:    noopRecorder{},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Eligible returns the names of providers that would be tried right now.
func (o *Orchestrator) Eligible() []string {
	names := []string{}
	for _, d := range o.descriptors {
		if d.eligible() {
			names = append(names, d.Name)
		}
	}
	return names
}

func (o *Orchestrator) Run(ctx context.Context, img Image) (entity.Result, error) {
	var attempts []Attempt
	tried := 0

	for _, d := range o.descriptors {
		fields := logrus.Fields{"provider": d.Name}

		if !d.eligible() {
			o.recorder.IncSkipped(d.Name)
			o.log.WithFields(fields).Debug("Provider not configured, skipping")
			continue
		}

		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("analysis aborted after %d attempt(s): %w", tried, err)
		}

		tried++
		fields["attempt"] = tried
		o.log.WithFields(fields).Info("Attempting analysis")

		start := time.Now()
		result, err := o.attempt(ctx, d, img)
		o.recorder.ObserveAttempt(d.Name, err == nil, time.Since(start))

		if err == nil {
			o.log.WithFields(fields).Info("Analysis succeeded")
			return result, nil
		}

		if KindOf(err) == KindMissingCredentials {
			tried--
			o.log.WithFields(fields).Debug("Provider reported missing credentials, skipping")
			continue
		}

		fields["error"] = err.Error()
		o.log.WithFields(fields).Warn("Provider failed, trying next")
		attempts = append(attempts, newAttempt(d.Name, err))
	}

	if len(attempts) == 0 {
		return nil, ErrNoProviderAvailable
	}
	return nil, &AllProvidersFailedError{Attempts: attempts}
}

func (o *Orchestrator) attempt(ctx context.Context, d Descriptor, img Image) (entity.Result, error) {
	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	result, err := d.Provider.Analyze(ctx, img)
	if err != nil {
		var pe *ProviderError
		if !errors.As(err, &pe) {
			err = Transport(d.Name, err)
		}
		return nil, err
	}
	if result == nil {
		return nil, InvalidPayload(d.Name, errors.New("provider returned no result"))
	}
	return result, nil
}
