// Package wizard drives a multi-step form. Forward navigation is gated on the
// current step's validation hooks; the finish callback runs once after the
// last step validates.
package wizard

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"meridian/internal/platform/logger"
	"meridian/internal/platform/metrics"
	dErrors "meridian/pkg/domain-errors"
)

// DefaultFinishError is shown when the finish callback fails.
const DefaultFinishError = "Could not complete the registration. Please try again."

// ErrBusy is returned when navigation is requested while validation or the
// finish callback is running.
var ErrBusy = dErrors.New(dErrors.CodeBusy, "wizard is busy")

// Status is the engine's navigation state.
type Status int

const (
	StatusIdle Status = iota
	StatusValidating
	StatusFinishing
	StatusDone
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusValidating:
		return "validating"
	case StatusFinishing:
		return "finishing"
	case StatusDone:
		return "done"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Step is one page of the wizard. When both hooks are set both run and their
// errors are collected, but CustomValidate decides validity.
type Step struct {
	Title          string
	Validate       Validator
	CustomValidate Validator
}

// State is a snapshot of the engine.
type State struct {
	CurrentIndex int
	StepValidity []bool
	LastErrors   []string
	Status       Status
}

// Navigating reports whether a transition is in flight.
func (s State) Navigating() bool {
	return s.Status == StatusValidating || s.Status == StatusFinishing
}

// FinishFunc runs after the last step validates.
type FinishFunc func(ctx context.Context) error

// Metric outcomes.
const (
	outcomeAdvanced     = "advanced"
	outcomeInvalid      = "invalid"
	outcomeBack         = "back"
	outcomeFinished     = "finished"
	outcomeFinishFailed = "finish_failed"
	outcomeCanceled     = "canceled"
)

type Engine struct {
	steps       []Step
	finish      FinishFunc
	modifier    Modifier
	finishError string

	logger  *slog.Logger
	metrics *metrics.Metrics

	mu    sync.Mutex
	state State
}

// Option configures an Engine.
type Option func(*Engine)

func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithModifier sets the modifier that turns arrows into navigation. Default Ctrl.
func WithModifier(m Modifier) Option {
	return func(e *Engine) {
		e.modifier = m
	}
}

// WithFinishError replaces the generic message shown when finish fails.
func WithFinishError(msg string) Option {
	return func(e *Engine) {
		e.finishError = msg
	}
}

func New(steps []Step, finish FinishFunc, opts ...Option) (*Engine, error) {
	if len(steps) == 0 {
		return nil, fmt.Errorf("wizard needs at least one step")
	}
	e := &Engine{
		steps:       append([]Step(nil), steps...),
		finish:      finish,
		modifier:    ModCtrl,
		finishError: DefaultFinishError,
		logger:      logger.Discard(),
		state: State{
			StepValidity: make([]bool, len(steps)),
		},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Steps returns the step titles in order.
func (e *Engine) Steps() []string {
	titles := make([]string, len(e.steps))
	for i, s := range e.steps {
		titles[i] = s.Title
	}
	return titles
}

// Current returns the step at the current index.
func (e *Engine) Current() Step {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.steps[e.state.CurrentIndex]
}

// State returns a copy of the current state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshot()
}

func (e *Engine) snapshot() State {
	s := e.state
	s.StepValidity = append([]bool(nil), e.state.StepValidity...)
	s.LastErrors = append([]string(nil), e.state.LastErrors...)
	return s
}

// Next validates the current step and advances, or runs the finish callback
// on the last step. An invalid step keeps its index and exposes its errors in
// State.LastErrors. After a successful finish further calls are no-ops.
func (e *Engine) Next(ctx context.Context) (State, error) {
	e.mu.Lock()
	switch e.state.Status {
	case StatusDone:
		defer e.mu.Unlock()
		return e.snapshot(), nil
	case StatusIdle:
	default:
		e.mu.Unlock()
		return e.State(), ErrBusy
	}
	idx := e.state.CurrentIndex
	step := e.steps[idx]
	e.state.Status = StatusValidating
	e.mu.Unlock()

	res := e.validate(ctx, step)

	e.mu.Lock()
	if err := ctx.Err(); err != nil {
		e.state.Status = StatusIdle
		e.mu.Unlock()
		e.metrics.IncrementStepTransition(outcomeCanceled)
		return e.State(), err
	}
	e.state.StepValidity[idx] = res.Valid
	if !res.Valid {
		e.state.LastErrors = res.Messages()
		e.state.Status = StatusIdle
		e.mu.Unlock()
		e.metrics.IncrementStepTransition(outcomeInvalid)
		e.logger.DebugContext(ctx, "wizard step invalid", "step", idx, "errors", len(res.Errors))
		return e.State(), nil
	}
	e.state.LastErrors = nil
	if idx < len(e.steps)-1 {
		e.state.CurrentIndex = idx + 1
		e.state.Status = StatusIdle
		e.mu.Unlock()
		e.metrics.IncrementStepTransition(outcomeAdvanced)
		e.logger.DebugContext(ctx, "wizard advanced", "step", idx+1)
		return e.State(), nil
	}
	e.state.Status = StatusFinishing
	e.mu.Unlock()

	return e.runFinish(ctx, idx)
}

func (e *Engine) runFinish(ctx context.Context, idx int) (State, error) {
	err := e.callFinish(ctx)

	e.mu.Lock()
	if err != nil {
		e.state.LastErrors = []string{e.finishError}
		e.state.Status = StatusIdle
		e.mu.Unlock()
		e.metrics.IncrementStepTransition(outcomeFinishFailed)
		e.logger.WarnContext(ctx, "wizard finish failed", "step", idx, "error", err)
		return e.State(), nil
	}
	e.state.Status = StatusDone
	e.mu.Unlock()
	e.metrics.IncrementStepTransition(outcomeFinished)
	e.logger.InfoContext(ctx, "wizard finished", "steps", len(e.steps))
	return e.State(), nil
}

func (e *Engine) validate(ctx context.Context, step Step) Result {
	defer e.idleOnPanic()
	return runStep(ctx, step)
}

func (e *Engine) callFinish(ctx context.Context) error {
	defer e.idleOnPanic()
	if e.finish == nil {
		return nil
	}
	return e.finish(ctx)
}

// idleOnPanic releases the busy status before the panic propagates.
func (e *Engine) idleOnPanic() {
	if r := recover(); r != nil {
		e.mu.Lock()
		e.state.Status = StatusIdle
		e.mu.Unlock()
		panic(r)
	}
}

// runStep runs both hooks. CustomValidate's verdict wins when present.
func runStep(ctx context.Context, step Step) Result {
	if step.Validate == nil && step.CustomValidate == nil {
		return Valid()
	}
	var out Result
	if step.Validate != nil {
		r := step.Validate(ctx)
		out.Valid = r.Valid
		out.Errors = append(out.Errors, r.Errors...)
	}
	if step.CustomValidate != nil {
		r := step.CustomValidate(ctx)
		out.Valid = r.Valid
		out.Errors = append(out.Errors, r.Errors...)
	}
	return out
}

// Prev moves back one step without validating and clears the errors. It is a
// no-op on the first step.
func (e *Engine) Prev() (State, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state.Status != StatusIdle {
		return e.snapshot(), ErrBusy
	}
	if e.state.CurrentIndex == 0 {
		return e.snapshot(), nil
	}
	e.state.CurrentIndex--
	e.state.LastErrors = nil
	e.metrics.IncrementStepTransition(outcomeBack)
	return e.snapshot(), nil
}

// HandleKey maps modifier+Right to Next and modifier+Left to Prev. It reports
// whether the event was consumed.
func (e *Engine) HandleKey(ctx context.Context, ev KeyEvent) (bool, State, error) {
	if ev.InTextField || ev.Modifiers != e.modifier {
		return false, e.State(), nil
	}
	switch ev.Key {
	case KeyRight:
		st, err := e.Next(ctx)
		return true, st, err
	case KeyLeft:
		st, err := e.Prev()
		return true, st, err
	default:
		return false, e.State(), nil
	}
}
