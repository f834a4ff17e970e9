package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	alog "github.com/Little-Star888/agenttask/internal/log"
	"github.com/Little-Star888/agenttask/internal/model"
	"github.com/Little-Star888/agenttask/internal/step"
	"github.com/Little-Star888/agenttask/internal/store"
	"github.com/Little-Star888/agenttask/internal/variables"
)

// Runner executes task definitions loaded from a store.
type Runner struct {
	store    store.Store
	registry *step.Registry
	logger   *slog.Logger
	broker   *EventBroker
	history  *history
	timeout  time.Duration
	wg       sync.WaitGroup

	mu     sync.Mutex
	active map[string]context.CancelFunc
}

// Option configures a Runner.
type Option func(*Runner)

// WithRunTimeout bounds every run. Zero means no deadline beyond the
// caller's context.
func WithRunTimeout(d time.Duration) Option {
	return func(r *Runner) { r.timeout = d }
}

// WithHistorySize sets how many finished and in-flight runs are kept for
// Get and ListRuns.
func WithHistorySize(n int) Option {
	return func(r *Runner) { r.history = newHistory(n, r.broker.Forget) }
}

// NewRunner creates a runner over the given store and step registry.
func NewRunner(s store.Store, reg *step.Registry, logger *slog.Logger, opts ...Option) *Runner {
	r := &Runner{
		store:    s,
		registry: reg,
		logger:   logger,
		broker:   NewEventBroker(),
		active:   make(map[string]context.CancelFunc),
	}
	r.history = newHistory(DefaultHistorySize, r.broker.Forget)
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Broker returns the runner's event broker for SSE subscription.
func (r *Runner) Broker() *EventBroker {
	return r.broker
}

// Run executes a task synchronously. Failures found before any step runs
// (unknown task, disabled task, invalid definition, ctx ending while the
// task loads) return a nil result.
// Failures while running return the partial result alongside the error:
// a *StepError, or a *CancelledError when ctx ends or the run is cancelled.
func (r *Runner) Run(ctx context.Context, taskID string, inputs map[string]any) (*model.RunResult, error) {
	task, err := r.prepare(ctx, taskID)
	if err != nil {
		return nil, err
	}

	res := r.begin(task)
	runCtx, cancel := r.runContext(ctx)
	r.track(res.RunID, cancel)
	defer r.untrack(res.RunID)

	return r.execute(runCtx, task, res, inputs)
}

// Submit validates a task synchronously and then runs it in the background,
// returning the pending result at once. The run is detached from ctx; use
// Cancel to stop it and Get or the event broker to follow it.
func (r *Runner) Submit(ctx context.Context, taskID string, inputs map[string]any) (*model.RunResult, error) {
	task, err := r.prepare(ctx, taskID)
	if err != nil {
		return nil, err
	}

	res := r.begin(task)
	pending := res.Clone()

	runCtx, cancel := r.runContext(context.Background())
	r.track(res.RunID, cancel)

	r.wg.Go(func() {
		defer r.untrack(res.RunID)
		if _, err := r.execute(runCtx, task, res, inputs); err != nil {
			r.logger.Debug("background run failed", alog.RunID(res.RunID), alog.Error(err))
		}
	})

	return pending, nil
}

// Cancel stops an in-flight run. The current step sees its context cancelled
// and no further step starts.
func (r *Runner) Cancel(runID string) error {
	r.mu.Lock()
	cancel, ok := r.active[runID]
	r.mu.Unlock()

	if !ok {
		return ErrRunNotFound
	}
	cancel()
	return nil
}

// Get returns the latest known state of a run.
func (r *Runner) Get(runID string) (*model.RunResult, error) {
	res, ok := r.history.get(runID)
	if !ok {
		return nil, ErrRunNotFound
	}
	return res, nil
}

// ListRuns returns the runs still held in history, newest first.
func (r *Runner) ListRuns() []*model.RunResult {
	return r.history.list()
}

// ActiveRuns reports how many runs are in flight.
func (r *Runner) ActiveRuns() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.active)
}

// Wait blocks until all background runs complete.
func (r *Runner) Wait() {
	r.wg.Wait()
}

// prepare loads the task and checks everything that can be checked before a
// step runs.
func (r *Runner) prepare(ctx context.Context, taskID string) (*model.Task, error) {
	task, err := r.store.GetTask(ctx, taskID)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, &CancelledError{StepIndex: 0, Cause: ctxErr}
		}
		return nil, fmt.Errorf("load task: %w", err)
	}
	if !task.Config.IsActive() {
		return nil, fmt.Errorf("%w: %s", ErrTaskDisabled, task.ID)
	}
	if len(task.Config.Steps) == 0 {
		return nil, &model.DefinitionError{Field: "steps", StepIndex: -1, Reason: "task has no steps"}
	}
	if err := r.registry.Validate(task.Config.Steps); err != nil {
		return nil, err
	}
	return task, nil
}

// begin creates the pending result for a new run and records it.
func (r *Runner) begin(task *model.Task) *model.RunResult {
	res := &model.RunResult{
		RunID:    model.NewRunID(),
		TaskID:   task.ID,
		TaskName: task.Name,
		Status:   model.RunPending,
		Steps:    make([]model.StepTrace, len(task.Config.Steps)),
	}
	for i, spec := range task.Config.Steps {
		res.Steps[i] = model.StepTrace{
			Index:            i,
			Type:             spec.Type,
			ResponseVariable: spec.ResponseVariable,
		}
	}
	r.broker.Open(res.RunID)
	r.history.put(res)
	return res
}

func (r *Runner) runContext(parent context.Context) (context.Context, context.CancelFunc) {
	if r.timeout > 0 {
		return context.WithTimeout(parent, r.timeout)
	}
	return context.WithCancel(parent)
}

func (r *Runner) track(runID string, cancel context.CancelFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.active[runID] = cancel
}

func (r *Runner) untrack(runID string) {
	r.mu.Lock()
	cancel, ok := r.active[runID]
	delete(r.active, runID)
	r.mu.Unlock()

	if ok {
		cancel()
	}
}

// execute drives the steps of a validated task in order. res is owned by the
// caller's goroutine; only copies are shared through history.
func (r *Runner) execute(ctx context.Context, task *model.Task, res *model.RunResult, inputs map[string]any) (*model.RunResult, error) {
	defer r.broker.Close(res.RunID)

	logger := r.logger.With(alog.RunID(res.RunID), alog.TaskID(task.ID))

	start := time.Now().UTC()
	res.Status = model.RunRunning
	res.StartedAt = &start
	r.history.put(res)
	r.publish(res.RunID, model.RunEvent{Kind: model.EventRunStarted, StepIndex: -1, Status: model.RunRunning})
	logger.Info("run started", "steps", len(task.Config.Steps))

	vars := variables.New(inputs)
	var runErr error

	for i, spec := range task.Config.Steps {
		if err := ctx.Err(); err != nil {
			runErr = &CancelledError{StepIndex: i, Cause: err}
			break
		}

		s, err := r.registry.Resolve(spec.Type)
		if err != nil {
			runErr = &StepError{Index: i, Type: spec.Type, Err: err}
			break
		}

		r.publish(res.RunID, model.RunEvent{Kind: model.EventStepStarted, StepIndex: i, StepType: spec.Type})

		stepStart := time.Now()
		out, err := invoke(ctx, s, spec.Config, readOnly{vars})
		elapsed := time.Since(stepStart)

		trace := &res.Steps[i]
		trace.Ran = true
		trace.DurationMS = elapsed.Milliseconds()
		stepDuration.WithLabelValues(spec.Type).Observe(elapsed.Seconds())

		if err != nil {
			trace.Error = err.Error()
			stepsTotal.WithLabelValues(spec.Type, "failure").Inc()
			if ctxErr := ctx.Err(); ctxErr != nil {
				runErr = &CancelledError{StepIndex: i, Cause: ctxErr}
			} else {
				runErr = &StepError{Index: i, Type: spec.Type, Err: err}
			}
			r.publish(res.RunID, model.RunEvent{Kind: model.EventStepFailed, StepIndex: i, StepType: spec.Type, Error: err.Error()})
			logger.Warn("step failed", alog.StepIndex(i), alog.StepType(spec.Type), alog.Error(err))
			break
		}

		trace.Success = true
		stepsTotal.WithLabelValues(spec.Type, "success").Inc()
		if spec.ResponseVariable != "" {
			vars.Set(spec.ResponseVariable, out)
		}
		res.Variables = vars.Snapshot()
		r.history.put(res)
		r.publish(res.RunID, model.RunEvent{Kind: model.EventStepCompleted, StepIndex: i, StepType: spec.Type})
		logger.Debug("step completed", alog.StepIndex(i), alog.StepType(spec.Type), "duration_ms", trace.DurationMS)
	}

	finished := time.Now().UTC()
	res.FinishedAt = &finished
	res.DurationMS = finished.Sub(start).Milliseconds()
	res.Variables = vars.Snapshot()

	if runErr == nil {
		res.Status = model.RunCompleted
		res.Success = true
	} else {
		res.Status = model.RunFailed
		res.Error = runErr.Error()
		res.Reason = failureReason(runErr)
	}

	runsTotal.WithLabelValues(res.Status).Inc()
	runDuration.Observe(finished.Sub(start).Seconds())
	r.history.put(res)
	r.publish(res.RunID, model.RunEvent{Kind: model.EventRunFinished, StepIndex: -1, Status: res.Status, Error: res.Error})

	if runErr != nil {
		logger.Info("run failed", alog.Status(res.Reason), alog.Error(runErr), "duration_ms", res.DurationMS)
	} else {
		logger.Info("run completed", "duration_ms", res.DurationMS)
	}

	return res.Clone(), runErr
}

func (r *Runner) publish(runID string, ev model.RunEvent) {
	ev.RunID = runID
	ev.Time = time.Now().UTC()
	r.broker.Publish(runID, ev)
}

// invoke runs one step, turning a panic into an error so a faulty step
// fails its run instead of the process.
func invoke(ctx context.Context, s step.Step, config map[string]any, vars step.Variables) (out any, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("step panicked: %v", p)
		}
	}()
	return s.Execute(ctx, config, vars)
}

func failureReason(err error) string {
	var ce *CancelledError
	if errors.As(err, &ce) {
		if ce.DeadlineExceeded() {
			return model.ReasonDeadlineExceeded
		}
		return model.ReasonCancelled
	}
	return model.ReasonStepFailed
}

// readOnly hides the mutating half of the variable context from steps.
type readOnly struct {
	vars *variables.Context
}

func (v readOnly) Get(name string) (any, bool) {
	return v.vars.Get(name)
}

func (v readOnly) Snapshot() map[string]any {
	return v.vars.Snapshot()
}
