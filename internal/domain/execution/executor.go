// Package execution applies a change set to the remote service.
package execution

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/felixgeelhaar/jobs-as-code/internal/domain/changeset"
	"github.com/felixgeelhaar/jobs-as-code/internal/ports"
)

// Outcomes passed to a Recorder.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeError   = "error"
)

// Options controls how a change set is applied.
type Options struct {
	// FailFast stops at the first failed change.
	FailFast bool
	// Parallelism above 1 applies the changes of different jobs
	// concurrently, at most this many jobs at a time.
	Parallelism int
}

// Recorder observes the outcome of each applied change.
type Recorder interface {
	Observe(kind, action, outcome string, d time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) Observe(string, string, string, time.Duration) {}

// Executor applies change sets through a ports.JobsAPI.
type Executor struct {
	api      ports.JobsAPI
	logger   ports.Logger
	recorder Recorder

	mu    sync.Mutex
	phase Phase
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithLogger sets the logger (default: no-op).
func WithLogger(l ports.Logger) ExecutorOption {
	return func(e *Executor) {
		e.logger = l
	}
}

// WithRecorder sets the outcome recorder (default: none).
func WithRecorder(r Recorder) ExecutorOption {
	return func(e *Executor) {
		e.recorder = r
	}
}

// NewExecutor creates an Executor.
func NewExecutor(api ports.JobsAPI, opts ...ExecutorOption) *Executor {
	e := &Executor{
		api:      api,
		logger:   ports.NewNopLogger(),
		recorder: nopRecorder{},
		phase:    PhasePlanned,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Phase returns the final phase of the last Apply.
func (e *Executor) Phase() Phase {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.phase
}

// Apply runs every change of cs in order. A *ports.RemoteError marks the
// change as failed and clears cs.ApplySuccess; the run then stops when
// FailFast is set and continues otherwise. Any other error aborts the run
// and is returned as is.
func (e *Executor) Apply(ctx context.Context, cs *changeset.ChangeSet, opts Options) error {
	lc, err := NewLifecycle()
	if err != nil {
		return err
	}
	defer lc.Stop()

	r := &run{
		executor:  e,
		cs:        cs,
		opts:      opts,
		pending:   newPendingIDs(),
		lifecycle: lc,
	}

	lc.Begin()
	if opts.Parallelism > 1 {
		err = r.parallel(ctx)
	} else {
		err = r.sequential(ctx, cs.Changes)
	}

	if err != nil {
		lc.Abort(err)
	} else {
		lc.Complete()
	}

	e.mu.Lock()
	e.phase = lc.Phase()
	e.mu.Unlock()

	e.logger.Info(ctx, "apply finished",
		ports.F("run_id", cs.RunID),
		ports.F("phase", string(lc.Phase())),
		ports.F("failures", lc.Failures()),
	)
	return err
}

type run struct {
	executor  *Executor
	cs        *changeset.ChangeSet
	opts      Options
	pending   *pendingIDs
	lifecycle *Lifecycle
	stopped   atomic.Bool
}

func (r *run) sequential(ctx context.Context, changes []*changeset.Change) error {
	for _, c := range changes {
		if r.stopped.Load() {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		failed, err := r.apply(ctx, c)
		if err != nil {
			return err
		}
		if failed && r.opts.FailFast {
			r.stopped.Store(true)
			return nil
		}
	}
	return nil
}

// parallel runs one goroutine per job identifier, bounded by the configured
// parallelism. Changes of the same job stay sequential.
func (r *run) parallel(ctx context.Context) error {
	sem := semaphore.NewWeighted(int64(r.opts.Parallelism))
	var (
		wg       sync.WaitGroup
		errMu    sync.Mutex
		firstErr error
	)

	for _, group := range r.cs.Groups() {
		if err := sem.Acquire(ctx, 1); err != nil {
			errMu.Lock()
			if firstErr == nil {
				firstErr = err
			}
			errMu.Unlock()
			break
		}
		if r.stopped.Load() {
			sem.Release(1)
			break
		}

		wg.Add(1)
		go func(changes []*changeset.Change) {
			defer wg.Done()
			defer sem.Release(1)
			if err := r.sequential(ctx, changes); err != nil {
				r.stopped.Store(true)
				errMu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				errMu.Unlock()
			}
		}(group)
	}

	wg.Wait()
	return firstErr
}

// apply performs one change. It reports whether the change failed with a
// remote error; every other error is returned.
func (r *run) apply(ctx context.Context, c *changeset.Change) (bool, error) {
	e := r.executor
	start := time.Now()
	resultID, err := r.dispatch(ctx, c)
	elapsed := time.Since(start)

	fields := []ports.Field{
		ports.F("action", c.Action.String()),
		ports.F("type", c.Kind.Label()),
		ports.F("identifier", c.Identifier),
	}

	if err != nil {
		var remote *ports.RemoteError
		if !errors.As(err, &remote) {
			e.recorder.Observe(c.Kind.String(), c.Action.String(), OutcomeError, elapsed)
			e.logger.Error(ctx, "apply aborted", append(fields, ports.Err(err))...)
			return false, err
		}
		c.Fail(err)
		r.cs.MarkFailed()
		r.lifecycle.ChangeFailed(err)
		e.recorder.Observe(c.Kind.String(), c.Action.String(), OutcomeFailure, elapsed)
		e.logger.Error(ctx, "change failed", append(fields, ports.Err(err))...)
		return true, nil
	}

	c.Succeed(resultID)
	e.recorder.Observe(c.Kind.String(), c.Action.String(), OutcomeSuccess, elapsed)
	if resultID != nil {
		fields = append(fields, ports.F("result_id", *resultID))
	}
	e.logger.Info(ctx, "change applied", fields...)
	return false, nil
}

func (r *run) dispatch(ctx context.Context, c *changeset.Change) (*int, error) {
	api := r.executor.api

	switch op := c.Operation.(type) {
	case changeset.CreateJob:
		created, err := api.CreateJob(ctx, op.Job)
		if err != nil {
			return nil, err
		}
		if created == nil || created.ID == nil {
			return nil, &ports.RemoteError{Op: "create job", Err: fmt.Errorf("no id returned for job %s", op.Job.Identifier)}
		}
		r.pending.set(op.Job.Identifier, *created.ID)
		return created.ID, nil

	case changeset.UpdateJob:
		updated, err := api.UpdateJob(ctx, op.Job)
		if err != nil {
			return nil, err
		}
		if updated != nil && updated.ID != nil {
			return updated.ID, nil
		}
		return op.Job.ID, nil

	case changeset.DeleteJob:
		if err := api.DeleteJob(ctx, op.Job); err != nil {
			return nil, err
		}
		return op.Job.ID, nil

	case changeset.UpsertEnvVar:
		jobID, err := r.resolve(op.Job)
		if err != nil {
			return nil, err
		}
		v, err := api.UpsertEnvVar(ctx, op.ProjectID, jobID, op.EnvVar, op.ExistingID)
		if err != nil {
			return nil, err
		}
		if v == nil {
			return nil, nil
		}
		return v.ID, nil

	case changeset.DeleteEnvVar:
		if err := api.DeleteEnvVar(ctx, op.ProjectID, op.EnvVarID); err != nil {
			return nil, err
		}
		id := op.EnvVarID
		return &id, nil

	default:
		return nil, fmt.Errorf("unsupported operation %T", c.Operation)
	}
}

// resolve returns the job id of a reference, looking up jobs created
// earlier in this run when the id was unknown at plan time.
func (r *run) resolve(ref changeset.JobRef) (int, error) {
	if ref.Resolved() {
		return *ref.ID, nil
	}
	if id, ok := r.pending.get(ref.Identifier); ok {
		return id, nil
	}
	return 0, &ports.RemoteError{
		Op:  "upsert env var",
		Err: fmt.Errorf("job %s has no remote id: it was not created", ref.Identifier),
	}
}
