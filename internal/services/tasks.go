package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

const defaultTaskTimeout = 15 * time.Second

type TaskError struct {
	Name string
	Err  error
}

func (e TaskError) Error() string { return fmt.Sprintf("task %s: %v", e.Name, e.Err) }

// TaskRunner runs best-effort side effects detached from the request that
// triggered them. Failures go to Errors() and never reach the caller.
type TaskRunner struct {
	wg      sync.WaitGroup
	errs    chan TaskError
	timeout time.Duration
}

func NewTaskRunner(buffer int) *TaskRunner {
	if buffer <= 0 {
		buffer = 64
	}
	return &TaskRunner{
		errs:    make(chan TaskError, buffer),
		timeout: defaultTaskTimeout,
	}
}

// Go starts fn in its own goroutine with a fresh context; the caller's
// context may already be cancelled when the task runs.
func (r *TaskRunner) Go(name string, fn func(ctx context.Context) error) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()

		defer func() {
			if p := recover(); p != nil {
				r.report(TaskError{Name: name, Err: fmt.Errorf("panic: %v", p)})
			}
		}()

		if err := fn(ctx); err != nil {
			r.report(TaskError{Name: name, Err: err})
		}
	}()
}

func (r *TaskRunner) report(te TaskError) {
	select {
	case r.errs <- te:
	default:
		log.Error().Str("task", te.Name).Err(te.Err).Msg("[TASKS] error channel full")
	}
}

func (r *TaskRunner) Errors() <-chan TaskError {
	return r.errs
}

// LogErrors drains the error channel into the log until ctx is done.
func (r *TaskRunner) LogErrors(ctx context.Context) {
	for {
		select {
		case te := <-r.errs:
			log.Warn().Str("task", te.Name).Err(te.Err).Msg("[TASKS] background task failed")
		case <-ctx.Done():
			return
		}
	}
}

// Wait blocks until every started task has returned.
func (r *TaskRunner) Wait() {
	r.wg.Wait()
}
