package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskRunner_ReportsFailuresWithoutStoppingOthers(t *testing.T) {
	r := NewTaskRunner(4)
	var ran atomic.Int32

	r.Go("fails", func(context.Context) error { return errors.New("smtp down") })
	r.Go("panics", func(context.Context) error { panic("nil map") })
	r.Go("works", func(context.Context) error { ran.Add(1); return nil })
	r.Wait()

	assert.EqualValues(t, 1, ran.Load())

	names := map[string]bool{}
	for len(names) < 2 {
		te := <-r.Errors()
		require.Error(t, te.Err)
		names[te.Name] = true
	}
	assert.True(t, names["fails"])
	assert.True(t, names["panics"])
}

func TestTaskRunner_ContextOutlivesCaller(t *testing.T) {
	r := NewTaskRunner(1)
	caller, cancel := context.WithCancel(context.Background())
	cancel()

	var ctxErr error
	r.Go("detached", func(ctx context.Context) error {
		ctxErr = ctx.Err()
		return nil
	})
	r.Wait()

	assert.Error(t, caller.Err())
	assert.NoError(t, ctxErr)
}
