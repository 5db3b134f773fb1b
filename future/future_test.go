package future

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	amperrors "github.com/amp-labs/statechart/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

type rejectingExecutor struct{}

func (rejectingExecutor) Go(func()) error { return errors.New("pool stopped") }

type inlineExecutor struct{}

func (inlineExecutor) Go(task func()) error {
	task()

	return nil
}

func TestPromiseFirstCompletionWins(t *testing.T) {
	t.Parallel()

	fut, promise := New[int]()
	promise.Success(1)
	promise.Failure(errBoom)
	promise.Success(2)

	v, err := fut.Await()
	require.NoError(t, err)
	assert.Equal(t, 1, v)
}

func TestRunWithoutExecutor(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("value", func(t *testing.T) {
		t.Parallel()

		v, err := Run(ctx, nil, func(context.Context) (string, error) { return "ok", nil }).Await()
		require.NoError(t, err)
		assert.Equal(t, "ok", v)
	})

	t.Run("error", func(t *testing.T) {
		t.Parallel()

		_, err := Run(ctx, nil, func(context.Context) (string, error) { return "", errBoom }).Await()
		require.ErrorIs(t, err, errBoom)
	})

	t.Run("panic", func(t *testing.T) {
		t.Parallel()

		_, err := Run(ctx, nil, func(context.Context) (string, error) { panic("kaput") }).Await()
		require.ErrorIs(t, err, amperrors.ErrPanicRecovery)
		assert.Contains(t, err.Error(), "kaput")
	})
}

func TestRunWithExecutor(t *testing.T) {
	t.Parallel()

	fut := Run(context.Background(), inlineExecutor{}, func(context.Context) (int, error) { return 7, nil })
	v, err := fut.Await()
	require.NoError(t, err)
	assert.Equal(t, 7, v)

	_, err = Run(context.Background(), rejectingExecutor{}, func(context.Context) (int, error) {
		return 0, nil
	}).Await()
	require.ErrorIs(t, err, ErrRejected)
}

func TestCancel(t *testing.T) {
	t.Parallel()

	started := make(chan struct{})
	observed := make(chan error, 1)

	fut := Run(context.Background(), nil, func(ctx context.Context) (int, error) {
		close(started)
		<-ctx.Done()
		observed <- ctx.Err()

		return 42, nil
	})

	<-started
	assert.True(t, fut.Cancel())
	assert.False(t, fut.Cancel())
	assert.True(t, fut.IsCancelled())

	_, err := fut.Await()
	require.ErrorIs(t, err, ErrCancelled)

	select {
	case err := <-observed:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("producer context was not cancelled")
	}
}

func TestCancelAfterCompletionKeepsResult(t *testing.T) {
	t.Parallel()

	fut, promise := New[int]()
	promise.Success(3)

	fut.Cancel()

	v, err := fut.Await()
	require.NoError(t, err)
	assert.Equal(t, 3, v)
}

func TestCallbacks(t *testing.T) {
	t.Parallel()

	fut, promise := New[int]()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		results []Result[int]
	)

	record := func(res Result[int]) {
		mu.Lock()
		defer mu.Unlock()

		results = append(results, res)

		wg.Done()
	}

	wg.Add(2)
	fut.OnResult(record)
	fut.OnResult(record)

	promise.Success(1)
	wg.Wait()

	// Registering after resolution still fires.
	wg.Add(1)
	fut.OnResult(record)
	wg.Wait()

	require.Len(t, results, 3)

	for _, res := range results {
		assert.True(t, res.IsSuccess())
		assert.Equal(t, 1, res.Value)
	}
}

func TestCallbackSeesFailure(t *testing.T) {
	t.Parallel()

	fut, promise := New[int]()
	got := make(chan Result[int], 1)

	fut.OnResult(func(res Result[int]) { got <- res })
	promise.Failure(errBoom)

	select {
	case res := <-got:
		assert.False(t, res.IsSuccess())
		require.ErrorIs(t, res.Error, errBoom)
	case <-time.After(time.Second):
		t.Fatal("result callback did not run")
	}
}

func TestCallbackPanicIsContained(t *testing.T) {
	t.Parallel()

	fut, promise := New[int]()
	done := make(chan struct{})

	fut.OnResult(func(Result[int]) { panic("callback") })
	fut.OnResult(func(Result[int]) { close(done) })

	promise.Success(1)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("result callback did not run")
	}
}
