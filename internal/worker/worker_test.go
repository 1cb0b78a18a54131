package worker_test

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/gruntwork-io/canary/internal/worker"
	"github.com/stretchr/testify/require"
)

var errCaseFailed = errors.New("case failed")

func TestAllTasksCompleteWithoutErrors(t *testing.T) {
	t.Parallel()

	wp := worker.NewWorkerPool(4)
	defer wp.Stop()

	var counter int32

	for range 20 {
		wp.Submit(func() error {
			atomic.AddInt32(&counter, 1)
			return nil
		})
	}

	require.NoError(t, wp.Wait())
	require.EqualValues(t, 20, atomic.LoadInt32(&counter))
}

func TestErrorsFromSomeTasksAreCombined(t *testing.T) {
	t.Parallel()

	wp := worker.NewWorkerPool(3)
	defer wp.Stop()

	for i := range 9 {
		i := i
		wp.Submit(func() error {
			if i%3 == 0 {
				return errCaseFailed
			}

			return nil
		})
	}

	err := wp.Wait()
	require.Error(t, err)
}

func TestWaitIsReusableAcrossSubmissionRounds(t *testing.T) {
	t.Parallel()

	wp := worker.NewWorkerPool(2)
	defer wp.Stop()

	var counter int32

	for round := range 3 {
		for range 5 {
			wp.Submit(func() error {
				atomic.AddInt32(&counter, 1)
				return nil
			})
		}

		require.NoError(t, wp.Wait())
		require.EqualValues(t, (round+1)*5, atomic.LoadInt32(&counter))
	}
}

func TestSingleWorkerPoolSerializesTasks(t *testing.T) {
	t.Parallel()

	wp := worker.NewWorkerPool(1)
	defer wp.Stop()

	var order []int

	var mu sync.Mutex

	for i := range 5 {
		i := i
		wp.Submit(func() error {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()

			return nil
		})
	}

	require.NoError(t, wp.Wait())
	require.Equal(t, []int{0, 1, 2, 3, 4}, order)
}
