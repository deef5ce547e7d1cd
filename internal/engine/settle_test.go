package engine

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllSettled_WaitsForEveryTask(t *testing.T) {
	var finished atomic.Int32
	items := []int{30, 10, 20}

	errs := allSettled(context.Background(), items, func(_ context.Context, ms int) error {
		time.Sleep(time.Duration(ms) * time.Millisecond)
		finished.Add(1)
		return nil
	})

	assert.Equal(t, int32(3), finished.Load())
	assert.Equal(t, []error{nil, nil, nil}, errs)
}

func TestAllSettled_FailureDoesNotCancelSiblings(t *testing.T) {
	boom := errors.New("boom")
	var finished atomic.Int32

	errs := allSettled(context.Background(), []string{"a", "b", "c"}, func(ctx context.Context, s string) error {
		if s == "a" {
			return boom
		}
		time.Sleep(10 * time.Millisecond)
		assert.NoError(t, ctx.Err())
		finished.Add(1)
		return nil
	})

	assert.ErrorIs(t, errs[0], boom)
	assert.NoError(t, errs[1])
	assert.NoError(t, errs[2])
	assert.Equal(t, int32(2), finished.Load())
}

func TestAllSettled_RecoversPanic(t *testing.T) {
	errs := allSettled(context.Background(), []int{1, 2}, func(_ context.Context, n int) error {
		if n == 1 {
			panic("bad device")
		}
		return nil
	})

	require.Error(t, errs[0])
	assert.Contains(t, errs[0].Error(), "bad device")
	assert.NoError(t, errs[1])
}

func TestAllSettled_Empty(t *testing.T) {
	errs := allSettled(context.Background(), []int(nil), func(context.Context, int) error {
		t.Error("fn must not be called")
		return nil
	})
	assert.Empty(t, errs)
}
