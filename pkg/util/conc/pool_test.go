package conc

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPool(t *testing.T) {
	pool := NewDefaultPool[int]()
	defer pool.Release()

	futures := make([]*Future[int], 0, 10)
	for i := 0; i < 10; i++ {
		res := i
		futures = append(futures, pool.Submit(func() (int, error) {
			time.Sleep(time.Millisecond)
			return res, nil
		}))
	}
	require.NoError(t, AwaitAll(futures...))
	for i, f := range futures {
		assert.Equal(t, i, f.Value())
		assert.True(t, f.OK())
	}
	assert.Positive(t, pool.Cap())
}

func TestPoolError(t *testing.T) {
	pool := NewPool[string](2)
	defer pool.Release()

	errBoom := errors.New("boom")
	ok := pool.Submit(func() (string, error) { return "ok", nil })
	bad := pool.Submit(func() (string, error) { return "", errBoom })

	err := AwaitAll(ok, bad)
	assert.ErrorIs(t, err, errBoom)
	v, err := ok.Await()
	assert.NoError(t, err)
	assert.Equal(t, "ok", v)
	<-bad.Inner()
	assert.False(t, bad.OK())
}

func TestPoolConcealPanic(t *testing.T) {
	pool := NewPool[int](1, WithConcealPanic(true))
	defer pool.Release()

	f := pool.Submit(func() (int, error) {
		panic("task failed")
	})
	assert.Error(t, f.Err())

	calls := 0
	pool2 := NewPool[int](1, WithPreHandler(func() { calls++ }), WithExpiryDuration(time.Second))
	defer pool2.Release()
	_, err := pool2.Submit(func() (int, error) { return 1, nil }).Await()
	assert.NoError(t, err)
	assert.Equal(t, 1, calls)
}
