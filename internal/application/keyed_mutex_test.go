package application

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyedMutex_SerializesSameKey(t *testing.T) {
	km := newKeyedMutex()
	ctx := context.Background()

	unlock, err := km.Lock(ctx, "A-1/M")
	require.NoError(t, err)

	acquired := make(chan struct{})
	go func() {
		u, err := km.Lock(ctx, "A-1/M")
		if err == nil {
			close(acquired)
			u()
		}
	}()

	select {
	case <-acquired:
		t.Fatal("second holder acquired a held key")
	case <-time.After(50 * time.Millisecond):
	}

	unlock()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("waiter never acquired the released key")
	}
}

func TestKeyedMutex_IndependentKeys(t *testing.T) {
	km := newKeyedMutex()
	ctx := context.Background()

	u1, err := km.Lock(ctx, "A-1/M")
	require.NoError(t, err)
	u2, err := km.Lock(ctx, "A-1/L")
	require.NoError(t, err)

	assert.Equal(t, 2, km.size())
	u1()
	u2()
	assert.Equal(t, 0, km.size())
}

func TestKeyedMutex_ContextCancelled(t *testing.T) {
	km := newKeyedMutex()
	unlock, err := km.Lock(context.Background(), "k")
	require.NoError(t, err)
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = km.Lock(ctx, "k")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, km.size())
}

func TestKeyedMutex_LockAll(t *testing.T) {
	km := newKeyedMutex()
	ctx := context.Background()

	unlock, err := km.LockAll(ctx, []string{"A-1/M", "A-1/L", "A-1/S"})
	require.NoError(t, err)
	assert.Equal(t, 3, km.size())

	unlock()
	assert.Equal(t, 0, km.size())
}

func TestKeyedMutex_LockAllReleasesOnFailure(t *testing.T) {
	km := newKeyedMutex()
	held, err := km.Lock(context.Background(), "A-1/M")
	require.NoError(t, err)
	defer held()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = km.LockAll(ctx, []string{"A-1/M", "A-1/L"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, km.size())
}
