package idempotency

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vurksha/backend/internal/infrastructure/store"
)

func TestBeginFirstRequestAcquiresLock(t *testing.T) {
	ctx := context.Background()
	s := New(store.NewMemory(), zap.NewNop())

	res, err := s.Begin(ctx, "key-1")
	require.NoError(t, err)
	assert.Nil(t, res)
}

func TestBeginDuplicateWhileInProgress(t *testing.T) {
	ctx := context.Background()
	s := New(store.NewMemory(), zap.NewNop())

	_, err := s.Begin(ctx, "key-1")
	require.NoError(t, err)

	_, err = s.Begin(ctx, "key-1")
	assert.ErrorIs(t, err, ErrInProgress)
}

func TestCompleteThenReplay(t *testing.T) {
	ctx := context.Background()
	s := New(store.NewMemory(), zap.NewNop())
	body := []byte(`{"success":true,"data":{"orderId":"o-1"}}`)
	at := time.Now().UTC().Truncate(time.Millisecond)

	_, err := s.Begin(ctx, "key-1")
	require.NoError(t, err)
	require.NoError(t, s.Complete(ctx, "key-1", Result{StatusCode: 201, Body: body, Timestamp: at}))

	res, err := s.Begin(ctx, "key-1")
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, 201, res.StatusCode)
	assert.Equal(t, body, res.Body, "replayed body must be byte identical")
	assert.Equal(t, at, res.Timestamp)
}

func TestReleaseAllowsRetry(t *testing.T) {
	ctx := context.Background()
	s := New(store.NewMemory(), zap.NewNop())

	_, err := s.Begin(ctx, "key-1")
	require.NoError(t, err)
	require.NoError(t, s.Release(ctx, "key-1"))

	res, err := s.Begin(ctx, "key-1")
	require.NoError(t, err)
	assert.Nil(t, res, "a released key should execute again, not replay")
}

func TestConcurrentSameKeySingleExecution(t *testing.T) {
	ctx := context.Background()
	s := New(store.NewMemory(), zap.NewNop())

	var executed, rejected atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := s.Begin(ctx, "key-1")
			switch {
			case errors.Is(err, ErrInProgress):
				rejected.Add(1)
			case err == nil && res == nil:
				executed.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), executed.Load())
	assert.Equal(t, int32(7), rejected.Load())
}

type downStore struct {
	store.Store
}

func (downStore) Get(context.Context, string) (string, error) {
	return "", store.ErrUnavailable
}

func (downStore) SetNX(context.Context, string, string, time.Duration) (bool, error) {
	return false, store.ErrUnavailable
}

func TestBeginFailsOpenWhenStoreDown(t *testing.T) {
	ctx := context.Background()
	s := New(downStore{}, zap.NewNop())

	res, err := s.Begin(ctx, "key-1")
	require.NoError(t, err)
	assert.Nil(t, res, "store outage should execute without deduplication")
}
