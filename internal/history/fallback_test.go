package history

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/livercare-risk-server/internal/logging"
)

// flakyStore fails appends while down is set.
type flakyStore struct {
	Store
	mu   sync.Mutex
	down bool
}

func (f *flakyStore) setDown(down bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.down = down
}

func (f *flakyStore) Append(ctx context.Context, r *Record) error {
	f.mu.Lock()
	down := f.down
	f.mu.Unlock()
	if down {
		return errors.New("database is locked")
	}
	return f.Store.Append(ctx, r)
}

type countingObserver struct {
	mu      sync.Mutex
	results map[string]int
}

func (c *countingObserver) ObserveHistoryWrite(result string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.results == nil {
		c.results = map[string]int{}
	}
	c.results[result]++
}

func (c *countingObserver) get(result string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.results[result]
}

func newFallbackFixture(t *testing.T, size int) (*FallbackStore, *flakyStore, *countingObserver) {
	t.Helper()
	inner := &flakyStore{Store: createTestStore(t)}
	observer := &countingObserver{}
	store, err := NewFallbackStore(inner, size, logging.Discard(), observer)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store, inner, observer
}

func TestFallbackStore_BuffersFailedAppend(t *testing.T) {
	store, inner, observer := newFallbackFixture(t, 10)
	ctx := context.Background()
	base := time.Now().UTC()

	inner.setDown(true)

	// Act
	err := store.Append(ctx, testRecord(1, 44, base))

	// Assert
	require.NoError(t, err)
	assert.Equal(t, 1, store.Pending())
	assert.Equal(t, 1, observer.get(WriteBuffered))

	records, err := store.Recent(ctx, 1, 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 44.0, records[0].Probability)

	count, err := store.Count(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestFallbackStore_ReplaysOnNextSuccess(t *testing.T) {
	store, inner, observer := newFallbackFixture(t, 10)
	ctx := context.Background()
	base := time.Now().UTC()

	inner.setDown(true)
	require.NoError(t, store.Append(ctx, testRecord(1, 20, base)))
	require.NoError(t, store.Append(ctx, testRecord(2, 30, base.Add(time.Second))))

	inner.setDown(false)
	require.NoError(t, store.Append(ctx, testRecord(1, 80, base.Add(2*time.Second))))

	assert.Equal(t, 0, store.Pending())
	assert.Equal(t, 2, observer.get(WriteFlushed))
	assert.Equal(t, 0, observer.get(WriteDropped))

	records, err := store.Recent(ctx, 1, 10)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, 80.0, records[0].Probability)
	assert.Equal(t, 20.0, records[1].Probability)
	assert.NotZero(t, records[1].ID)
}

func TestFallbackStore_FlushKeepsRemainderOnFailure(t *testing.T) {
	store, inner, _ := newFallbackFixture(t, 10)
	ctx := context.Background()

	inner.setDown(true)
	require.NoError(t, store.Append(ctx, testRecord(1, 20, time.Now())))

	flushed, err := store.Flush(ctx)

	assert.Error(t, err)
	assert.Equal(t, 0, flushed)
	assert.Equal(t, 1, store.Pending())
}

func TestFallbackStore_DropsOldestWhenFull(t *testing.T) {
	store, inner, observer := newFallbackFixture(t, 2)
	ctx := context.Background()
	base := time.Now().UTC()

	inner.setDown(true)
	for i := 0; i < 3; i++ {
		require.NoError(t, store.Append(ctx, testRecord(1, float64(10+i), base.Add(time.Duration(i)*time.Second))))
	}

	assert.Equal(t, 2, store.Pending())
	assert.Equal(t, 1, observer.get(WriteDropped))

	records, err := store.Recent(ctx, 1, 10)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, 12.0, records[0].Probability)
	assert.Equal(t, 11.0, records[1].Probability)
}

func TestFallbackStore_ValidationNotBuffered(t *testing.T) {
	store, _, _ := newFallbackFixture(t, 10)

	err := store.Append(context.Background(), testRecord(0, 20, time.Now()))

	assert.Error(t, err)
	assert.Equal(t, 0, store.Pending())
}
