package history

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"

	"github.com/livercare-risk-server/internal/domain"
)

// Write results reported to a WriteObserver.
const (
	WriteOK       = "ok"
	WriteBuffered = "buffered"
	WriteFlushed  = "flushed"
	WriteDropped  = "dropped"
)

// DefaultBufferSize is used when NewFallbackStore is given a non-positive size.
const DefaultBufferSize = 256

// WriteObserver receives history write outcomes
type WriteObserver interface {
	ObserveHistoryWrite(result string)
}

// FallbackStore keeps failed appends in a bounded in-memory buffer and
// replays them on the next successful append or an explicit Flush.
// When the buffer is full the oldest pending record is dropped.
type FallbackStore struct {
	Store
	mu       sync.Mutex
	pending  *lru.Cache[string, *Record]
	draining bool
	observer WriteObserver
	logger   *logrus.Logger
}

// NewFallbackStore wraps store with a buffer of bufferSize records.
func NewFallbackStore(store Store, bufferSize int, logger *logrus.Logger, observer WriteObserver) (*FallbackStore, error) {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}

	f := &FallbackStore{Store: store, observer: observer, logger: logger}
	cache, err := lru.NewWithEvict[string, *Record](bufferSize, f.onEvict)
	if err != nil {
		return nil, fmt.Errorf("failed to create history buffer: %w", err)
	}
	f.pending = cache
	return f, nil
}

func (f *FallbackStore) onEvict(key string, r *Record) {
	// Removals during Flush are deliveries, not drops.
	if f.draining {
		return
	}
	f.logger.WithFields(logrus.Fields{
		"buffer_key": key,
		"user_id":    r.UserID,
	}).Error("History buffer full, dropping pending record")
	f.observe(WriteDropped)
}

// Append writes through to the wrapped store. Validation errors are returned;
// storage errors buffer the record and return nil.
func (f *FallbackStore) Append(ctx context.Context, record *Record) error {
	if err := record.Validate(); err != nil {
		return err
	}

	if err := f.Store.Append(ctx, record); err != nil {
		if domain.IsValidationError(err) {
			return err
		}
		f.buffer(record, err)
		return nil
	}
	f.observe(WriteOK)

	if f.Pending() > 0 {
		if _, err := f.Flush(ctx); err != nil {
			f.logger.WithError(err).Warn("Failed to flush buffered history records")
		}
	}
	return nil
}

func (f *FallbackStore) buffer(record *Record, cause error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	copied := *record
	copied.ID = 0
	f.pending.Add(uuid.New().String(), &copied)

	f.logger.WithError(cause).WithFields(logrus.Fields{
		"user_id": record.UserID,
		"pending": f.pending.Len(),
	}).Warn("History write failed, record buffered")
	f.observe(WriteBuffered)
}

// Flush replays buffered records oldest first and returns how many were written.
// It stops at the first failure and keeps the remaining records.
func (f *FallbackStore) Flush(ctx context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.draining = true
	defer func() { f.draining = false }()

	flushed := 0
	for _, key := range f.pending.Keys() {
		r, ok := f.pending.Peek(key)
		if !ok {
			continue
		}
		if err := f.Store.Append(ctx, r); err != nil {
			return flushed, fmt.Errorf("failed to flush history record: %w", err)
		}
		f.pending.Remove(key)
		flushed++
		f.observe(WriteFlushed)
	}
	return flushed, nil
}

// Pending returns the number of buffered records.
func (f *FallbackStore) Pending() int {
	return f.pending.Len()
}

// Recent merges buffered records of the user into the stored ones.
func (f *FallbackStore) Recent(ctx context.Context, userID int64, limit int) ([]*Record, error) {
	limit = NormalizeLimit(limit)
	buffered := f.bufferedFor(userID)

	stored, err := f.Store.Recent(ctx, userID, limit)
	if err != nil {
		if len(buffered) == 0 {
			return nil, err
		}
		f.logger.WithError(err).Warn("History read failed, serving buffered records only")
		stored = nil
	}

	merged := append(buffered, stored...)
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].CreatedAt.After(merged[j].CreatedAt)
	})
	if len(merged) > limit {
		merged = merged[:limit]
	}
	return merged, nil
}

// Count adds buffered records of the user to the stored count.
func (f *FallbackStore) Count(ctx context.Context, userID int64) (int64, error) {
	n, err := f.Store.Count(ctx, userID)
	if err != nil {
		return 0, err
	}
	return n + int64(len(f.bufferedFor(userID))), nil
}

// ExportJSON flushes pending records first so the export is complete.
func (f *FallbackStore) ExportJSON(ctx context.Context, userID int64, writer io.Writer) error {
	if f.Pending() > 0 {
		if _, err := f.Flush(ctx); err != nil {
			return err
		}
	}
	return f.Store.ExportJSON(ctx, userID, writer)
}

func (f *FallbackStore) bufferedFor(userID int64) []*Record {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []*Record
	for _, key := range f.pending.Keys() {
		if r, ok := f.pending.Peek(key); ok && r.UserID == userID {
			copied := *r
			out = append(out, &copied)
		}
	}
	return out
}

func (f *FallbackStore) observe(result string) {
	if f.observer != nil {
		f.observer.ObserveHistoryWrite(result)
	}
}
