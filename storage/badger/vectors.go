package badger

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/newsrag/core"
	"github.com/poiesic/newsrag/storage"
)

// VectorStore implements storage.VectorStore for BadgerDB.
// Records are keyed by modality and record ID, so an upsert of the same
// (source, modality) pair overwrites in place. Queries scan the modality
// prefix inside a read transaction and therefore see a consistent snapshot.
type VectorStore struct {
	backend *Backend
	writeMu sync.Mutex
	closed  bool
	logger  *slog.Logger
}

var _ storage.VectorStore = (*VectorStore)(nil)

// newVectorStore is an internal constructor that returns the concrete type.
func newVectorStore(backend *Backend) (*VectorStore, error) {
	if backend == nil {
		return nil, storage.ErrBackendRequired
	}
	return &VectorStore{
		backend: backend,
		logger:  slog.Default().With("component", "vector-store"),
	}, nil
}

// NewVectorStore creates a VectorStore on an open backend.
// The caller keeps ownership of the backend.
func NewVectorStore(backend *Backend) (storage.VectorStore, error) {
	store, err := newVectorStore(backend)
	if err != nil {
		return nil, err
	}
	return store, nil
}

// Close marks the store closed. The backend is left open.
func (s *VectorStore) Close() error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.closed = true
	return nil
}

func (s *VectorStore) checkOpen() error {
	if s.closed || s.backend.IsClosed() {
		return fmt.Errorf("%w: %w", core.ErrVectorStoreUnavailable, storage.ErrStorageClosed)
	}
	return nil
}

// Upsert stores records atomically, replacing existing records with the same ID.
func (s *VectorStore) Upsert(ctx context.Context, records ...*core.EmbeddingRecord) error {
	if len(records) == 0 {
		return nil
	}
	for _, record := range records {
		if err := core.ValidateEmbeddingRecord(record); err != nil {
			return err
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.checkOpen(); err != nil {
		return err
	}

	err := s.backend.WithTx(func(tx *badger.Txn) error {
		dims := make(map[core.Modality]int)
		for _, record := range records {
			if err := s.checkDimension(tx, dims, record); err != nil {
				return err
			}

			key := makeVectorKey(record.Modality, record.Id)
			if record.InsertedAt.IsZero() {
				record.InsertedAt = time.Now().UTC()
			}
			if err := tx.Set(key, storage.MarshalEmbeddingRecord(record)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
	if err != nil {
		if errors.Is(err, core.ErrDimensionMismatch) {
			return err
		}
		return fmt.Errorf("%w: %w", core.ErrVectorStoreUnavailable, err)
	}

	s.logger.Debug("upserted records", "count", len(records))
	return nil
}

// checkDimension fixes the modality's dimension on first write and rejects
// vectors of any other length afterwards.
func (s *VectorStore) checkDimension(tx *badger.Txn, dims map[core.Modality]int, record *core.EmbeddingRecord) error {
	dim, ok := dims[record.Modality]
	if !ok {
		stored, found, err := readDimension(tx, record.Modality)
		if err != nil {
			return err
		}
		if !found {
			stored = len(record.Vector)
			if err := tx.Set(makeDimensionKey(record.Modality), storage.MarshalDimension(stored)); err != nil {
				return err
			}
			s.logger.Info("fixed index dimension", "modality", record.Modality, "dimension", stored)
		}
		dim = stored
		dims[record.Modality] = dim
	}

	if len(record.Vector) != dim {
		return fmt.Errorf("%w: %s index has dimension %d, record %q has %d",
			core.ErrDimensionMismatch, record.Modality, dim, record.SourceID, len(record.Vector))
	}
	return nil
}

func readDimension(tx *badger.Txn, modality core.Modality) (int, bool, error) {
	item, err := tx.Get(makeDimensionKey(modality))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return 0, false, nil
		}
		return 0, false, err
	}
	var dim int
	err = item.Value(func(val []byte) error {
		var unmarshalErr error
		dim, unmarshalErr = storage.UnmarshalDimension(val)
		return unmarshalErr
	})
	return dim, err == nil, err
}

// Query returns the k nearest records of one modality.
func (s *VectorStore) Query(ctx context.Context, vector []float32, modality core.Modality, k int) ([]core.Neighbor, error) {
	if err := core.ValidateModality(modality); err != nil {
		return nil, fmt.Errorf("%w: %w", storage.ErrInvalidQuery, err)
	}
	if k <= 0 {
		return nil, fmt.Errorf("%w: k must be positive, got %d", storage.ErrInvalidQuery, k)
	}
	if len(vector) == 0 {
		return nil, fmt.Errorf("%w: empty query vector", storage.ErrInvalidQuery)
	}
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	var neighbors []core.Neighbor
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		dim, found, err := readDimension(tx, modality)
		if err != nil {
			return err
		}
		if !found {
			return nil
		}
		if dim != len(vector) {
			return fmt.Errorf("%w: %s index has dimension %d, query has %d",
				core.ErrDimensionMismatch, modality, dim, len(vector))
		}

		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeVectorPrefix(modality)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}

			var record *core.EmbeddingRecord
			err := iter.Item().Value(func(val []byte) error {
				var err error
				record, err = storage.UnmarshalEmbeddingRecord(val)
				return err
			})
			if err != nil {
				return err
			}

			neighbors = append(neighbors, core.Neighbor{
				Record:   record,
				Distance: cosineDistance(vector, record.Vector),
			})
		}
		return nil
	}, false)
	if err != nil {
		if errors.Is(err, core.ErrDimensionMismatch) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", core.ErrVectorStoreUnavailable, err)
	}

	slices.SortFunc(neighbors, func(a, b core.Neighbor) int {
		if c := cmp.Compare(a.Distance, b.Distance); c != 0 {
			return c
		}
		return cmp.Compare(a.Record.SourceID, b.Record.SourceID)
	})

	if len(neighbors) > k {
		neighbors = neighbors[:k]
	}
	return neighbors, nil
}

// Count returns the number of records stored for a modality.
func (s *VectorStore) Count(ctx context.Context, modality core.Modality) (int, error) {
	if err := s.checkOpen(); err != nil {
		return 0, err
	}
	n, err := s.backend.countPrefix(makeVectorPrefix(modality))
	if err != nil {
		return 0, fmt.Errorf("%w: %w", core.ErrVectorStoreUnavailable, err)
	}
	return n, nil
}

// Stats returns record counts and dimensions per modality.
func (s *VectorStore) Stats(ctx context.Context) (*storage.Stats, error) {
	stats := &storage.Stats{
		Records:    make(map[core.Modality]int),
		Dimensions: make(map[core.Modality]int),
	}
	for _, modality := range core.Modalities {
		n, err := s.Count(ctx, modality)
		if err != nil {
			return nil, err
		}
		stats.Records[modality] = n
	}

	err := s.backend.WithTx(func(tx *badger.Txn) error {
		for _, modality := range core.Modalities {
			dim, found, err := readDimension(tx, modality)
			if err != nil {
				return err
			}
			if found {
				stats.Dimensions[modality] = dim
			}
		}
		return nil
	}, false)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrVectorStoreUnavailable, err)
	}
	return stats, nil
}

// cosineDistance returns 1 - cos(a, b). A zero vector is maximally distant.
func cosineDistance(a, b []float32) float32 {
	var dot, na, nb float64
	minLen := min(len(a), len(b))
	for i := 0; i < minLen; i++ {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 2
	}
	return float32(1 - dot/(math.Sqrt(na)*math.Sqrt(nb)))
}
