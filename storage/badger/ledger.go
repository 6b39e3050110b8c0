package badger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/newsrag/storage"
)

// Ledger implements storage.Ledger for BadgerDB.
// Each identity is one key whose value is the Unix microsecond time it was recorded.
type Ledger struct {
	backend *Backend
}

var _ storage.Ledger = (*Ledger)(nil)

// NewLedger creates a Ledger on an open backend.
// The caller keeps ownership of the backend.
func NewLedger(backend *Backend) (storage.Ledger, error) {
	if backend == nil {
		return nil, storage.ErrBackendRequired
	}
	return &Ledger{backend: backend}, nil
}

// Close is a no-op; the backend is owned by the caller.
func (l *Ledger) Close() error {
	return nil
}

// Seen reports whether an identity has been recorded.
func (l *Ledger) Seen(ctx context.Context, identity string) (bool, error) {
	if l.backend.IsClosed() {
		return false, storage.ErrStorageClosed
	}
	seen := false
	err := l.backend.WithTx(func(tx *badger.Txn) error {
		_, err := tx.Get(makeLedgerKey(identity))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			return err
		}
		seen = true
		return nil
	}, false)
	return seen, err
}

// Record adds identities to the ledger. Existing entries keep their original timestamp.
func (l *Ledger) Record(ctx context.Context, identities ...string) error {
	if len(identities) == 0 {
		return nil
	}
	if l.backend.IsClosed() {
		return storage.ErrStorageClosed
	}
	now := time.Now().UTC().UnixMicro()
	return l.backend.WithTx(func(tx *badger.Txn) error {
		for _, identity := range identities {
			if identity == "" {
				return fmt.Errorf("%w: empty ledger identity", storage.ErrInvalidQuery)
			}
			key := makeLedgerKey(identity)
			if _, err := tx.Get(key); err == nil {
				continue
			} else if !errors.Is(err, badger.ErrKeyNotFound) {
				return err
			}
			if err := tx.Set(key, storage.MarshalTimestamp(now)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// Count returns the number of recorded identities.
func (l *Ledger) Count(ctx context.Context) (int, error) {
	if l.backend.IsClosed() {
		return 0, storage.ErrStorageClosed
	}
	return l.backend.countPrefix(makeLedgerPrefix())
}
