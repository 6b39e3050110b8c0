package badger

import (
	"encoding/binary"

	"github.com/poiesic/newsrag/core"
)

// Key prefixes for different data types
const (
	vectorRecordPrefix = "vecrec"
	vectorDimPrefix    = "vecdim"
	ledgerPrefix       = "ledger"
)

// makeVectorPrefix generates the iteration prefix for one modality.
// Format: prefix:modality:
func makeVectorPrefix(modality core.Modality) []byte {
	prefix := vectorRecordPrefix + ":"
	buf := make([]byte, len(prefix)+2)
	offset := copy(buf, prefix)
	buf[offset] = byte(modality)
	buf[offset+1] = ':'
	return buf
}

// makeVectorKey generates a key for an embedding record.
// Format: prefix:modality:id
func makeVectorKey(modality core.Modality, id core.ID) []byte {
	prefix := makeVectorPrefix(modality)
	buf := make([]byte, len(prefix)+8)
	offset := copy(buf, prefix)
	binary.BigEndian.PutUint64(buf[offset:], uint64(id))
	return buf
}

// makeDimensionKey generates the key holding a modality's fixed dimension.
func makeDimensionKey(modality core.Modality) []byte {
	return []byte(vectorDimPrefix + ":" + modality.String())
}

// makeLedgerKey generates a key for a ledger identity.
// Format: prefix:identity
func makeLedgerKey(identity string) []byte {
	return []byte(ledgerPrefix + ":" + identity)
}

func makeLedgerPrefix() []byte {
	return []byte(ledgerPrefix + ":")
}
