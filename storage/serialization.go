// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package storage

import (
	"encoding/binary"
	"fmt"

	"github.com/poiesic/newsrag/core"
)

// MarshalEmbeddingRecord serializes an EmbeddingRecord to bytes.
func MarshalEmbeddingRecord(record *core.EmbeddingRecord) []byte {
	buf := make([]byte, core.EmbeddingRecordMUS.Size(*record))
	core.EmbeddingRecordMUS.Marshal(*record, buf)
	return buf
}

// UnmarshalEmbeddingRecord deserializes an EmbeddingRecord from bytes.
func UnmarshalEmbeddingRecord(data []byte) (*core.EmbeddingRecord, error) {
	record, _, err := core.EmbeddingRecordMUS.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	// Timestamps decode in the local zone; a zero time stays zero under UTC.
	record.InsertedAt = record.InsertedAt.UTC()
	record.Metadata.Published = record.Metadata.Published.UTC()
	return &record, nil
}

// MarshalDimension serializes a vector dimension.
func MarshalDimension(dim int) []byte {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, uint32(dim))
	return buf
}

// UnmarshalDimension deserializes a vector dimension.
func UnmarshalDimension(data []byte) (int, error) {
	if len(data) != 4 {
		return 0, fmt.Errorf("%w: dimension is %d bytes", ErrSerializationFailed, len(data))
	}
	return int(binary.BigEndian.Uint32(data)), nil
}

// MarshalTimestamp serializes Unix microseconds.
func MarshalTimestamp(us int64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(us))
	return buf
}
