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

import "errors"

var (
	// ErrStorageClosed is returned by stores used after their backend closed.
	ErrStorageClosed = errors.New("storage is closed")

	// ErrInvalidQuery covers bad neighbor queries and empty ledger identities.
	ErrInvalidQuery = errors.New("invalid query parameters")

	// ErrSerializationFailed wraps record and dimension decoding failures.
	ErrSerializationFailed = errors.New("serialization failed")

	// ErrBackendRequired indicates a store was constructed without a backend.
	ErrBackendRequired = errors.New("storage backend is required")
)
