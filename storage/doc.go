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


// Package storage provides the storage abstraction layer for newsrag.
//
// This package defines the interfaces that decouple persistence from the
// scraping, ingestion and retrieval logic:
//
//   - VectorStore: embedding records and nearest-neighbor queries
//   - Ledger: the set of article identities that were fully ingested
//   - ArticleStore: scraped articles waiting to be embedded
//
// # Implementations
//
//   - storage/badger: VectorStore and Ledger on BadgerDB (the default)
//   - storage/redis: Ledger on a Redis set, for deployments that share the
//     ledger between hosts
//   - storage/sqlite: ArticleStore on SQLite
//
// # Constructor Return Type Pattern
//
// Public constructors return interfaces:
//
//	store, err := badger.NewVectorStore(backend)  // returns storage.VectorStore
//
// # Ordering Guarantee
//
// The ingestion job records an identity in the Ledger only after every
// record derived from it has been accepted by the VectorStore. Readers may
// therefore treat Ledger membership as proof that the article is searchable.
//
// # Thread Safety
//
// All implementations must be thread-safe and support concurrent access
// from multiple goroutines. VectorStore writes are serialized internally.
package storage
