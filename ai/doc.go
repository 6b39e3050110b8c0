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


// Package ai provides abstractions for the model services used by newsrag.
//
// The package defines three interfaces:
//
//   - Embedder: text embeddings, image embeddings and text-to-image-space
//     query embeddings
//   - Synthesizer: answers a question from retrieved context
//   - AIProvider: aggregates the services for initialization and shutdown
//
// # Implementation Packages
//
//   - ai/openai: OpenAI-compatible APIs through langchaingo
//   - ai/mock: deterministic test doubles
//
// Public constructors (openai.NewProvider, openai.NewEmbedder) return
// interface types. Mock constructors return concrete types so tests can
// inspect call counts and inject behavior:
//
//	provider := mock.NewMockProvider()
//	provider.GetMockEmbedder().EmbedTextFunc = func(ctx context.Context, s string) ([]float32, error) {
//	    return nil, core.ErrEmbeddingUnavailable
//	}
//
// # Errors
//
// Every embedding failure, whether caused by invalid input or by the backend,
// wraps core.ErrEmbeddingUnavailable so ingestion can count and skip the
// affected entity.
package ai
