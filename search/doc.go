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


// Package search provides multimodal retrieval and answer synthesis.
//
// The Retriever embeds a query once per populated modality (the text model
// for text records, the image model's text encoder for image records),
// converts cosine distances into similarities, drops results under the
// threshold and merges them into one deterministic ranking: similarity
// descending, then most recent publication, then source identity.
//
// The Answerer feeds the top results to an ai.Synthesizer. When nothing
// clears the threshold it reports that no context was found instead of
// calling the model.
package search
