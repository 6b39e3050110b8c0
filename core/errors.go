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


package core

import (
	"errors"
	"fmt"
	"net/http"
)

// Pipeline error taxonomy
var (
	// ErrTransientNetwork indicates a retryable fetch failure (timeout, 5xx, 429).
	ErrTransientNetwork = errors.New("transient network error")

	// ErrPermanentHTTP indicates a fetch failure that must not be retried (404, 410, other 4xx).
	ErrPermanentHTTP = errors.New("permanent http error")

	// ErrParseFailure indicates an article page could not be turned into an Article.
	ErrParseFailure = errors.New("article parse failure")

	// ErrEmbeddingUnavailable indicates an embedding could not be produced.
	ErrEmbeddingUnavailable = errors.New("embedding unavailable")

	// ErrVectorStoreUnavailable indicates the vector store could not serve a request.
	ErrVectorStoreUnavailable = errors.New("retrieval backend unavailable")

	// ErrConfiguration indicates invalid configuration. Always fatal.
	ErrConfiguration = errors.New("configuration error")

	// ErrDimensionMismatch indicates a vector whose dimension differs from its modality's index.
	ErrDimensionMismatch = fmt.Errorf("%w: embedding dimension mismatch", ErrConfiguration)

	// ErrBatchAborted indicates an ingestion run stopped because too many items failed.
	ErrBatchAborted = errors.New("batch aborted")

	// ErrUnableToAnswer indicates the synthesizer could not answer from the supplied context.
	ErrUnableToAnswer = errors.New("unable to answer")
)

// Domain validation errors
var (
	// ErrInvalidArticle indicates an Article failed validation.
	ErrInvalidArticle = errors.New("invalid article")

	// ErrInvalidRecord indicates an EmbeddingRecord failed validation.
	ErrInvalidRecord = errors.New("invalid embedding record")

	// ErrInvalidURL indicates a URL is not absolute or cannot be parsed.
	ErrInvalidURL = errors.New("invalid url")

	// ErrInvalidModality indicates an unknown modality value.
	ErrInvalidModality = errors.New("invalid modality")

	// ErrEmptyTitle indicates the Title field is empty.
	ErrEmptyTitle = errors.New("title cannot be empty")

	// ErrEmptyContent indicates the Body field is empty.
	ErrEmptyContent = errors.New("content cannot be empty")

	// ErrEmptyVector indicates a record has no vector.
	ErrEmptyVector = errors.New("vector cannot be empty")
)

// HTTPError describes a failed HTTP exchange. It unwraps to ErrTransientNetwork
// or ErrPermanentHTTP depending on the status code.
type HTTPError struct {
	URL        string
	StatusCode int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("GET %s: %d %s", e.URL, e.StatusCode, http.StatusText(e.StatusCode))
}

// Unwrap classifies the status code.
func (e *HTTPError) Unwrap() error {
	if IsTransientStatus(e.StatusCode) {
		return ErrTransientNetwork
	}
	return ErrPermanentHTTP
}

// IsTransientStatus reports whether an HTTP status is worth retrying.
func IsTransientStatus(code int) bool {
	return code == http.StatusTooManyRequests || code == http.StatusRequestTimeout || code >= 500
}
