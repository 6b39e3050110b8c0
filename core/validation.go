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
	"fmt"
	"strings"
)

// ValidateArticle validates an Article according to domain rules.
//
// Validation rules:
//   - URL must be in canonical form
//   - Title must not be blank
//   - Body must not be blank
//
// NOT validated:
//   - Published (zero means unknown)
//   - Images (articles without images are valid)
func ValidateArticle(article *Article) error {
	if article == nil {
		return fmt.Errorf("%w: article is nil", ErrInvalidArticle)
	}

	canonical, err := CanonicalURL(article.URL)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidArticle, err)
	}
	if canonical != article.URL {
		return fmt.Errorf("%w: %w: %q is not canonical", ErrInvalidArticle, ErrInvalidURL, article.URL)
	}

	if strings.TrimSpace(article.Title) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidArticle, ErrEmptyTitle)
	}

	if strings.TrimSpace(article.Body) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidArticle, ErrEmptyContent)
	}

	return nil
}

// ValidateEmbeddingRecord validates an EmbeddingRecord before it is stored.
//
// Validation rules:
//   - SourceID must not be empty
//   - Modality must be valid
//   - Vector must not be empty
//   - Id must match the (SourceID, Modality) pair
func ValidateEmbeddingRecord(record *EmbeddingRecord) error {
	if record == nil {
		return fmt.Errorf("%w: record is nil", ErrInvalidRecord)
	}

	if record.SourceID == "" {
		return fmt.Errorf("%w: source id is empty", ErrInvalidRecord)
	}

	if err := ValidateModality(record.Modality); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRecord, err)
	}

	if len(record.Vector) == 0 {
		return fmt.Errorf("%w: %w", ErrInvalidRecord, ErrEmptyVector)
	}

	if record.Id != RecordID(record.SourceID, record.Modality) {
		return fmt.Errorf("%w: id %d does not match source %q", ErrInvalidRecord, record.Id, record.SourceID)
	}

	return nil
}

// ValidateModality validates that a Modality has a known value.
func ValidateModality(m Modality) error {
	if m != ModalityText && m != ModalityImage {
		return fmt.Errorf("%w: value %d", ErrInvalidModality, m)
	}
	return nil
}
