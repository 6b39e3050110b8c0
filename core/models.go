//go:generate go run ../cmd/musgen

package core

import (
	"encoding/binary"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID is a unique identifier for stored records.
// It is derived from content so identical identities produce identical IDs.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// Modality identifies the kind of content an embedding was computed from.
type Modality uint8

const (
	// ModalityText marks embeddings of article text.
	ModalityText Modality = iota + 1
	// ModalityImage marks embeddings of article images.
	ModalityImage
)

// Modalities lists every supported modality in a stable order.
var Modalities = []Modality{ModalityText, ModalityImage}

func (m Modality) String() string {
	switch m {
	case ModalityText:
		return "text"
	case ModalityImage:
		return "image"
	default:
		return fmt.Sprintf("modality(%d)", uint8(m))
	}
}

// ParseModality converts a modality name into a Modality.
func ParseModality(s string) (Modality, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "text":
		return ModalityText, nil
	case "image", "images":
		return ModalityImage, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidModality, s)
	}
}

// CanonicalURL normalizes an article URL into its identity form.
// Scheme and host are lower-cased, query and fragment are dropped and a
// trailing slash on the path is removed.
func CanonicalURL(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("%w: %q is not absolute", ErrInvalidURL, raw)
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.RawQuery = ""
	u.Fragment = ""
	u.RawFragment = ""
	u.User = nil
	u.Path = strings.TrimRight(u.Path, "/")
	u.RawPath = ""
	return u.String(), nil
}

// Article is a single scraped news item.
type Article struct {
	URL       string    // Canonical URL, the article identity
	Title     string
	Body      string
	Published time.Time // Zero when the page carried no usable date
	Images    []string  // Absolute image URLs in document order
	Category  string    // Listing category the article was discovered under
	ScrapedAt time.Time
}

// Identity returns the article identity used by the dedup ledger.
func (a *Article) Identity() string {
	return a.URL
}

// Document returns the text that is embedded for the article.
func (a *Article) Document() string {
	return a.Title + "\n\n" + a.Body
}

// ImageAsset is an image belonging to an article together with a reference
// to its downloaded payload.
type ImageAsset struct {
	ArticleURL  string
	URL         string
	PayloadRef  string // Asset store reference, empty until downloaded
	ContentType string
}

// Identity returns the (article, image) identity of the asset.
func (i *ImageAsset) Identity() string {
	return ImageIdentity(i.ArticleURL, i.URL)
}

// ImageIdentity renders the identity of an image asset.
func ImageIdentity(articleURL, imageURL string) string {
	return articleURL + "#image:" + imageURL
}

// RecordMetadata is the descriptive payload stored next to a vector.
type RecordMetadata struct {
	ArticleURL string
	Title      string
	URL        string
	ImageURL   string // Only set for image records
	Snippet    string
	Published  time.Time
}

// EmbeddingRecord is a vector plus metadata for one (source, modality) pair.
type EmbeddingRecord struct {
	Id         ID
	SourceID   string // Article identity or image asset identity
	Modality   Modality
	Vector     []float32
	Metadata   RecordMetadata
	InsertedAt time.Time
}

// RecordID derives the storage ID for a (source, modality) pair.
func RecordID(sourceID string, modality Modality) ID {
	return IDFromContent(modality.String() + "|" + sourceID)
}

// NewEmbeddingRecord builds a record with its ID derived from source and modality.
func NewEmbeddingRecord(sourceID string, modality Modality, vector []float32, meta RecordMetadata) *EmbeddingRecord {
	return &EmbeddingRecord{
		Id:       RecordID(sourceID, modality),
		SourceID: sourceID,
		Modality: modality,
		Vector:   vector,
		Metadata: meta,
	}
}

// Query is a transient retrieval request.
type Query struct {
	Text      string
	Modality  Modality // Zero means all populated modalities
	Limit     int
	Threshold float32
}

// Neighbor is a raw vector store hit.
type Neighbor struct {
	Record   *EmbeddingRecord
	Distance float32 // Cosine distance, 0 is identical
}

// RankedResult is a retrieval hit with its similarity score.
type RankedResult struct {
	Record *EmbeddingRecord
	Score  float32
}

// Modality returns the modality of the underlying record.
func (r *RankedResult) Modality() Modality {
	return r.Record.Modality
}
