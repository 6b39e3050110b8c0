package core

import (
	"errors"
	"testing"
)

func TestIDFromContent(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "same content produces same ID", content: "test content"},
		{name: "empty string", content: ""},
		{name: "url", content: "https://www.deeplearning.ai/the-batch/issue-250"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id1 := IDFromContent(tt.content)
			id2 := IDFromContent(tt.content)
			if id1 != id2 {
				t.Errorf("IDFromContent() produced different IDs for same content: %d vs %d", id1, id2)
			}
		})
	}
}

func TestRecordID_DistinctPerModality(t *testing.T) {
	source := "https://example.com/a"
	if RecordID(source, ModalityText) == RecordID(source, ModalityImage) {
		t.Errorf("RecordID() produced same ID for text and image records")
	}
	if RecordID(source, ModalityText) != RecordID(source, ModalityText) {
		t.Errorf("RecordID() is not deterministic")
	}
}

func TestCanonicalURL(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr error
	}{
		{
			name: "already canonical",
			raw:  "https://www.deeplearning.ai/the-batch/issue-1",
			want: "https://www.deeplearning.ai/the-batch/issue-1",
		},
		{
			name: "trailing slash stripped",
			raw:  "https://www.deeplearning.ai/the-batch/issue-1/",
			want: "https://www.deeplearning.ai/the-batch/issue-1",
		},
		{
			name: "query and fragment dropped",
			raw:  "https://www.deeplearning.ai/the-batch/issue-1/?utm_source=x#top",
			want: "https://www.deeplearning.ai/the-batch/issue-1",
		},
		{
			name: "scheme and host lower-cased",
			raw:  "HTTPS://WWW.DeepLearning.AI/The-Batch",
			want: "https://www.deeplearning.ai/The-Batch",
		},
		{
			name: "surrounding whitespace",
			raw:  "  https://example.com/a  ",
			want: "https://example.com/a",
		},
		{
			name:    "relative url",
			raw:     "/the-batch/issue-1",
			wantErr: ErrInvalidURL,
		},
		{
			name:    "garbage",
			raw:     "://",
			wantErr: ErrInvalidURL,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CanonicalURL(tt.raw)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("CanonicalURL() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("CanonicalURL() unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("CanonicalURL() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseModality(t *testing.T) {
	tests := []struct {
		in      string
		want    Modality
		wantErr bool
	}{
		{"text", ModalityText, false},
		{"TEXT", ModalityText, false},
		{"image", ModalityImage, false},
		{"images", ModalityImage, false},
		{"audio", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseModality(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidModality) {
					t.Errorf("ParseModality() error = %v, want ErrInvalidModality", err)
				}
				return
			}
			if got != tt.want {
				t.Errorf("ParseModality() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestArticle_Document(t *testing.T) {
	a := &Article{Title: "Headline", Body: "Paragraph one."}
	if got := a.Document(); got != "Headline\n\nParagraph one." {
		t.Errorf("Document() = %q", got)
	}
}

func TestImageAsset_Identity(t *testing.T) {
	img := &ImageAsset{ArticleURL: "https://example.com/a", URL: "https://cdn.example.com/x.png"}
	want := "https://example.com/a#image:https://cdn.example.com/x.png"
	if got := img.Identity(); got != want {
		t.Errorf("Identity() = %q, want %q", got, want)
	}
}

func TestHTTPError_Classification(t *testing.T) {
	tests := []struct {
		code int
		want error
	}{
		{500, ErrTransientNetwork},
		{502, ErrTransientNetwork},
		{503, ErrTransientNetwork},
		{429, ErrTransientNetwork},
		{408, ErrTransientNetwork},
		{404, ErrPermanentHTTP},
		{410, ErrPermanentHTTP},
		{403, ErrPermanentHTTP},
	}

	for _, tt := range tests {
		err := error(&HTTPError{URL: "https://example.com", StatusCode: tt.code})
		if !errors.Is(err, tt.want) {
			t.Errorf("HTTPError{%d} does not unwrap to %v", tt.code, tt.want)
		}
	}
}

func TestErrDimensionMismatch_IsConfiguration(t *testing.T) {
	if !errors.Is(ErrDimensionMismatch, ErrConfiguration) {
		t.Errorf("ErrDimensionMismatch should be a configuration error")
	}
}
