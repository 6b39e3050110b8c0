package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/poiesic/newsrag/core"
	"github.com/poiesic/newsrag/search"
)

// QueryRequest is the body of POST /api/query. Zero values fall back to
// the configured retrieval defaults.
type QueryRequest struct {
	Query     string   `json:"query" binding:"required"`
	Limit     int      `json:"limit"`
	Threshold *float32 `json:"threshold"`
	Modality  string   `json:"modality"`
}

// Result is one retrieved record in a response.
type Result struct {
	Modality  string     `json:"modality"`
	Score     float32    `json:"score"`
	Title     string     `json:"title"`
	URL       string     `json:"url"`
	ImageURL  string     `json:"image_url,omitempty"`
	Snippet   string     `json:"snippet"`
	Published *time.Time `json:"published,omitempty"`
}

// QueryResponse is the body returned by POST /api/query.
type QueryResponse struct {
	Answer       string              `json:"answer"`
	NoContext    bool                `json:"no_context"`
	Unanswerable bool                `json:"unanswerable"`
	Results      []Result            `json:"results"`
	Groups       map[string][]Result `json:"groups,omitempty"`
}

func (s *Server) handleQuery(c *gin.Context) {
	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	q := s.answerer.Query(req.Query)
	if req.Limit > 0 {
		q.Limit = req.Limit
	}
	if req.Threshold != nil {
		if *req.Threshold < 0 || *req.Threshold > 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "threshold must be between 0 and 1"})
			return
		}
		q.Threshold = *req.Threshold
	}
	if req.Modality != "" {
		m, err := core.ParseModality(req.Modality)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		q.Modality = m
	}

	ctx := c.Request.Context()
	answer, err := s.answerer.AnswerQuery(ctx, q)
	if err != nil {
		s.fail(c, err)
		return
	}

	resp := QueryResponse{
		Answer:       answer.Text,
		NoContext:    answer.NoContext,
		Unanswerable: answer.Unanswerable,
		Results:      toResults(answer.Results),
	}
	if s.grouped {
		groups, err := s.answerer.Retriever().RetrieveGrouped(ctx, q)
		if err != nil {
			s.fail(c, err)
			return
		}
		resp.Groups = make(map[string][]Result, len(groups))
		for m, results := range groups {
			resp.Groups[m.String()] = toResults(results)
		}
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleStats(c *gin.Context) {
	stats, err := s.stats.Stats(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}

	records := gin.H{}
	for _, m := range core.Modalities {
		records[m.String()] = stats.Records[m]
	}
	c.JSON(http.StatusOK, gin.H{
		"records": records,
		"total":   stats.Total(),
	})
}

// fail maps an error to a status code and a client-safe message.
func (s *Server) fail(c *gin.Context, err error) {
	status, message := http.StatusInternalServerError, "internal error"
	switch {
	case errors.Is(err, search.ErrEmptyQuery), errors.Is(err, core.ErrInvalidModality):
		status, message = http.StatusBadRequest, err.Error()
	case errors.Is(err, core.ErrVectorStoreUnavailable):
		status, message = http.StatusServiceUnavailable, core.ErrVectorStoreUnavailable.Error()
	case errors.Is(err, core.ErrEmbeddingUnavailable):
		status, message = http.StatusServiceUnavailable, core.ErrEmbeddingUnavailable.Error()
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "path", c.FullPath(), "err", err)
	}
	c.JSON(status, gin.H{"error": message})
}

func toResults(results []*core.RankedResult) []Result {
	out := make([]Result, 0, len(results))
	for _, r := range results {
		meta := r.Record.Metadata
		res := Result{
			Modality: r.Modality().String(),
			Score:    r.Score,
			Title:    meta.Title,
			URL:      meta.URL,
			ImageURL: meta.ImageURL,
			Snippet:  meta.Snippet,
		}
		if !meta.Published.IsZero() {
			published := meta.Published.UTC()
			res.Published = &published
		}
		out = append(out, res)
	}
	return out
}
