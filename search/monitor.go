package search

import (
	"log/slog"

	"github.com/poiesic/newsrag/core"
)

// RetrievalMonitor provides hooks to observe the retrieval process.
// Implement this interface to trace intermediate steps of a query.
type RetrievalMonitor interface {
	Start(query core.Query)
	AfterEmbedding(modality core.Modality, dimensions int)
	AfterNeighbors(modality core.Modality, neighbors []core.Neighbor)
	BelowThreshold(record *core.EmbeddingRecord, score float32)
	Finish(results []*core.RankedResult)
}

// noopMonitor is a no-op implementation of RetrievalMonitor
type noopMonitor struct{}

var _ RetrievalMonitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ core.Query)                               {}
func (n *noopMonitor) AfterEmbedding(_ core.Modality, _ int)            {}
func (n *noopMonitor) AfterNeighbors(_ core.Modality, _ []core.Neighbor) {}
func (n *noopMonitor) BelowThreshold(_ *core.EmbeddingRecord, _ float32) {}
func (n *noopMonitor) Finish(_ []*core.RankedResult)                    {}

// LogMonitor writes each retrieval step to a logger at debug level.
type LogMonitor struct {
	Logger *slog.Logger
}

var _ RetrievalMonitor = (*LogMonitor)(nil)

func (m *LogMonitor) logger() *slog.Logger {
	if m.Logger == nil {
		return slog.Default()
	}
	return m.Logger
}

func (m *LogMonitor) Start(q core.Query) {
	m.logger().Debug("retrieval started", "query", q.Text, "limit", q.Limit, "threshold", q.Threshold)
}

func (m *LogMonitor) AfterEmbedding(modality core.Modality, dimensions int) {
	m.logger().Debug("query embedded", "modality", modality, "dimensions", dimensions)
}

func (m *LogMonitor) AfterNeighbors(modality core.Modality, neighbors []core.Neighbor) {
	m.logger().Debug("neighbors found", "modality", modality, "count", len(neighbors))
}

func (m *LogMonitor) BelowThreshold(record *core.EmbeddingRecord, score float32) {
	m.logger().Debug("below threshold", "source", record.SourceID, "score", score)
}

func (m *LogMonitor) Finish(results []*core.RankedResult) {
	m.logger().Debug("retrieval finished", "results", len(results))
}
