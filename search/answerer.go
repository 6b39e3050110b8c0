package search

import (
	"context"
	"errors"
	"log/slog"

	"github.com/poiesic/newsrag/ai"
	"github.com/poiesic/newsrag/core"
)

const (
	// NoContextMessage is returned when no stored record clears the threshold.
	NoContextMessage = "No matching articles were found."
	// UnanswerableMessage is returned when the model could not answer from the context.
	UnanswerableMessage = "The retrieved articles do not contain enough information to answer this question."
)

// Answer is the outcome of a question.
type Answer struct {
	Query        string
	Text         string
	Results      []*core.RankedResult
	NoContext    bool // Nothing cleared the threshold; the model was not called
	Unanswerable bool // The model declined to answer from the context
}

// Answerer retrieves context for a question and synthesizes an answer.
type Answerer struct {
	retriever      *Retriever
	synthesizer    ai.Synthesizer
	resultCount    int
	threshold      float32
	contextResults int
	monitor        RetrievalMonitor
	logger         *slog.Logger
}

// AnswerOption configures an Answerer.
type AnswerOption func(*Answerer) error

// WithResultCount sets how many results are retrieved per question.
// Default is 5.
func WithResultCount(n int) AnswerOption {
	return func(a *Answerer) error {
		if n < 1 {
			return core.ErrConfiguration
		}
		a.resultCount = n
		return nil
	}
}

// WithThreshold sets the minimum similarity of a retrieved result.
// Default is 0.3.
func WithThreshold(t float32) AnswerOption {
	return func(a *Answerer) error {
		if t < 0 || t > 1 {
			return core.ErrConfiguration
		}
		a.threshold = t
		return nil
	}
}

// WithContextResults sets how many of the top results are given to the model.
// Default is 3.
func WithContextResults(n int) AnswerOption {
	return func(a *Answerer) error {
		if n < 1 {
			return core.ErrConfiguration
		}
		a.contextResults = n
		return nil
	}
}

// WithMonitor traces each retrieval made for a question.
func WithMonitor(monitor RetrievalMonitor) AnswerOption {
	return func(a *Answerer) error {
		a.monitor = monitor
		return nil
	}
}

// WithAnswerLogger sets a custom logger.
func WithAnswerLogger(logger *slog.Logger) AnswerOption {
	return func(a *Answerer) error {
		if logger == nil {
			logger = slog.Default()
		}
		a.logger = logger.With("component", "answerer")
		return nil
	}
}

// NewAnswerer creates an answerer on top of a retriever.
func NewAnswerer(retriever *Retriever, synthesizer ai.Synthesizer, opts ...AnswerOption) (*Answerer, error) {
	if retriever == nil {
		return nil, ErrRetrieverRequired
	}
	if synthesizer == nil {
		return nil, ErrAIProviderRequired
	}
	a := &Answerer{
		retriever:      retriever,
		synthesizer:    synthesizer,
		resultCount:    5,
		threshold:      0.3,
		contextResults: 3,
		logger:         slog.Default().With("component", "answerer"),
	}
	for _, opt := range opts {
		if err := opt(a); err != nil {
			return nil, err
		}
	}
	return a, nil
}

// Answer retrieves context for query and asks the model to answer from it.
func (a *Answerer) Answer(ctx context.Context, query string) (*Answer, error) {
	return a.AnswerQuery(ctx, a.Query(query))
}

// Query returns a retrieval request for text with the answerer's defaults.
func (a *Answerer) Query(text string) core.Query {
	return core.Query{Text: text, Limit: a.resultCount, Threshold: a.threshold}
}

// AnswerQuery is Answer with explicit retrieval parameters.
func (a *Answerer) AnswerQuery(ctx context.Context, q core.Query) (*Answer, error) {
	results, err := a.retriever.RetrieveWithMonitor(ctx, q, a.monitor)
	if err != nil {
		return nil, err
	}

	query := q.Text
	answer := &Answer{Query: query, Results: results}
	if len(results) == 0 {
		a.logger.Info("no context for query", "query", query)
		answer.Text = NoContextMessage
		answer.NoContext = true
		return answer, nil
	}

	contextText := BuildContext(results, a.contextResults)
	text, err := a.synthesizer.Synthesize(ctx, query, contextText)
	switch {
	case errors.Is(err, core.ErrUnableToAnswer):
		answer.Text = UnanswerableMessage
		answer.Unanswerable = true
	case err != nil:
		a.logger.Error("error synthesizing answer", "err", err)
		return nil, err
	default:
		answer.Text = text
	}
	return answer, nil
}

// Retriever returns the retriever the answerer draws context from.
func (a *Answerer) Retriever() *Retriever {
	return a.retriever
}

// Summarize produces a short summary of one retrieved article.
func (a *Answerer) Summarize(ctx context.Context, result *core.RankedResult) (string, error) {
	meta := result.Record.Metadata
	return a.synthesizer.Summarize(ctx, meta.Title, meta.Snippet)
}
