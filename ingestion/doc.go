// Package ingestion implements build-db: it turns the scraped article set
// into embedding records.
//
// For every article the dedup ledger has not seen, the Pipeline embeds the
// article text and each downloaded image in a worker pool, upserts the
// resulting records into the vector store and only then records the article
// in the ledger. Running the pipeline twice over the same articles is a
// no-op the second time.
//
// An article whose text cannot be embedded is logged, counted and left out
// of the ledger so a later run retries it. When failures exceed the
// configured ratio the run stops with core.ErrBatchAborted. Vector store
// and ledger failures stop the run immediately.
package ingestion
