// Package scrape implements the scrape job: fetching listing and article
// pages with retry and a shared rate limit, walking category pagination
// (numbered pages and browser-driven load-more), extracting articles and
// saving them with their images for build-db.
//
// Fetch failures are classified as core.ErrTransientNetwork, which is
// retried with exponential backoff and jitter, or core.ErrPermanentHTTP,
// which is not. A page that still fails is skipped and reported; only
// article store failures and cancellation stop a run.
package scrape
