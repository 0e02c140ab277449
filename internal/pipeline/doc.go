// Package pipeline advances queue items through the lesson processing
// stages.
//
// The Runner drains the queue sequentially: each item moves through parse,
// translate, synthesize, assemble, and organize with one-shot transition
// semantics (processing status, Prepare, Execute, done status) and progress
// and failure metadata captured on the item row. Stage failures mark the
// item failed or review and the run continues with the next lesson; the run
// summary reports per-lesson outcomes.
//
// A lock file in the staging directory keeps concurrent runs from sharing
// the queue. Heartbeat timestamps are refreshed between work segments so an
// interrupted run can be detected and rolled back on the next start.
package pipeline
