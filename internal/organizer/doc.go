// Package organizer finalizes processed lessons by publishing their rendered
// section tracks into the output library.
//
// Tracks land under <output_dir>/<lesson-slug>/<NN>-<section-slug>.<ext> via
// verified copies renamed into place, with collision-safe naming when
// overwriting is disabled. Lessons whose library is unreachable are parked in
// the review directory instead of failing. Progress updates and error
// wrapping follow the same conventions as the other stages so the pipeline
// runner can react uniformly.
package organizer
