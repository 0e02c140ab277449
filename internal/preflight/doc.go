// Package preflight provides readiness checks for external services,
// binaries, and filesystem paths that Puhuri depends on.
//
// These checks run in two contexts:
//   - The pipeline runner calls RunAll before processing queued lessons.
//     If a required check fails, the run stops before touching any item.
//   - The CLI "puhuri check" and "puhuri status" commands display the
//     results as a table.
//
// Each check is gated by its config toggle -- disabled features are skipped.
package preflight
