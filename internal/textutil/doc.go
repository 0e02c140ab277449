// Package textutil provides text processing utilities for filename
// sanitization and slug generation.
//
// The primary use cases are:
//   - Converting lesson and section titles into filesystem-safe slugs
//   - Normalizing free-form values into lowercase tokens for directory names
//
// Slugs keep Unicode letters (Finnish titles carry ä and ö), collapse
// whitespace and hyphen runs to a single hyphen, and are capped at 50 runes.
package textutil
