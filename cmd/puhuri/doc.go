// Package main hosts the puhuri CLI entrypoint and command graph.
//
// The Cobra-based command tree drives the lesson pipeline (process), inspects
// the queue ledger, reports dependency and engine readiness, and scaffolds
// configuration. It centralizes configuration resolution and structured
// logging setup so subcommands can focus on user experience instead of
// wiring.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main
