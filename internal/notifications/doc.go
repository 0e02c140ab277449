// Package notifications publishes run and lesson lifecycle events to ntfy.
//
// The service is a noop when no topic is configured, and individual event
// families (run, lesson, review, errors) can be toggled off in the
// configuration without touching call sites.
package notifications
