// Package scheduler computes the minimal ordered plan of (part, step)
// operations needed to bring a set of parts to a target lifecycle step.
//
// Requirements expand backwards from the request: every step of a part up to
// the target is required, and building a part requires each of its
// dependencies to be staged. A required step is scheduled when its recorded
// fingerprint is missing or differs from the fresh one, when an earlier step
// of the same part is scheduled, or, for build, when any dependency is
// re-staged. Everything else is elided as up to date.
//
// Operations are ordered by part in dependency order and by step within a
// part, so no operation refers forward to one it depends on.
package scheduler
