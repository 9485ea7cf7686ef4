// Package buildinfo exposes build metadata of the promoter binary.
//
// Version, Commit and BuildTime are injected via Go ldflags and default to
// placeholder values for local builds. It is unrelated to the versions of the
// packages being promoted.
package buildinfo
