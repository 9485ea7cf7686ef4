package nupkg

import "errors"

// Error classes reported by the promotion pipeline. Stages wrap them with
// context, so callers test them with errors.Is.
var (
	// ErrInvalidArguments marks missing or malformed user input.
	ErrInvalidArguments = errors.New("invalid arguments")
	// ErrNotFound marks a missing input package.
	ErrNotFound = errors.New("not found")
	// ErrInvalidFormat marks an archive that is not a readable package.
	ErrInvalidFormat = errors.New("invalid package format")
	// ErrVersionNotFound marks a raw version without a numeric major.minor.patch triple.
	ErrVersionNotFound = errors.New("no semantic version found")
	// ErrExternalTool marks a resource editor that could not run or exited with a non-zero code.
	ErrExternalTool = errors.New("external tool failed")
	// ErrTimedOut marks a resource editor that exceeded its deadline.
	ErrTimedOut = errors.New("external tool timed out")
	// ErrIO marks extraction or write failures.
	ErrIO = errors.New("i/o failure")
)
