package nupkg

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	// releaseVersionPattern matches the first numeric major.minor.patch triple anywhere in a string.
	releaseVersionPattern = regexp.MustCompile(`\d+\.\d+\.\d+`)
	// prereleaseTagPattern accepts dot-separated SemVer prerelease identifiers.
	prereleaseTagPattern = regexp.MustCompile(`^[0-9A-Za-z-]+(\.[0-9A-Za-z-]+)*$`)
)

// ResolveVersion extracts the release version from a raw version string.
// Prerelease tags, build metadata and any trailing text are discarded.
func ResolveVersion(raw string) (string, error) {
	match := releaseVersionPattern.FindString(raw)
	if match == "" {
		return "", fmt.Errorf("%q: %w", raw, ErrVersionNotFound)
	}

	return match, nil
}

// ApplyPrerelease appends a new prerelease tag to a resolved version.
// An empty tag returns the version unchanged.
func ApplyPrerelease(version, tag string) (string, error) {
	tag = strings.TrimPrefix(strings.TrimSpace(tag), "-")
	if tag == "" {
		return version, nil
	}

	if !prereleaseTagPattern.MatchString(tag) {
		return "", fmt.Errorf("prerelease tag %q: %w", tag, ErrInvalidArguments)
	}

	return version + "-" + tag, nil
}
