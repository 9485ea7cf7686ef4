package nupkg

import (
	"path/filepath"
	"strings"
)

const (
	// PackageExtension is the extension of package archives.
	PackageExtension = ".nupkg"
	// DescriptorExtension is the extension of the manifest descriptor inside an archive.
	DescriptorExtension = ".nuspec"
	// OwnersSeparator joins owner and author names into a single metadata field.
	OwnersSeparator = ", "
)

// Package is the metadata of a source package. It is read once and never modified.
// Empty optional strings and nil name sets mean the field is absent.
type Package struct {
	// ID is the package identifier.
	ID string
	// RawVersion is the version exactly as written in the source descriptor.
	RawVersion string

	Title        string
	Description  string
	Summary      string
	ReleaseNotes string
	Copyright    string
	Language     string
	IconURL      string
	LicenseURL   string
	ProjectURL   string

	// Owners lists package owners; nil when the descriptor has no owners element.
	Owners []string
	// Authors lists package authors; nil when the descriptor has no authors element.
	Authors []string
}

// ManifestFile maps a file on the extraction disk to its place in the rebuilt archive.
type ManifestFile struct {
	// SourcePath is the absolute path of the file on disk.
	SourcePath string
	// TargetPath is the slash-separated path relative to the archive root.
	TargetPath string
}

// OutputFileName returns the deterministic path "{id}.{version}{ext}" inside dir.
// An empty extension defaults to PackageExtension.
func OutputFileName(dir, id, version, ext string) string {
	if ext == "" {
		ext = PackageExtension
	}

	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}

	return filepath.Join(dir, id+"."+version+ext)
}

// SplitNames parses a comma-separated name list. Blank entries are dropped;
// the result is never nil so that a present-but-empty element stays present.
func SplitNames(s string) []string {
	parts := strings.Split(s, ",")
	names := make([]string, 0, len(parts))

	for _, part := range parts {
		if name := strings.TrimSpace(part); name != "" {
			names = append(names, name)
		}
	}

	return names
}

// JoinNames serializes a name set into a single field value.
func JoinNames(names []string) string {
	return strings.Join(names, OwnersSeparator)
}
