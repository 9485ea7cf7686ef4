package nuspec

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Namespace is written on every descriptor this package produces.
const Namespace = "http://schemas.microsoft.com/packaging/2013/05/nuspec.xsd"

var (
	errMissingID      = errors.New("descriptor has no id")
	errMissingVersion = errors.New("descriptor has no version")
)

// Manifest is the root element of a descriptor.
type Manifest struct {
	XMLName  xml.Name `xml:"package"`
	Xmlns    string   `xml:"xmlns,attr,omitempty"`
	Metadata Metadata `xml:"metadata"`
	Files    *Files   `xml:"files,omitempty"`
}

// Metadata carries the package identity and its textual fields.
// Pointer fields distinguish a missing element from an empty one.
type Metadata struct {
	ID           string  `xml:"id"`
	Version      string  `xml:"version"`
	Title        string  `xml:"title,omitempty"`
	Authors      *string `xml:"authors"`
	Owners       *string `xml:"owners"`
	LicenseURL   string  `xml:"licenseUrl,omitempty"`
	ProjectURL   string  `xml:"projectUrl,omitempty"`
	IconURL      string  `xml:"iconUrl,omitempty"`
	Description  string  `xml:"description,omitempty"`
	Summary      string  `xml:"summary,omitempty"`
	ReleaseNotes string  `xml:"releaseNotes,omitempty"`
	Copyright    string  `xml:"copyright,omitempty"`
	Language     string  `xml:"language,omitempty"`
}

// Files lists the payload entries declared by the descriptor.
type Files struct {
	Entries []File `xml:"file"`
}

// File is a single declared payload entry.
type File struct {
	Source string `xml:"src,attr"`
	Target string `xml:"target,attr,omitempty"`
}

// Parse decodes a descriptor and checks that it carries an id and a version.
func Parse(r io.Reader) (*Manifest, error) {
	var manifest Manifest
	if err := xml.NewDecoder(r).Decode(&manifest); err != nil {
		return nil, fmt.Errorf("decode descriptor: %w", err)
	}

	manifest.Metadata.ID = strings.TrimSpace(manifest.Metadata.ID)
	manifest.Metadata.Version = strings.TrimSpace(manifest.Metadata.Version)

	if manifest.Metadata.ID == "" {
		return nil, errMissingID
	}

	if manifest.Metadata.Version == "" {
		return nil, errMissingVersion
	}

	return &manifest, nil
}

// Marshal encodes a descriptor with an XML declaration and indentation.
func Marshal(manifest *Manifest) ([]byte, error) {
	out := *manifest

	// A namespace captured by Parse would be emitted next to Xmlns.
	out.XMLName = xml.Name{}

	if out.Xmlns == "" {
		out.Xmlns = Namespace
	}

	var buf bytes.Buffer

	buf.WriteString(xml.Header)

	encoder := xml.NewEncoder(&buf)
	encoder.Indent("", "  ")

	if err := encoder.Encode(&out); err != nil {
		return nil, fmt.Errorf("encode descriptor: %w", err)
	}

	if err := encoder.Close(); err != nil {
		return nil, fmt.Errorf("encode descriptor: %w", err)
	}

	buf.WriteString("\n")

	return buf.Bytes(), nil
}

// StringPtr returns nil for an empty string, which drops the element on Marshal.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}

	return &s
}
