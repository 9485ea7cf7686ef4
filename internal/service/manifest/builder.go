package manifest

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/oshokin/nuget-promoter/internal/domain/nupkg"
	"github.com/oshokin/nuget-promoter/internal/nuspec"
)

// optionalField copies one optional value from the source package to the new metadata.
type optionalField struct {
	name string
	get  func(*nupkg.Package) string
	set  func(*nuspec.Metadata, string)
}

// optionalFields lists every field carried over only when present in the source.
//
//nolint:gochecknoglobals // Static lookup table.
var optionalFields = []optionalField{
	{"title", func(p *nupkg.Package) string { return p.Title }, func(m *nuspec.Metadata, v string) { m.Title = v }},
	{"description", func(p *nupkg.Package) string { return p.Description }, func(m *nuspec.Metadata, v string) { m.Description = v }},
	{"summary", func(p *nupkg.Package) string { return p.Summary }, func(m *nuspec.Metadata, v string) { m.Summary = v }},
	{"releaseNotes", func(p *nupkg.Package) string { return p.ReleaseNotes }, func(m *nuspec.Metadata, v string) { m.ReleaseNotes = v }},
	{"copyright", func(p *nupkg.Package) string { return p.Copyright }, func(m *nuspec.Metadata, v string) { m.Copyright = v }},
	{"language", func(p *nupkg.Package) string { return p.Language }, func(m *nuspec.Metadata, v string) { m.Language = v }},
	{"iconUrl", func(p *nupkg.Package) string { return p.IconURL }, func(m *nuspec.Metadata, v string) { m.IconURL = v }},
	{"licenseUrl", func(p *nupkg.Package) string { return p.LicenseURL }, func(m *nuspec.Metadata, v string) { m.LicenseURL = v }},
	{"projectUrl", func(p *nupkg.Package) string { return p.ProjectURL }, func(m *nuspec.Metadata, v string) { m.ProjectURL = v }},
	{"owners", ownersOf, func(m *nuspec.Metadata, v string) { m.Owners = &v }},
	{"authors", authorsOf, func(m *nuspec.Metadata, v string) { m.Authors = &v }},
}

// Metadata returns the descriptor metadata of the promoted package.
// Optional fields absent from pkg stay absent.
func Metadata(pkg *nupkg.Package, version string) *nuspec.Metadata {
	metadata := &nuspec.Metadata{
		ID:      pkg.ID,
		Version: version,
	}

	for _, field := range optionalFields {
		if value := field.get(pkg); value != "" {
			field.set(metadata, value)
		}
	}

	return metadata
}

// Files lists every regular file below root except manifest descriptors,
// sorted by target path. Target paths are slash-separated and relative to root.
func Files(root, descriptorExt string) ([]nupkg.ManifestFile, error) {
	if descriptorExt == "" {
		descriptorExt = nupkg.DescriptorExtension
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w: %w", root, nupkg.ErrIO, err)
	}

	var files []nupkg.ManifestFile

	walkErr := filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() || isDescriptor(d.Name(), descriptorExt) {
			return nil
		}

		rel, relErr := filepath.Rel(absRoot, path)
		if relErr != nil {
			return relErr
		}

		files = append(files, nupkg.ManifestFile{
			SourcePath: path,
			TargetPath: filepath.ToSlash(rel),
		})

		return nil
	})
	if walkErr != nil {
		return nil, fmt.Errorf("list files in %s: %w: %w", absRoot, nupkg.ErrIO, walkErr)
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].TargetPath < files[j].TargetPath
	})

	return files, nil
}

// Build returns the new metadata and the file manifest of the promoted package.
func Build(pkg *nupkg.Package, version, root, descriptorExt string) (*nuspec.Metadata, []nupkg.ManifestFile, error) {
	files, err := Files(root, descriptorExt)
	if err != nil {
		return nil, nil, err
	}

	return Metadata(pkg, version), files, nil
}

func ownersOf(p *nupkg.Package) string {
	if p.Owners == nil {
		return ""
	}

	return nupkg.JoinNames(p.Owners)
}

func authorsOf(p *nupkg.Package) string {
	if p.Authors == nil {
		return ""
	}

	return nupkg.JoinNames(p.Authors)
}

func isDescriptor(name, ext string) bool {
	return len(name) >= len(ext) && strings.EqualFold(name[len(name)-len(ext):], ext)
}
