package archive

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/oshokin/nuget-promoter/internal/domain/nupkg"
	"github.com/oshokin/nuget-promoter/internal/nuspec"
)

const (
	// DefaultDirMode is used for directories created during extraction.
	DefaultDirMode os.FileMode = 0o755
	// DefaultFileMode is used for extracted files whose entry carries no permission bits.
	DefaultFileMode os.FileMode = 0o644
)

var (
	errNoDescriptor   = errors.New("no manifest descriptor at the archive root")
	errUnsafeEntry    = errors.New("entry escapes the destination directory")
	errNotAFile       = errors.New("package path is a directory")
	errReaderIsClosed = errors.New("reader is closed")
)

// Reader gives access to a single package archive.
type Reader struct {
	// path is the absolute location of the archive.
	path string
	// zip is the open archive; nil after Close.
	zip *zip.ReadCloser
	// descriptorName is the archive entry holding the descriptor.
	descriptorName string
	// pkg is the metadata parsed from the descriptor.
	pkg nupkg.Package
}

// Open opens the archive at filePath and parses the descriptor found at its root.
// descriptorExt defaults to nupkg.DescriptorExtension.
func Open(filePath, descriptorExt string) (*Reader, error) {
	if descriptorExt == "" {
		descriptorExt = nupkg.DescriptorExtension
	}

	absPath, err := filepath.Abs(filePath)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w: %w", filePath, nupkg.ErrInvalidArguments, err)
	}

	info, err := os.Stat(absPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", absPath, nupkg.ErrNotFound)
	} else if err != nil {
		return nil, fmt.Errorf("stat %s: %w: %w", absPath, nupkg.ErrIO, err)
	}

	if info.IsDir() {
		return nil, fmt.Errorf("%s: %w: %w", absPath, nupkg.ErrInvalidFormat, errNotAFile)
	}

	zr, err := zip.OpenReader(absPath)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w: %w", absPath, nupkg.ErrInvalidFormat, err)
	}

	r := &Reader{
		path: absPath,
		zip:  zr,
	}

	if err = r.readDescriptor(descriptorExt); err != nil {
		_ = zr.Close()

		return nil, fmt.Errorf("%s: %w: %w", absPath, nupkg.ErrInvalidFormat, err)
	}

	return r, nil
}

// Path returns the absolute archive location.
func (r *Reader) Path() string {
	return r.path
}

// Package returns a copy of the package metadata.
func (r *Reader) Package() nupkg.Package {
	pkg := r.pkg
	pkg.Owners = cloneNames(r.pkg.Owners)
	pkg.Authors = cloneNames(r.pkg.Authors)

	return pkg
}

// DescriptorName returns the archive entry that holds the descriptor.
func (r *Reader) DescriptorName() string {
	return r.descriptorName
}

// Extract writes every entry of the archive below destination, preserving relative paths.
// It returns only after all entries are written or the first failure.
func (r *Reader) Extract(ctx context.Context, destination string) error {
	if r.zip == nil {
		return errReaderIsClosed
	}

	absDest, err := filepath.Abs(destination)
	if err != nil {
		return fmt.Errorf("resolve %s: %w: %w", destination, nupkg.ErrIO, err)
	}

	if err = os.MkdirAll(absDest, DefaultDirMode); err != nil {
		return fmt.Errorf("create %s: %w: %w", absDest, nupkg.ErrIO, err)
	}

	for _, file := range r.zip.File {
		if err = ctx.Err(); err != nil {
			return err
		}

		destPath, pathErr := entryPath(absDest, file.Name)
		if pathErr != nil {
			return fmt.Errorf("%s: %w: %w", file.Name, nupkg.ErrInvalidFormat, pathErr)
		}

		if file.FileInfo().IsDir() || strings.HasSuffix(file.Name, "/") {
			if err = os.MkdirAll(destPath, DefaultDirMode); err != nil {
				return fmt.Errorf("create directory %s: %w: %w", destPath, nupkg.ErrIO, err)
			}

			continue
		}

		if err = os.MkdirAll(filepath.Dir(destPath), DefaultDirMode); err != nil {
			return fmt.Errorf("create directory for %s: %w: %w", destPath, nupkg.ErrIO, err)
		}

		if err = extractFile(file, destPath); err != nil {
			return fmt.Errorf("extract %s: %w: %w", file.Name, nupkg.ErrIO, err)
		}
	}

	return nil
}

// Close releases the archive handle. It is safe to call more than once.
func (r *Reader) Close() error {
	if r.zip == nil {
		return nil
	}

	err := r.zip.Close()
	r.zip = nil

	return err
}

// readDescriptor locates the root-level descriptor and fills pkg from it.
func (r *Reader) readDescriptor(descriptorExt string) error {
	var descriptor *zip.File

	for _, file := range r.zip.File {
		name := strings.TrimPrefix(file.Name, "/")
		if strings.Contains(name, "/") || !hasExtension(name, descriptorExt) {
			continue
		}

		descriptor = file

		break
	}

	if descriptor == nil {
		return errNoDescriptor
	}

	rc, err := descriptor.Open()
	if err != nil {
		return err
	}

	defer func() {
		_ = rc.Close()
	}()

	manifest, err := nuspec.Parse(rc)
	if err != nil {
		return err
	}

	r.descriptorName = descriptor.Name
	r.pkg = packageFromMetadata(&manifest.Metadata)

	return nil
}

// packageFromMetadata converts descriptor metadata into the domain model.
func packageFromMetadata(md *nuspec.Metadata) nupkg.Package {
	pkg := nupkg.Package{
		ID:           md.ID,
		RawVersion:   md.Version,
		Title:        strings.TrimSpace(md.Title),
		Description:  strings.TrimSpace(md.Description),
		Summary:      strings.TrimSpace(md.Summary),
		ReleaseNotes: strings.TrimSpace(md.ReleaseNotes),
		Copyright:    strings.TrimSpace(md.Copyright),
		Language:     strings.TrimSpace(md.Language),
		IconURL:      strings.TrimSpace(md.IconURL),
		LicenseURL:   strings.TrimSpace(md.LicenseURL),
		ProjectURL:   strings.TrimSpace(md.ProjectURL),
	}

	if md.Owners != nil {
		pkg.Owners = nupkg.SplitNames(*md.Owners)
	}

	if md.Authors != nil {
		pkg.Authors = nupkg.SplitNames(*md.Authors)
	}

	return pkg
}

// entryPath maps an archive entry name to a path below root, rejecting traversal.
func entryPath(root, name string) (string, error) {
	cleaned := path.Clean(strings.ReplaceAll(name, `\`, "/"))
	if path.IsAbs(cleaned) || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", errUnsafeEntry
	}

	destPath := filepath.Join(root, filepath.FromSlash(cleaned))

	rel, err := filepath.Rel(root, destPath)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", errUnsafeEntry
	}

	return destPath, nil
}

// extractFile copies a single archive entry to destPath.
func extractFile(file *zip.File, destPath string) (err error) {
	rc, err := file.Open()
	if err != nil {
		return err
	}

	defer func() {
		if closeErr := rc.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	mode := file.Mode().Perm()
	if mode == 0 {
		mode = DefaultFileMode
	}

	destFile, err := os.OpenFile(filepath.Clean(destPath), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return err
	}

	defer func() {
		if closeErr := destFile.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	//nolint:gosec // G110: packages come from the user's own build output.
	_, err = io.Copy(destFile, rc)

	return err
}

// hasExtension reports whether name ends with ext, ignoring case.
func hasExtension(name, ext string) bool {
	return len(name) >= len(ext) && strings.EqualFold(name[len(name)-len(ext):], ext)
}

func cloneNames(names []string) []string {
	if names == nil {
		return nil
	}

	return append(make([]string, 0, len(names)), names...)
}
