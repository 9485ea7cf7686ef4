package archive

import (
	"archive/zip"
	"bytes"
	"context"
	"crypto"
	"crypto/sha512"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	goupdate "github.com/doitdistributed/go-update"

	"github.com/oshokin/nuget-promoter/internal/domain/nupkg"
	"github.com/oshokin/nuget-promoter/internal/logger"
	"github.com/oshokin/nuget-promoter/internal/nuspec"
)

const (
	// PackageFileMode is applied to written archives.
	PackageFileMode os.FileMode = 0o644

	// checksumFunction verifies the staged archive before it replaces the target.
	checksumFunction = crypto.SHA512
)

var (
	errDuplicateTarget = errors.New("duplicate target path")
	errEmptyTarget     = errors.New("empty target path")
	errNoMetadata      = errors.New("metadata is not set")
)

// Writer serializes package archives.
type Writer struct {
	// descriptorExt is appended to the package id to name the descriptor entry.
	descriptorExt string
	// now stamps the descriptor entry.
	now func() time.Time
}

// NewWriter returns a Writer naming descriptors "{id}{descriptorExt}".
// An empty extension defaults to nupkg.DescriptorExtension.
func NewWriter(descriptorExt string) *Writer {
	if descriptorExt == "" {
		descriptorExt = nupkg.DescriptorExtension
	}

	return &Writer{
		descriptorExt: descriptorExt,
		now:           time.Now,
	}
}

// Write builds the archive in memory and swaps it into outputPath, replacing
// any existing file. The staged archive is checksum-verified and renamed into
// place, so a failure never leaves a truncated package behind.
// It returns the SHA-512 checksum of the written archive.
func (w *Writer) Write(
	ctx context.Context,
	metadata *nuspec.Metadata,
	files []nupkg.ManifestFile,
	outputPath string,
) ([]byte, error) {
	if metadata == nil {
		return nil, errNoMetadata
	}

	data, err := w.build(ctx, metadata, files)
	if err != nil {
		return nil, err
	}

	absPath, err := filepath.Abs(outputPath)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w: %w", outputPath, nupkg.ErrIO, err)
	}

	if err = os.MkdirAll(filepath.Dir(absPath), DefaultDirMode); err != nil {
		return nil, fmt.Errorf("create output directory: %w: %w", nupkg.ErrIO, err)
	}

	checksum := sha512.Sum512(data)

	if fileExists(absPath) {
		logger.Warnf(ctx, "Overwriting existing %s", absPath)
	}

	if err = replaceFile(absPath, data, checksum[:]); err != nil {
		return nil, fmt.Errorf("write %s: %w: %w", absPath, nupkg.ErrIO, err)
	}

	return checksum[:], nil
}

// build produces the complete archive: the descriptor first, then every file in order.
func (w *Writer) build(ctx context.Context, metadata *nuspec.Metadata, files []nupkg.ManifestFile) ([]byte, error) {
	descriptorName := metadata.ID + w.descriptorExt

	manifest := &nuspec.Manifest{
		Metadata: *metadata,
		Files:    &nuspec.Files{Entries: make([]nuspec.File, 0, len(files))},
	}

	seen := make(map[string]struct{}, len(files)+1)
	seen[strings.ToLower(descriptorName)] = struct{}{}

	for _, file := range files {
		target := strings.TrimPrefix(filepath.ToSlash(file.TargetPath), "/")
		if target == "" {
			return nil, fmt.Errorf("%s: %w: %w", file.SourcePath, nupkg.ErrInvalidArguments, errEmptyTarget)
		}

		key := strings.ToLower(target)
		if _, dup := seen[key]; dup {
			return nil, fmt.Errorf("%s: %w: %w", target, nupkg.ErrInvalidArguments, errDuplicateTarget)
		}

		seen[key] = struct{}{}

		manifest.Files.Entries = append(manifest.Files.Entries, nuspec.File{Source: target, Target: target})
	}

	descriptor, err := nuspec.Marshal(manifest)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer

	zw := zip.NewWriter(&buf)

	//nolint:exhaustruct // Remaining header fields are derived by archive/zip.
	header := &zip.FileHeader{
		Name:     descriptorName,
		Method:   zip.Deflate,
		Modified: w.now(),
	}

	entry, err := zw.CreateHeader(header)
	if err != nil {
		return nil, fmt.Errorf("create descriptor entry: %w: %w", nupkg.ErrIO, err)
	}

	if _, err = entry.Write(descriptor); err != nil {
		return nil, fmt.Errorf("write descriptor entry: %w: %w", nupkg.ErrIO, err)
	}

	for i, file := range files {
		if err = ctx.Err(); err != nil {
			return nil, err
		}

		if err = addFile(zw, file.SourcePath, manifest.Files.Entries[i].Target); err != nil {
			return nil, fmt.Errorf("add %s: %w: %w", file.SourcePath, nupkg.ErrIO, err)
		}
	}

	if err = zw.Close(); err != nil {
		return nil, fmt.Errorf("finish archive: %w: %w", nupkg.ErrIO, err)
	}

	return buf.Bytes(), nil
}

// addFile copies a file from disk into the archive under target.
func addFile(zw *zip.Writer, source, target string) error {
	f, err := os.Open(filepath.Clean(source))
	if err != nil {
		return err
	}

	defer func() {
		_ = f.Close()
	}()

	info, err := f.Stat()
	if err != nil {
		return err
	}

	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}

	header.Name = target
	header.Method = zip.Deflate

	entry, err := zw.CreateHeader(header)
	if err != nil {
		return err
	}

	_, err = io.Copy(entry, f)

	return err
}

// replaceFile stages data next to target and renames it into place.
// go-update renames the current target aside first, so a placeholder is
// created for a fresh target and removed again if the swap fails.
func replaceFile(target string, data, checksum []byte) error {
	createdPlaceholder := false

	if _, err := os.Stat(target); errors.Is(err, os.ErrNotExist) {
		placeholder, createErr := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_EXCL, PackageFileMode)
		if createErr != nil {
			return createErr
		}

		if createErr = placeholder.Close(); createErr != nil {
			return createErr
		}

		createdPlaceholder = true
	} else if err != nil {
		return err
	}

	options := goupdate.Options{
		TargetPath: target,
		TargetMode: PackageFileMode,
		Checksum:   checksum,
		Hash:       checksumFunction,
	}

	if err := goupdate.Apply(bytes.NewReader(data), options); err != nil {
		if createdPlaceholder {
			_ = os.Remove(target)
		}

		return err
	}

	// go-update may keep the previous file next to the target, hidden or not.
	dir, base := filepath.Split(target)
	for _, oldFile := range []string{target + ".old", filepath.Join(dir, "."+base+".old")} {
		if fileExists(oldFile) {
			_ = os.Remove(oldFile)
		}
	}

	return nil
}

func fileExists(name string) bool {
	_, err := os.Stat(name)

	return err == nil
}
