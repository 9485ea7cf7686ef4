package archive

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// zipEntry is a single entry of a test archive.
type zipEntry struct {
	name    string
	content string
}

const fooDescriptor = `<?xml version="1.0" encoding="utf-8"?>
<package xmlns="http://schemas.microsoft.com/packaging/2010/07/nuspec.xsd">
  <metadata>
    <id>Foo</id>
    <version>1.2.3-beta1</version>
    <title>Foo</title>
    <authors>alice,bob</authors>
    <description>Foo tool</description>
    <licenseUrl>https://example.com/license</licenseUrl>
  </metadata>
</package>`

// writeZip creates an archive at path holding the entries in order.
func writeZip(t *testing.T, path string, entries ...zipEntry) {
	t.Helper()

	f, err := os.Create(path)
	require.NoError(t, err)

	zw := zip.NewWriter(f)

	for _, e := range entries {
		w, createErr := zw.Create(e.name)
		require.NoError(t, createErr)

		_, err = w.Write([]byte(e.content))
		require.NoError(t, err)
	}

	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
}

// fooPackage writes the sample prerelease package into dir and returns its path.
func fooPackage(t *testing.T, dir string) string {
	t.Helper()

	path := filepath.Join(dir, "Foo-1.2.3-beta1.nupkg")
	writeZip(t, path,
		zipEntry{name: "Foo.nuspec", content: fooDescriptor},
		zipEntry{name: "tools/", content: ""},
		zipEntry{name: "tools/Foo.exe", content: "MZ fake executable"},
		zipEntry{name: "lib/net48/Foo.dll", content: "library"},
		zipEntry{name: "[Content_Types].xml", content: "<Types/>"},
	)

	return path
}
