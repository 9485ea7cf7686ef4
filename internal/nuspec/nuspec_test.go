package nuspec

import (
	"encoding/xml"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const legacyDescriptor = `<?xml version="1.0" encoding="utf-8"?>
<package xmlns="http://schemas.microsoft.com/packaging/2010/07/nuspec.xsd">
  <metadata>
    <id> Foo </id>
    <version>1.2.3-beta1</version>
    <authors>alice, bob</authors>
    <description>Foo tool</description>
    <projectUrl>https://example.com/foo</projectUrl>
  </metadata>
  <files>
    <file src="tools\Foo.exe" target="tools" />
  </files>
</package>`

// TestParse decodes a namespaced descriptor and keeps absent fields absent.
func TestParse(t *testing.T) {
	t.Parallel()

	manifest, err := Parse(strings.NewReader(legacyDescriptor))
	require.NoError(t, err)

	md := manifest.Metadata
	require.Equal(t, "Foo", md.ID)
	require.Equal(t, "1.2.3-beta1", md.Version)
	require.NotNil(t, md.Authors)
	require.Equal(t, "alice, bob", *md.Authors)
	require.Nil(t, md.Owners)
	require.Equal(t, "Foo tool", md.Description)
	require.Equal(t, "https://example.com/foo", md.ProjectURL)
	require.Empty(t, md.Title)

	require.NotNil(t, manifest.Files)
	require.Len(t, manifest.Files.Entries, 1)
	require.Equal(t, `tools\Foo.exe`, manifest.Files.Entries[0].Source)
}

// TestParseRejectsIncompleteDescriptors checks the id and version requirements.
func TestParseRejectsIncompleteDescriptors(t *testing.T) {
	t.Parallel()

	_, err := Parse(strings.NewReader(`<package><metadata><version>1.0.0</version></metadata></package>`))
	require.ErrorIs(t, err, errMissingID)

	_, err = Parse(strings.NewReader(`<package><metadata><id>Foo</id></metadata></package>`))
	require.ErrorIs(t, err, errMissingVersion)

	_, err = Parse(strings.NewReader(`not xml at all`))
	require.Error(t, err)
}

// TestMarshalParse encodes a descriptor and reads it back.
func TestMarshalParse(t *testing.T) {
	t.Parallel()

	manifest := &Manifest{
		Metadata: Metadata{
			ID:      "Foo",
			Version: "1.2.3",
			Title:   "Foo & Bar",
			Owners:  StringPtr("carol"),
			Authors: StringPtr(""),
		},
		Files: &Files{Entries: []File{{Source: "tools/Foo.exe", Target: "tools/Foo.exe"}}},
	}

	data, err := Marshal(manifest)
	require.NoError(t, err)

	text := string(data)
	require.True(t, strings.HasPrefix(text, "<?xml"))
	require.Contains(t, text, Namespace)
	require.NotContains(t, text, "<authors>")
	require.NotContains(t, text, "<summary>")

	parsed, err := Parse(strings.NewReader(text))
	require.NoError(t, err)
	require.Equal(t, "Foo & Bar", parsed.Metadata.Title)
	require.Equal(t, "carol", *parsed.Metadata.Owners)
	require.Nil(t, parsed.Metadata.Authors)
	require.Equal(t, manifest.Files.Entries, parsed.Files.Entries)
}

// TestMarshalLeavesInputUntouched encodes without mutating the caller's manifest.
func TestMarshalLeavesInputUntouched(t *testing.T) {
	t.Parallel()

	name := xml.Name{Space: "http://schemas.microsoft.com/packaging/2010/07/nuspec.xsd", Local: "package"}
	manifest := &Manifest{
		XMLName:  name,
		Metadata: Metadata{ID: "Foo", Version: "1.2.3"},
	}

	data, err := Marshal(manifest)
	require.NoError(t, err)
	require.Contains(t, string(data), Namespace)

	require.Equal(t, name, manifest.XMLName)
	require.Empty(t, manifest.Xmlns)
}
