package promoter

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/nuget-promoter/internal/domain/nupkg"
	"github.com/oshokin/nuget-promoter/internal/nuspec"
	"github.com/oshokin/nuget-promoter/internal/repository/archive"
	"github.com/oshokin/nuget-promoter/internal/service/patcher"
)

// fakeLocator resolves every tool to a fixed path.
type fakeLocator struct{}

func (fakeLocator) Locate(name string) string {
	return filepath.Join("/opt/tools", name)
}

// recordingRunner records invocations, stamps the version into the target
// file and fails from invocation number failAt (1-based) on.
type recordingRunner struct {
	mu      sync.Mutex
	calls   []patcher.Invocation
	failAt  int
	outcome patcher.Outcome
}

func (r *recordingRunner) Run(_ context.Context, inv patcher.Invocation) (patcher.Outcome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.calls = append(r.calls, inv)

	if r.failAt > 0 && len(r.calls) >= r.failAt {
		return r.outcome, nil
	}

	if err := os.WriteFile(inv.TargetFile, []byte("patched:"+inv.Version), 0o600); err != nil {
		return patcher.Outcome{}, err
	}

	return patcher.Completed(0), nil
}

// writePackage creates a package archive with the given raw version and payload entries.
func writePackage(t *testing.T, path, id, rawVersion string, payload map[string]string) {
	t.Helper()

	descriptor, err := nuspec.Marshal(&nuspec.Manifest{Metadata: nuspec.Metadata{
		ID:          id,
		Version:     rawVersion,
		Description: id + " tool",
		Authors:     nuspec.StringPtr("alice, bob"),
	}})
	require.NoError(t, err)

	f, err := os.Create(path)
	require.NoError(t, err)

	zw := zip.NewWriter(f)

	w, err := zw.Create(id + ".nuspec")
	require.NoError(t, err)

	_, err = w.Write(descriptor)
	require.NoError(t, err)

	for name, content := range payload {
		w, err = zw.Create(name)
		require.NoError(t, err)

		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}

	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
}

// writeSettings writes a settings file with a per-test work dir prefix and returns its path and the prefix.
func writeSettings(t *testing.T, dir string) (string, string) {
	t.Helper()

	prefix := fmt.Sprintf("promoter-%s-", strings.ReplaceAll(t.Name(), "/", "-"))
	path := filepath.Join(dir, "settings.yaml")
	body := "tool_name: rcedit\nwork_dir_prefix: " + prefix + "\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	return path, prefix
}

// requireReleased asserts that no working directory with the prefix survived.
func requireReleased(t *testing.T, prefix string) {
	t.Helper()

	leftovers, err := filepath.Glob(filepath.Join(os.TempDir(), prefix+"*"))
	require.NoError(t, err)
	require.Empty(t, leftovers)
}

// readEntry returns the content of one archive entry.
func readEntry(t *testing.T, archivePath, name string) string {
	t.Helper()

	zr, err := zip.OpenReader(archivePath)
	require.NoError(t, err)

	defer func() {
		_ = zr.Close()
	}()

	for _, f := range zr.File {
		if f.Name != name {
			continue
		}

		rc, openErr := f.Open()
		require.NoError(t, openErr)

		data, readErr := io.ReadAll(rc)
		require.NoError(t, readErr)
		require.NoError(t, rc.Close())

		return string(data)
	}

	require.Failf(t, "entry not found", "%s in %s", name, archivePath)

	return ""
}

// TestRunPromotesPackage walks the Foo 1.2.3-beta1 example end to end.
func TestRunPromotesPackage(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	input := filepath.Join(dir, "Foo-1.2.3-beta1.nupkg")
	writePackage(t, input, "Foo", "1.2.3-beta1", map[string]string{
		"tools/Foo.exe":     "MZ original",
		"lib/net48/Foo.dll": "library",
	})

	settings, prefix := writeSettings(t, dir)
	runner := &recordingRunner{}
	outDir := filepath.Join(dir, "out")

	result, err := Run(context.Background(), &Options{
		PackagePath: input,
		OutputDir:   outDir,
		ConfigPath:  settings,
		Locator:     fakeLocator{},
		Runner:      runner,
	})
	require.NoError(t, err)

	require.Equal(t, "Foo", result.PackageID)
	require.Equal(t, "1.2.3", result.Version)
	require.Equal(t, filepath.Join(outDir, "Foo.1.2.3.nupkg"), result.OutputPath)
	require.Len(t, result.Patched, 1)
	require.NotEmpty(t, result.Checksum)

	require.Len(t, runner.calls, 1)
	call := runner.calls[0]
	require.Equal(t, filepath.Join("/opt/tools", "rcedit"), call.ToolPath)
	require.Equal(t, "Foo.exe", filepath.Base(call.TargetFile))
	require.Equal(t, "1.2.3", call.Version)
	require.Equal(t, patcher.DefaultTimeout, call.Timeout)

	reader, err := archive.Open(result.OutputPath, "")
	require.NoError(t, err)

	pkg := reader.Package()
	require.NoError(t, reader.Close())
	require.Equal(t, "Foo", pkg.ID)
	require.Equal(t, "1.2.3", pkg.RawVersion)
	require.Equal(t, "Foo tool", pkg.Description)
	require.Equal(t, []string{"alice", "bob"}, pkg.Authors)
	require.Nil(t, pkg.Owners)

	require.Equal(t, "patched:1.2.3", readEntry(t, result.OutputPath, "tools/Foo.exe"))
	require.Equal(t, "library", readEntry(t, result.OutputPath, "lib/net48/Foo.dll"))

	requireReleased(t, prefix)
}

// TestRunAppliesPrereleaseTag versions the package with the new tag but not the executables.
func TestRunAppliesPrereleaseTag(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	input := filepath.Join(dir, "Foo.nupkg")
	writePackage(t, input, "Foo", "1.2.3-beta1", map[string]string{"Foo.exe": "MZ"})

	settings, prefix := writeSettings(t, dir)
	runner := &recordingRunner{}

	result, err := Run(context.Background(), &Options{
		PackagePath:   input,
		OutputDir:     dir,
		PrereleaseTag: "rc.1",
		ConfigPath:    settings,
		Locator:       fakeLocator{},
		Runner:        runner,
	})
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "Foo.1.2.3-rc.1.nupkg"), result.OutputPath)
	require.Equal(t, "1.2.3", runner.calls[0].Version)

	reader, err := archive.Open(result.OutputPath, "")
	require.NoError(t, err)
	require.Equal(t, "1.2.3-rc.1", reader.Package().RawVersion)
	require.NoError(t, reader.Close())

	requireReleased(t, prefix)
}

// TestRunInvalidArguments fails before touching the package.
func TestRunInvalidArguments(t *testing.T) {
	t.Parallel()

	_, err := Run(context.Background(), nil)
	require.ErrorIs(t, err, nupkg.ErrInvalidArguments)

	_, err = Run(context.Background(), &Options{PackagePath: "  "})
	require.ErrorIs(t, err, nupkg.ErrInvalidArguments)

	_, err = Run(context.Background(), &Options{PackagePath: "Foo.nupkg", PrereleaseTag: "not valid"})
	require.ErrorIs(t, err, nupkg.ErrInvalidArguments)

	dir := t.TempDir()
	settings, _ := writeSettings(t, dir)

	_, err = Run(context.Background(), &Options{PackagePath: "Foo.nupkg", ConfigPath: settings, LogLevel: "loud"})
	require.ErrorIs(t, err, nupkg.ErrInvalidArguments)
}

// TestRunMissingPackage reports a missing input.
func TestRunMissingPackage(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	settings, prefix := writeSettings(t, dir)

	_, err := Run(context.Background(), &Options{
		PackagePath: filepath.Join(dir, "absent.nupkg"),
		ConfigPath:  settings,
		Runner:      &recordingRunner{},
	})
	require.ErrorIs(t, err, nupkg.ErrNotFound)
	require.Contains(t, err.Error(), "open package")

	requireReleased(t, prefix)
}

// TestRunVersionNotFound aborts after extraction and cleans up.
func TestRunVersionNotFound(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	input := filepath.Join(dir, "Foo.nupkg")
	writePackage(t, input, "Foo", "nightly", map[string]string{"Foo.exe": "MZ"})

	settings, prefix := writeSettings(t, dir)
	runner := &recordingRunner{}

	_, err := Run(context.Background(), &Options{
		PackagePath: input,
		OutputDir:   filepath.Join(dir, "out"),
		ConfigPath:  settings,
		Locator:     fakeLocator{},
		Runner:      runner,
	})
	require.ErrorIs(t, err, nupkg.ErrVersionNotFound)
	require.Empty(t, runner.calls)

	_, statErr := os.Stat(filepath.Join(dir, "out"))
	require.ErrorIs(t, statErr, os.ErrNotExist)

	requireReleased(t, prefix)
}

// TestRunToolFailure stops at the failing executable and writes nothing.
func TestRunToolFailure(t *testing.T) {
	t.Parallel()

	for name, outcome := range map[string]patcher.Outcome{
		"exit code": patcher.Completed(1),
		"timeout":   patcher.TimedOut(),
	} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			dir := t.TempDir()
			input := filepath.Join(dir, "Foo.nupkg")
			writePackage(t, input, "Foo", "2.0.0-alpha", map[string]string{
				"a/First.exe":  "MZ",
				"b/Second.exe": "MZ",
				"c/Third.exe":  "MZ",
			})

			settings, prefix := writeSettings(t, dir)
			runner := &recordingRunner{failAt: 2, outcome: outcome}
			outDir := filepath.Join(dir, "out")

			_, err := Run(context.Background(), &Options{
				PackagePath: input,
				OutputDir:   outDir,
				ConfigPath:  settings,
				Locator:     fakeLocator{},
				Runner:      runner,
			})
			require.Error(t, err)

			if outcome.Status == patcher.StatusTimedOut {
				require.ErrorIs(t, err, nupkg.ErrTimedOut)
			} else {
				require.ErrorIs(t, err, nupkg.ErrExternalTool)
			}

			var toolErr *patcher.ToolError
			require.ErrorAs(t, err, &toolErr)
			require.Equal(t, "Second.exe", filepath.Base(toolErr.File))
			require.Len(t, runner.calls, 2)

			_, statErr := os.Stat(filepath.Join(outDir, "Foo.2.0.0.nupkg"))
			require.ErrorIs(t, statErr, os.ErrNotExist)

			requireReleased(t, prefix)
		})
	}
}

// TestRunWriteFailure releases the working directory when the output cannot be written.
func TestRunWriteFailure(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	input := filepath.Join(dir, "Foo.nupkg")
	writePackage(t, input, "Foo", "1.2.3-beta1", map[string]string{"Foo.exe": "MZ"})

	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("not a directory"), 0o600))

	settings, prefix := writeSettings(t, dir)
	runner := &recordingRunner{}

	_, err := Run(context.Background(), &Options{
		PackagePath: input,
		OutputDir:   filepath.Join(blocker, "out"),
		ConfigPath:  settings,
		Locator:     fakeLocator{},
		Runner:      runner,
	})
	require.ErrorIs(t, err, nupkg.ErrIO)
	require.Len(t, runner.calls, 1)

	requireReleased(t, prefix)
}

// TestRunDefaultsToWorkingDirectory writes the package next to the caller.
func TestRunDefaultsToWorkingDirectory(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "input", "Foo.nupkg")
	require.NoError(t, os.MkdirAll(filepath.Dir(input), 0o755))
	writePackage(t, input, "Foo", "3.1.4+sha.abc", map[string]string{"readme.txt": "hi"})

	settings, prefix := writeSettings(t, dir)

	t.Chdir(dir)

	result, err := Run(context.Background(), &Options{
		PackagePath: input,
		ConfigPath:  settings,
		Locator:     fakeLocator{},
		Runner:      &recordingRunner{},
	})
	require.NoError(t, err)
	require.Empty(t, result.Patched)

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.Equal(t, filepath.Join(wd, "Foo.3.1.4.nupkg"), result.OutputPath)

	_, err = os.Stat(result.OutputPath)
	require.NoError(t, err)

	requireReleased(t, prefix)
}
