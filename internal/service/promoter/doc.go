// Package promoter turns a prerelease package into a release package.
//
// Run opens the archive, extracts it into a per-run working directory,
// resolves the release version, stamps it into every executable through the
// resource editor, rebuilds the manifest without the prerelease suffix and
// writes "{id}.{version}.nupkg". Stages run strictly in that order and the
// first failure aborts the run; the working directory is removed on every path.
package promoter
