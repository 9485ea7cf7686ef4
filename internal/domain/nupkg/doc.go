// Package nupkg holds the domain model of a package promotion: the package
// metadata read from the source archive, the manifest files of the rebuilt
// archive, the error classes every pipeline stage reports, and the rules that
// turn a raw prerelease version into a release version.
package nupkg
