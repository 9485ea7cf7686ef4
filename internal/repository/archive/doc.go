// Package archive reads and writes package archives on disk.
//
// Reader opens a zip archive, exposes the metadata of its root descriptor and
// extracts every entry into a directory. Write serializes a descriptor plus a
// file list into a new archive and swaps it into place atomically.
// AcquireWorkDir hands out the per-run extraction directory together with the
// function that removes it.
package archive
