// Package manifest derives the metadata and the file list of a promoted package.
package manifest
