// Package nuspec reads and writes the XML manifest descriptor stored at the
// root of a package archive. Element matching ignores XML namespaces, so
// descriptors produced by any schema revision are accepted.
package nuspec
