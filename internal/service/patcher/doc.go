// Package patcher drives the external resource editor that stamps the product
// version into executables shipped inside a package.
//
// Locator finds the editor binary, Runner executes one bounded invocation and
// reports either Completed(exit code) or TimedOut, and Patcher walks an
// extraction tree and patches every executable in path order, stopping at the
// first failure.
package patcher
