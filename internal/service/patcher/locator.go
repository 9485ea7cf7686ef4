package patcher

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Locator resolves the resource editor name to something executable.
type Locator interface {
	Locate(name string) string
}

// StaticLocator searches the working directory, then the directory of the
// running program, then the OS search path. When nothing matches it returns
// the bare name and lets the invocation fail.
type StaticLocator struct {
	// WorkDir is searched first.
	WorkDir string
	// ProgramDir is searched second.
	ProgramDir string
	// LookPath consults the OS search path.
	LookPath func(file string) (string, error)
	// Exists reports whether a candidate path is a regular file.
	Exists func(path string) bool
}

// NewStaticLocator returns a locator bound to the current process environment.
func NewStaticLocator() *StaticLocator {
	locator := &StaticLocator{
		LookPath: exec.LookPath,
		Exists:   isRegularFile,
	}

	if wd, err := os.Getwd(); err == nil {
		locator.WorkDir = wd
	}

	if self, err := os.Executable(); err == nil {
		if resolved, evalErr := filepath.EvalSymlinks(self); evalErr == nil {
			self = resolved
		}

		locator.ProgramDir = filepath.Dir(self)
	}

	return locator
}

// Locate implements Locator.
func (l *StaticLocator) Locate(name string) string {
	// Explicit paths are used as given.
	if filepath.IsAbs(name) || strings.ContainsAny(name, `/\`) {
		return name
	}

	exists := l.Exists
	if exists == nil {
		exists = isRegularFile
	}

	for _, dir := range []string{l.WorkDir, l.ProgramDir} {
		if dir == "" {
			continue
		}

		if candidate := filepath.Join(dir, name); exists(candidate) {
			return candidate
		}
	}

	if l.LookPath != nil {
		if found, err := l.LookPath(name); err == nil {
			return found
		}
	}

	return name
}

func isRegularFile(path string) bool {
	info, err := os.Stat(path)

	return err == nil && info.Mode().IsRegular()
}
