package patcher

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/oshokin/nuget-promoter/internal/domain/nupkg"
	"github.com/oshokin/nuget-promoter/internal/logger"
)

// DefaultExtension selects the files handed to the editor.
const DefaultExtension = ".exe"

// ToolError reports an invocation that did not end with Completed(0).
type ToolError struct {
	// File is the executable that could not be patched.
	File string
	// Command is the full command line of the failed invocation.
	Command string
	// Outcome is what the runner observed.
	Outcome Outcome
}

// Error implements error.
func (e *ToolError) Error() string {
	msg := fmt.Sprintf("failed to modify resources of %s (%s), command invoked was: '%s'", e.File, e.Outcome, e.Command)
	if e.Outcome.Output != "" {
		msg += ": " + e.Outcome.Output
	}

	return msg
}

// Unwrap maps the outcome onto the pipeline error classes.
func (e *ToolError) Unwrap() error {
	if e.Outcome.Status == StatusTimedOut {
		return nupkg.ErrTimedOut
	}

	return nupkg.ErrExternalTool
}

// Patcher stamps a version into every executable of an extraction tree.
type Patcher struct {
	// toolName is the conventional editor name handed to the locator.
	toolName string
	// locator resolves toolName.
	locator Locator
	// runner executes invocations.
	runner Runner
	// timeout bounds each invocation.
	timeout time.Duration
	// extension selects executables.
	extension string
	// jobs is the number of concurrent invocations.
	jobs int
}

// Option configures a Patcher.
type Option func(*Patcher)

// WithLocator replaces the default StaticLocator.
func WithLocator(locator Locator) Option {
	return func(p *Patcher) {
		if locator != nil {
			p.locator = locator
		}
	}
}

// WithRunner replaces the default ExecRunner.
func WithRunner(runner Runner) Option {
	return func(p *Patcher) {
		if runner != nil {
			p.runner = runner
		}
	}
}

// WithTimeout sets the per-invocation timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(p *Patcher) {
		if timeout > 0 {
			p.timeout = timeout
		}
	}
}

// WithExtension sets the extension that marks executables.
func WithExtension(ext string) Option {
	return func(p *Patcher) {
		if ext != "" {
			p.extension = ext
		}
	}
}

// WithJobs allows up to n concurrent invocations.
func WithJobs(n int) Option {
	return func(p *Patcher) {
		if n > 0 {
			p.jobs = n
		}
	}
}

// New returns a Patcher for the editor called toolName.
func New(toolName string, opts ...Option) *Patcher {
	p := &Patcher{
		toolName:  toolName,
		timeout:   DefaultTimeout,
		extension: DefaultExtension,
		jobs:      1,
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.locator == nil {
		p.locator = NewStaticLocator()
	}

	if p.runner == nil {
		p.runner = NewExecRunner()
	}

	return p
}

// ToolPath returns the located editor.
func (p *Patcher) ToolPath() string {
	return p.locator.Locate(p.toolName)
}

// Patch invokes the editor once. Anything but Completed(0) yields a *ToolError.
func (p *Patcher) Patch(ctx context.Context, toolPath, file, version string) (Outcome, error) {
	inv := Invocation{
		ToolPath:   toolPath,
		TargetFile: file,
		Version:    version,
		Timeout:    p.timeout,
	}

	outcome, err := p.runner.Run(ctx, inv)
	if err != nil {
		return Outcome{}, err
	}

	if !outcome.Succeeded() {
		return outcome, &ToolError{
			File:    file,
			Command: inv.String(),
			Outcome: outcome,
		}
	}

	return outcome, nil
}

// PatchAll patches every executable below root in path order and returns the
// files patched. It stops at the first failure; files patched before it stay
// modified on disk.
func (p *Patcher) PatchAll(ctx context.Context, root, version string) ([]string, error) {
	files, err := FindExecutables(root, p.extension)
	if err != nil {
		return nil, err
	}

	if len(files) == 0 {
		logger.InfoKV(ctx, "No executables to patch", "extension", p.extension)
		return nil, nil
	}

	toolPath := p.ToolPath()
	logger.DebugKV(ctx, "Resource editor located", "tool", toolPath)

	if p.jobs <= 1 || len(files) == 1 {
		return p.patchSequentially(ctx, toolPath, files, version)
	}

	return p.patchConcurrently(ctx, toolPath, files, version)
}

func (p *Patcher) patchSequentially(ctx context.Context, toolPath string, files []string, version string) ([]string, error) {
	patched := make([]string, 0, len(files))

	for _, file := range files {
		logger.Infof(ctx, "Adjusting the product version of %s to %s", file, version)

		if _, err := p.Patch(ctx, toolPath, file, version); err != nil {
			return patched, err
		}

		patched = append(patched, file)
	}

	return patched, nil
}

// patchConcurrently runs every invocation without cancelling siblings on
// failure, so the reported error is always the one with the lowest path index.
func (p *Patcher) patchConcurrently(ctx context.Context, toolPath string, files []string, version string) ([]string, error) {
	var group errgroup.Group

	group.SetLimit(p.jobs)

	errs := make([]error, len(files))

	for i, file := range files {
		group.Go(func() error {
			logger.Infof(ctx, "Adjusting the product version of %s to %s", file, version)

			_, errs[i] = p.Patch(ctx, toolPath, file, version)

			return nil
		})
	}

	_ = group.Wait()

	patched := make([]string, 0, len(files))

	var first error

	for i, err := range errs {
		if err == nil {
			patched = append(patched, files[i])
			continue
		}

		if first == nil {
			first = err
		}
	}

	return patched, first
}

// FindExecutables returns every regular file below root whose name ends with
// ext (case-insensitive), sorted lexicographically.
func FindExecutables(root, ext string) ([]string, error) {
	var files []string

	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if !d.Type().IsRegular() {
			return nil
		}

		name := d.Name()
		if len(name) >= len(ext) && strings.EqualFold(name[len(name)-len(ext):], ext) {
			files = append(files, path)
		}

		return nil
	})
	if walkErr != nil {
		return nil, fmt.Errorf("search executables in %s: %w: %w", root, nupkg.ErrIO, walkErr)
	}

	sort.Strings(files)

	return files, nil
}
