package patcher

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/oshokin/nuget-promoter/internal/domain/nupkg"
)

const (
	// DefaultTimeout bounds a single resource editor invocation.
	DefaultTimeout = 10 * time.Second

	// SetProductVersionFlag is the editor switch that rewrites the product version resource.
	SetProductVersionFlag = "--set-product-version"

	// waitDelay bounds how long Wait keeps draining output after the editor was killed.
	waitDelay = 2 * time.Second

	// maxOutputLength caps the editor output carried in an Outcome.
	maxOutputLength = 4096
)

// Status tells how an invocation ended.
type Status int

const (
	// StatusCompleted means the editor exited on its own; see Outcome.ExitCode.
	StatusCompleted Status = iota + 1
	// StatusTimedOut means the editor was terminated after its deadline.
	StatusTimedOut
)

// String implements fmt.Stringer.
func (s Status) String() string {
	switch s {
	case StatusCompleted:
		return "completed"
	case StatusTimedOut:
		return "timed out"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Outcome is the result of one invocation.
type Outcome struct {
	// Status is either StatusCompleted or StatusTimedOut.
	Status Status
	// ExitCode is meaningful only for StatusCompleted.
	ExitCode int
	// Output holds the combined, truncated stdout and stderr of the editor.
	Output string
}

// Completed returns the outcome of an editor that exited with code.
func Completed(code int) Outcome {
	return Outcome{Status: StatusCompleted, ExitCode: code}
}

// TimedOut returns the outcome of an editor that exceeded its deadline.
func TimedOut() Outcome {
	return Outcome{Status: StatusTimedOut}
}

// Succeeded reports whether the outcome is Completed(0).
func (o Outcome) Succeeded() bool {
	return o.Status == StatusCompleted && o.ExitCode == 0
}

// String implements fmt.Stringer.
func (o Outcome) String() string {
	if o.Status == StatusCompleted {
		return fmt.Sprintf("completed with exit code %d", o.ExitCode)
	}

	return o.Status.String()
}

// Invocation describes one call of the resource editor.
type Invocation struct {
	// ToolPath is the editor executable.
	ToolPath string
	// TargetFile is the executable being patched.
	TargetFile string
	// Version is written into the product version resource.
	Version string
	// Timeout bounds the call; zero means DefaultTimeout.
	Timeout time.Duration
}

// Args returns the editor arguments.
func (i Invocation) Args() []string {
	return []string{i.TargetFile, SetProductVersionFlag, i.Version}
}

// String returns the command line for messages.
func (i Invocation) String() string {
	return i.ToolPath + " " + strings.Join(i.Args(), " ")
}

// Runner executes a single invocation.
//
//go:generate mockgen -destination=mocks/mock_runner.go -package=mocks -source=runner.go Runner
type Runner interface {
	// Run blocks until the editor exits or its timeout expires. A returned
	// error means the editor could not be run at all or ctx was canceled.
	Run(ctx context.Context, inv Invocation) (Outcome, error)
}

// ExecRunner runs the editor as a child process.
type ExecRunner struct {
	// terminate stops a timed-out editor together with its descendants.
	terminate func(process *os.Process) error
}

// NewExecRunner returns a Runner backed by os/exec.
func NewExecRunner() *ExecRunner {
	return &ExecRunner{
		terminate: terminateTree,
	}
}

// Run implements Runner.
func (r *ExecRunner) Run(ctx context.Context, inv Invocation) (Outcome, error) {
	timeout := inv.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var output bytes.Buffer

	//nolint:gosec // The editor path comes from the locator and the arguments are file paths.
	cmd := exec.CommandContext(runCtx, inv.ToolPath, inv.Args()...)
	cmd.Stdout = &output
	cmd.Stderr = &output
	cmd.WaitDelay = waitDelay
	cmd.Cancel = func() error {
		if r.terminate == nil {
			return cmd.Process.Kill()
		}

		return r.terminate(cmd.Process)
	}

	err := cmd.Run()

	outcome, err := classify(ctx, runCtx, err)
	if err != nil {
		return Outcome{}, fmt.Errorf("run %s: %w", inv, err)
	}

	outcome.Output = truncate(output.String())

	return outcome, nil
}

// classify turns the result of cmd.Run into an Outcome.
func classify(parent, runCtx context.Context, err error) (Outcome, error) {
	if err == nil {
		return Completed(0), nil
	}

	if parentErr := parent.Err(); parentErr != nil {
		return Outcome{}, parentErr
	}

	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return TimedOut(), nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return Completed(exitErr.ExitCode()), nil
	}

	return Outcome{}, fmt.Errorf("%w: %w", nupkg.ErrExternalTool, err)
}

func truncate(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= maxOutputLength {
		return s
	}

	return s[:maxOutputLength] + "..."
}
