package patcher

import (
	"errors"
	"os"

	"github.com/mitchellh/go-ps"
)

// terminateTree kills a timed-out editor and every process it spawned.
// Descendants must be listed while the editor is alive, since they are
// reparented once it dies, and the editor must die before them.
func terminateTree(process *os.Process) error {
	descendants, listErr := descendantsOf(process.Pid)

	if err := process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}

	return errors.Join(listErr, killAll(descendants))
}

// descendantsOf returns every process spawned, directly or not, by pid.
func descendantsOf(pid int) ([]int, error) {
	processList, err := ps.Processes()
	if err != nil {
		return nil, err
	}

	children := make(map[int][]int, len(processList))
	for _, process := range processList {
		children[process.PPid()] = append(children[process.PPid()], process.Pid())
	}

	var (
		result  []int
		pending = append([]int(nil), children[pid]...)
		visited = map[int]struct{}{pid: {}, os.Getpid(): {}}
	)

	for len(pending) > 0 {
		current := pending[0]
		pending = pending[1:]

		if _, seen := visited[current]; seen {
			continue
		}

		visited[current] = struct{}{}
		result = append(result, current)
		pending = append(pending, children[current]...)
	}

	return result, nil
}

func killAll(pids []int) error {
	var errs []error

	for _, pid := range pids {
		runningProcess, err := os.FindProcess(pid)
		if err != nil {
			errs = append(errs, err)
			continue
		}

		if err = runningProcess.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
