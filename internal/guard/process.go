package guard

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/shirou/gopsutil/v4/process"
)

// ProcessChecker inspects the processes running on the host
type ProcessChecker interface {
	// IsProcessRunning reports whether a command line contains pattern
	IsProcessRunning(ctx context.Context, pattern string) (bool, error)

	// IsInstanceRunning reports whether executable name is running a
	// classification, either as "name run" or as the bare default command
	IsInstanceRunning(ctx context.Context, name string) (bool, error)
}

// procInfo is the part of a process the checks look at
type procInfo struct {
	PID  int32
	Name string
	Args []string
}

// SystemProcesses inspects the host process table. The calling process is
// never reported, so a classifier does not see itself as another instance.
type SystemProcesses struct {
	self int32
	list func(ctx context.Context) ([]procInfo, error)
}

// NewSystemProcesses creates a checker that ignores the current process
func NewSystemProcesses() *SystemProcesses {
	return &SystemProcesses{self: int32(os.Getpid()), list: listProcesses}
}

func listProcesses(ctx context.Context) ([]procInfo, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing processes: %w", err)
	}

	out := make([]procInfo, 0, len(procs))
	for _, p := range procs {
		// Processes can exit between listing and inspection
		name, err := p.NameWithContext(ctx)
		if err != nil {
			continue
		}
		args, _ := p.CmdlineSliceWithContext(ctx)
		out = append(out, procInfo{PID: p.Pid, Name: name, Args: args})
	}
	return out, nil
}

// IsProcessRunning implements ProcessChecker
func (s *SystemProcesses) IsProcessRunning(ctx context.Context, pattern string) (bool, error) {
	procs, err := s.list(ctx)
	if err != nil {
		return false, err
	}

	for _, p := range procs {
		if p.PID == s.self {
			continue
		}
		cmdline := strings.Join(p.Args, " ")
		if cmdline == "" {
			cmdline = p.Name
		}
		if strings.Contains(cmdline, pattern) {
			return true, nil
		}
	}
	return false, nil
}

// IsInstanceRunning implements ProcessChecker. A process whose arguments
// cannot be read counts as running when its name matches.
func (s *SystemProcesses) IsInstanceRunning(ctx context.Context, name string) (bool, error) {
	procs, err := s.list(ctx)
	if err != nil {
		return false, err
	}

	for _, p := range procs {
		if p.PID == s.self {
			continue
		}
		if len(p.Args) == 0 {
			if p.Name == name {
				return true, nil
			}
			continue
		}
		if filepath.Base(p.Args[0]) == name && isRunInvocation(p.Args[1:]) {
			return true, nil
		}
	}
	return false, nil
}

// Root flags that take a separate value argument
var valueFlags = map[string]bool{
	"--config": true,
}

// isRunInvocation reports whether args select the classification: no
// subcommand at all, or "run". Help and version requests never classify.
func isRunInvocation(args []string) bool {
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "-h" || arg == "--help" || arg == "--version":
			return false
		case arg == "--":
			return i+1 >= len(args) || args[i+1] == "run"
		case strings.HasPrefix(arg, "-"):
			if valueFlags[arg] {
				i++
			}
		default:
			return arg == "run" && !wantsHelp(args[i+1:])
		}
	}
	return true
}

func wantsHelp(args []string) bool {
	for _, arg := range args {
		if arg == "-h" || arg == "--help" {
			return true
		}
	}
	return false
}
