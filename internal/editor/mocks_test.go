package editor

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strconv"
	"strings"

	"github.com/stretchr/testify/mock"

	"github.com/p-arndt/werkbank/internal/docker"
)

type MockSettings struct {
	mock.Mock
}

func (m *MockSettings) Get(userID string) (string, error) {
	args := m.Called(userID)
	return args.String(0), args.Error(1)
}

func (m *MockSettings) Set(userID, text string) error {
	args := m.Called(userID, text)
	return args.Error(0)
}

// fakeSandbox interprets the exact argv shapes the handler builds against an
// in-memory filesystem, so command semantics can be tested end to end
// without a container engine.
type fakeSandbox struct {
	files map[string]string
	dirs  map[string]bool

	// runOutput/runExit script canned results for `sh -c` run commands.
	runOutput map[string]string
	runExit   map[string]int

	killed  []int
	nextPID int
	execErr error
}

func newFakeSandbox(dirs ...string) *fakeSandbox {
	f := &fakeSandbox{
		files:     make(map[string]string),
		dirs:      make(map[string]bool),
		runOutput: make(map[string]string),
		runExit:   make(map[string]int),
	}
	for _, d := range dirs {
		f.dirs[d] = true
	}
	return f
}

func (f *fakeSandbox) Exec(_ context.Context, _ string, spec docker.ExecSpec) (*docker.ExecResult, error) {
	if f.execErr != nil {
		return nil, f.execErr
	}

	switch spec.Cmd[0] {
	case "ls":
		return f.ls(spec.Cmd[2]), nil
	case "cat":
		return f.cat(spec.Cmd[1]), nil
	case "sh":
		return f.sh(spec), nil
	case "rm":
		return f.rm(spec.Cmd[2]), nil
	case "mv":
		return f.mv(spec.Cmd[1], spec.Cmd[2]), nil
	case "test":
		if f.dirs[spec.Cmd[2]] {
			return &docker.ExecResult{ExitCode: 0}, nil
		}
		return &docker.ExecResult{ExitCode: 1}, nil
	case "kill":
		pid, _ := strconv.Atoi(spec.Cmd[1])
		f.killed = append(f.killed, pid)
		return &docker.ExecResult{ExitCode: 0}, nil
	}
	return &docker.ExecResult{ExitCode: 127, Output: "command not found: " + spec.Cmd[0]}, nil
}

func (f *fakeSandbox) ls(dir string) *docker.ExecResult {
	if !f.dirs[dir] {
		return &docker.ExecResult{ExitCode: 2, Output: "ls: cannot access '" + dir + "': No such file or directory"}
	}
	var names []string
	seen := make(map[string]bool)
	collect := func(p string, isDir bool) {
		rel, ok := strings.CutPrefix(p, dir+"/")
		if !ok || rel == "" || strings.Contains(rel, "/") {
			return
		}
		if strings.HasPrefix(rel, ".") {
			return // ls without -a skips hidden entries
		}
		name := rel
		if isDir {
			name += "/"
		}
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	for p := range f.files {
		collect(p, false)
	}
	for p := range f.dirs {
		collect(p, true)
	}
	sort.Strings(names)
	return &docker.ExecResult{Output: strings.Join(names, "\n") + "\n"}
}

func (f *fakeSandbox) cat(p string) *docker.ExecResult {
	content, ok := f.files[p]
	if !ok {
		return &docker.ExecResult{ExitCode: 1, Output: "cat: " + p + ": No such file or directory"}
	}
	return &docker.ExecResult{Output: content}
}

func (f *fakeSandbox) sh(spec docker.ExecSpec) *docker.ExecResult {
	script := spec.Cmd[2]

	if target, ok := strings.CutPrefix(script, "cat > "); ok && spec.Stdin != nil {
		p := strings.Trim(target, "'")
		f.files[p] = *spec.Stdin
		f.dirs[path.Dir(p)] = true
		return &docker.ExecResult{ExitCode: 0}
	}

	f.nextPID++
	pid := 100 + f.nextPID

	if echoed, ok := strings.CutPrefix(script, "echo "); ok {
		return &docker.ExecResult{Output: echoed + "\n", PID: pid}
	}
	return &docker.ExecResult{
		Output:   f.runOutput[script],
		ExitCode: f.runExit[script],
		PID:      pid,
	}
}

func (f *fakeSandbox) rm(p string) *docker.ExecResult {
	delete(f.files, p)
	delete(f.dirs, p)
	for k := range f.files {
		if strings.HasPrefix(k, p+"/") {
			delete(f.files, k)
		}
	}
	for k := range f.dirs {
		if strings.HasPrefix(k, p+"/") {
			delete(f.dirs, k)
		}
	}
	return &docker.ExecResult{ExitCode: 0}
}

// hangingSandbox blocks every exec until its context expires, like a process
// that never exits.
type hangingSandbox struct{}

func (hangingSandbox) Exec(ctx context.Context, _ string, _ docker.ExecSpec) (*docker.ExecResult, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (f *fakeSandbox) mv(from, to string) *docker.ExecResult {
	if content, ok := f.files[from]; ok {
		delete(f.files, from)
		f.files[to] = content
		return &docker.ExecResult{ExitCode: 0}
	}
	if f.dirs[from] {
		delete(f.dirs, from)
		f.dirs[to] = true
		return &docker.ExecResult{ExitCode: 0}
	}
	return &docker.ExecResult{
		ExitCode: 1,
		Output:   fmt.Sprintf("mv: cannot stat '%s': No such file or directory", from),
	}
}
