package backend

import (
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// RuntimeSource says where a backend runtime was found.
type RuntimeSource string

const (
	RuntimeBundled RuntimeSource = "bundled"
	RuntimeSystem  RuntimeSource = "system"
)

// RuntimeInfo describes the interpreter or executable that will run the backend.
type RuntimeInfo struct {
	Path    string        `json:"path"`
	Version string        `json:"version"`
	Source  RuntimeSource `json:"source"`
}

// ErrRuntimeNotFound is returned when neither a bundled nor a system runtime
// exists. The CLI treats this as a missing prerequisite and exits non-zero.
var ErrRuntimeNotFound = fmt.Errorf("no backend runtime found")

// FindRuntime locates the backend runtime. Bundled paths win over system
// candidates so a packaged application never silently picks up an unrelated
// installation. Version lookup is best-effort.
func FindRuntime(bundledPaths, systemCandidates []string) (RuntimeInfo, error) {
	for _, p := range bundledPaths {
		if fi, err := os.Stat(p); err == nil && !fi.IsDir() {
			return RuntimeInfo{
				Path:    p,
				Version: runtimeVersion(p),
				Source:  RuntimeBundled,
			}, nil
		}
	}
	for _, c := range systemCandidates {
		path, err := exec.LookPath(c)
		if err != nil {
			continue
		}
		return RuntimeInfo{
			Path:    path,
			Version: runtimeVersion(path),
			Source:  RuntimeSystem,
		}, nil
	}
	return RuntimeInfo{}, ErrRuntimeNotFound
}

func runtimeVersion(path string) string {
	// #nosec G204
	out, err := exec.Command(path, "--version").CombinedOutput()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}
