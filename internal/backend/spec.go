package backend

import (
	"fmt"
	"os/exec"
	"strings"

	"github.com/loykin/sidekick/internal/logger"
)

// Spec describes the one backend process the supervisor owns.
type Spec struct {
	Name       string        `json:"name" mapstructure:"name"`
	Command    string        `json:"command" mapstructure:"command"`         // executable, or a full command line when Args is empty
	Args       []string      `json:"args" mapstructure:"args"`               // explicit arguments; disables shell parsing
	WorkDir    string        `json:"work_dir" mapstructure:"workdir"`        // working directory the backend expects
	Env        []string      `json:"env" mapstructure:"env"`                 // extra KEY=VALUE entries merged over the base env
	Host       string        `json:"host" mapstructure:"host"`               // loopback host the backend binds; informs the port pre-check
	Port       int           `json:"port" mapstructure:"port"`               // backend port; informs the port pre-check
	Log        logger.Config `json:"log" mapstructure:"log"`                 // stdout/stderr capture for the child
}

// BuildCommand constructs the *exec.Cmd for this spec. With explicit Args the
// command is executed directly. Otherwise the command line is parsed: an
// explicit "sh -c" prefix is honored without double-wrapping, shell
// metacharacters force a /bin/sh -c invocation, and a plain command is split
// on whitespace.
func (s *Spec) BuildCommand() *exec.Cmd {
	if len(s.Args) > 0 {
		// #nosec G204
		return exec.Command(s.Command, s.Args...)
	}
	cmdStr := strings.TrimSpace(s.Command)
	if cmdStr == "" {
		// #nosec G204
		return exec.Command("/bin/true")
	}
	if after, ok := parseExplicitShell(cmdStr); ok {
		// #nosec G204
		return exec.Command("/bin/sh", "-c", after)
	}
	if strings.ContainsAny(cmdStr, "|&;<>*?`$\"'(){}[]~") {
		// #nosec G204
		return exec.Command("/bin/sh", "-c", cmdStr)
	}
	parts := strings.Fields(cmdStr)
	name := parts[0]
	var args []string
	if len(parts) > 1 {
		args = parts[1:]
	}
	// #nosec G204
	return exec.Command(name, args...)
}

// Executable returns the program that BuildCommand will launch, for existence
// checks before spawning.
func (s *Spec) Executable() string {
	if len(s.Args) > 0 {
		return s.Command
	}
	cmdStr := strings.TrimSpace(s.Command)
	if cmdStr == "" {
		return "/bin/true"
	}
	if _, ok := parseExplicitShell(cmdStr); ok {
		return "/bin/sh"
	}
	if strings.ContainsAny(cmdStr, "|&;<>*?`$\"'(){}[]~") {
		return "/bin/sh"
	}
	return strings.Fields(cmdStr)[0]
}

// Addr returns the host:port the backend is expected to listen on.
func (s *Spec) Addr() string {
	host := s.Host
	if host == "" {
		host = "127.0.0.1"
	}
	return fmt.Sprintf("%s:%d", host, s.Port)
}

// parseExplicitShell detects "sh -c <ARG>" style prefixes and returns the
// script after -c with one pair of wrapping quotes stripped.
func parseExplicitShell(cmdStr string) (string, bool) {
	trim := strings.TrimLeft(cmdStr, " \t")
	for _, p := range []string{"sh -c ", "/bin/sh -c ", "/usr/bin/sh -c "} {
		if strings.HasPrefix(trim, p) {
			after := trim[len(p):]
			if n := len(after); n >= 2 {
				if (after[0] == '\'' && after[n-1] == '\'') || (after[0] == '"' && after[n-1] == '"') {
					after = after[1 : n-1]
				}
			}
			return after, true
		}
	}
	return "", false
}
