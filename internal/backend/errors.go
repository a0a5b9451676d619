package backend

import (
	"errors"
	"fmt"
)

// LaunchErrorKind discriminates why a spawn could not happen. Launch errors
// are fatal to a supervised run; they are never retried.
type LaunchErrorKind int

const (
	// ExecutableNotFound means the command does not resolve to an executable.
	ExecutableNotFound LaunchErrorKind = iota
	// WorkingDirectoryInvalid means the configured workdir does not exist or is not a directory.
	WorkingDirectoryInvalid
	// SpawnDenied means the OS refused the spawn (permissions, resources).
	SpawnDenied
	// PortPreboundExternally means something else already listens on the backend port.
	// Detection is a best-effort pre-check, not a guarantee.
	PortPreboundExternally
)

func (k LaunchErrorKind) String() string {
	switch k {
	case ExecutableNotFound:
		return "executable_not_found"
	case WorkingDirectoryInvalid:
		return "working_directory_invalid"
	case SpawnDenied:
		return "spawn_denied"
	case PortPreboundExternally:
		return "port_prebound"
	default:
		return "unknown"
	}
}

// LaunchError is returned by Launcher.Start when the backend never came up.
type LaunchError struct {
	Kind   LaunchErrorKind
	Detail string // path, address or command the failure refers to
	Err    error
}

func (e *LaunchError) Error() string {
	msg := fmt.Sprintf("launch %s", e.Kind)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *LaunchError) Unwrap() error { return e.Err }

// IsLaunchError reports whether err is a LaunchError of the given kind.
func IsLaunchError(err error, kind LaunchErrorKind) bool {
	var le *LaunchError
	return errors.As(err, &le) && le.Kind == kind
}
