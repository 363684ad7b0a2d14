package git

import (
	"errors"
	"fmt"
	"strings"
)

// Error types for git operations.
var (
	// ErrNotRepository indicates the path is not a git repository.
	ErrNotRepository = errors.New("not a git repository")

	// ErrRepositoryNotFound indicates no repository was found.
	ErrRepositoryNotFound = errors.New("repository not found")

	// ErrManagerClosed indicates the manager has been closed.
	ErrManagerClosed = errors.New("manager closed")

	// ErrRepositoryClosed indicates the repository session has been closed.
	ErrRepositoryClosed = errors.New("repository closed")

	// ErrGitNotFound indicates the git executable is not on PATH.
	ErrGitNotFound = errors.New("git executable not found")
)

// CommandError describes a failed git invocation.
type CommandError struct {
	// Args are the arguments passed to git.
	Args []string

	// ExitCode is the process exit status, or -1 if the process did not run.
	ExitCode int

	// Stderr is the trimmed standard error output.
	Stderr string

	// Err is the underlying error from os/exec.
	Err error
}

// Error implements the error interface.
func (e *CommandError) Error() string {
	msg := strings.TrimSpace(e.Stderr)
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	return fmt.Sprintf("git %s: %s", strings.Join(e.Args, " "), msg)
}

// Unwrap returns the underlying error.
func (e *CommandError) Unwrap() error {
	return e.Err
}
