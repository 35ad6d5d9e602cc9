// Package shell implements the kfs command language on top of a
// [session.Session], both as an interactive line editor and as a script
// runner.
package shell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/flynn-archive/go-shlex"

	"github.com/brettbedarf/kfs"
	"github.com/brettbedarf/kfs/internal/util"
	"github.com/brettbedarf/kfs/session"
)

// Version is printed in the interactive banner.
var Version = "0.1.0"

var (
	// ErrExit is returned by Exec for the exit command.
	ErrExit = errors.New("exit")

	errCmdNotFound = errors.New("command not found")
	errSyntax      = errors.New("invalid syntax")
	errTooManyArgs = errors.New("too many arguments")
	errOutOfBounds = errors.New("out of bounds")
)

// Shell parses command lines and runs them against a session. Command output
// goes to the writer given to [New].
type Shell struct {
	sess     *session.Session
	out      io.Writer
	commands map[string]*command
}

type command struct {
	name  string
	usage string
	help  string
	path  bool // arguments complete as child names
	run   func(ctx context.Context, sh *Shell, args []string) error
}

// New creates a Shell writing to out.
func New(sess *session.Session, out io.Writer) *Shell {
	sh := &Shell{sess: sess, out: out, commands: make(map[string]*command)}
	for _, c := range commandTable() {
		sh.commands[c.name] = c
	}
	return sh
}

// Session returns the session the shell operates on.
func (sh *Shell) Session() *session.Session {
	return sh.sess
}

// Commands returns the command names in alphabetical order.
func (sh *Shell) Commands() []string {
	names := make([]string, 0, len(sh.commands))
	for name := range sh.commands {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Exec runs one command line. Blank lines and lines starting with '#' do
// nothing.
func (sh *Shell) Exec(ctx context.Context, line string) error {
	logger := util.GetLogger("Shell.Exec")

	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return nil
	}
	args, err := shlex.Split(line)
	if err != nil {
		logger.Debug().Err(err).Str("line", line).Msg("Failed to tokenize")
		return errSyntax
	}
	if len(args) == 0 {
		return nil
	}

	cmd, ok := sh.commands[args[0]]
	if !ok {
		return errCmdNotFound
	}
	logger.Trace().Str("cmd", cmd.name).Strs("args", args[1:]).Msg("Running command")
	if err := cmd.run(ctx, sh, args[1:]); err != nil {
		if !errors.Is(err, ErrExit) {
			logger.Debug().Err(err).Str("cmd", cmd.name).Msg("Command failed")
		}
		return err
	}
	return nil
}

// Message returns the line printed to the user for err.
func Message(err error) string {
	switch {
	case errors.Is(err, errCmdNotFound):
		return "Command not found"
	case errors.Is(err, errSyntax):
		return "Invalid syntax"
	case errors.Is(err, errTooManyArgs):
		return "Too many arguments passed to the command"
	case errors.Is(err, errOutOfBounds):
		return "Invalid range (out of bounds)"
	case errors.Is(err, session.ErrSourceUnavailable):
		return "Can't access to the specified file"
	}

	switch kfs.CodeOf(err) {
	case kfs.ErrNotADirectory:
		return "Can't add a child to a FILE node"
	case kfs.ErrInvalidArgument:
		return "Invalid syntax"
	case kfs.ErrResourceExhausted, kfs.ErrAllocationFailure:
		return "Hit resource limits"
	case kfs.ErrNoRoot:
		return "No root node selected"
	case kfs.ErrNotFound:
		return "File or directory not found"
	case kfs.ErrWrongNodeType:
		return "Invalid node type"
	case kfs.ErrNameConflict:
		return "A file or a directory with this name already exists"
	case kfs.ErrInvalidName:
		return "The argument contains invalid characters"
	case kfs.ErrStaleHandle:
		return "Stale file handle"
	}
	return err.Error()
}

func (sh *Shell) printf(format string, a ...any) {
	fmt.Fprintf(sh.out, format, a...)
}

// argsExactly checks the argument count: too few is a syntax error
func argsExactly(args []string, n int) error {
	switch {
	case len(args) < n:
		return errSyntax
	case len(args) > n:
		return errTooManyArgs
	}
	return nil
}

// argsBetween is like argsExactly for a range of counts
func argsBetween(args []string, lo, hi int) error {
	switch {
	case len(args) < lo:
		return errSyntax
	case len(args) > hi:
		return errTooManyArgs
	}
	return nil
}

// Output returns the writer command output goes to.
func (sh *Shell) Output() io.Writer {
	return sh.out
}
