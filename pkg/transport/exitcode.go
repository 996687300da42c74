package transport

import (
	"os"
	"strings"
	"syscall"

	"github.com/pkg/errors"
)

// posixCommandNotFoundFragment is the error text POSIX shells emit (with
// inconsistent capitalization of "command") when the transport binary
// itself can't be found, distinguishing a misconfigured --command/--ubts-
// path from the transport starting fine and the far side failing.
const posixCommandNotFoundFragment = "ommand not found"

// exitCodeForProcessState extracts a child process's exit code from its
// post-exit state via the platform wait status, the same technique Conn.Wait
// uses to turn a transport's exec.ExitError into a reportable code.
func exitCodeForProcessState(state *os.ProcessState) (int, error) {
	waitStatus, ok := state.Sys().(syscall.WaitStatus)
	if !ok {
		return 0, errors.New("unable to access wait status")
	}
	return waitStatus.ExitStatus(), nil
}

// outputIsPOSIXCommandNotFound reports whether a transport child's captured
// stderr looks like a POSIX shell's "command not found" error.
func outputIsPOSIXCommandNotFound(output string) bool {
	return strings.Contains(output, posixCommandNotFoundFragment)
}
