// Package transport constructs and starts the child process that speaks the
// wire protocol to a session driver (C6's "fork, connect stdio of the child
// to a transport command" step in spec.md §4.6). It is deliberately thin:
// spec.md §1 lists the transport itself as an out-of-scope external
// collaborator ("typically a shell+ssh pipe or a local pipe to a forked
// child"); this package only builds that pipe.
package transport

import (
	"bytes"
	"io"
	"os/exec"
	"strings"

	"github.com/pkg/errors"
)

// DefaultTemplate is the client's default transport command template, per
// spec.md §6.
const DefaultTemplate = "ssh {hostname} {ubts_path} {dest_dir}"

// LocalTemplate is selected by the client's --local flag, per spec.md §6.
const LocalTemplate = "{ubts_path} {dest_dir}"

// Substitutions holds the values a transport command template may reference.
type Substitutions struct {
	Hostname string
	UbtsPath string
	DestDir  string
}

var knownVariables = map[string]func(Substitutions) string{
	"{hostname}":  func(s Substitutions) string { return s.Hostname },
	"{ubts_path}": func(s Substitutions) string { return s.UbtsPath },
	"{dest_dir}":  func(s Substitutions) string { return s.DestDir },
}

// Render substitutes {hostname}, {ubts_path}, and {dest_dir} into template.
// An unrecognized `{...}` placeholder, or a recognized one whose value is
// required but empty, is an error, per spec.md §6: "Unknown template
// variables or missing required substitutions cause exit code 1 before any
// fork."
func Render(template string, subs Substitutions) (string, error) {
	var out strings.Builder
	rest := template
	for {
		start := strings.IndexByte(rest, '{')
		if start == -1 {
			out.WriteString(rest)
			break
		}
		end := strings.IndexByte(rest[start:], '}')
		if end == -1 {
			return "", errors.Errorf("unterminated template variable in %q", template)
		}
		end += start

		out.WriteString(rest[:start])
		placeholder := rest[start : end+1]
		fn, ok := knownVariables[placeholder]
		if !ok {
			return "", errors.Errorf("unknown template variable %q", placeholder)
		}
		value := fn(subs)
		if value == "" {
			return "", errors.Errorf("missing required substitution for %q", placeholder)
		}
		out.WriteString(value)

		rest = rest[end+1:]
	}
	return out.String(), nil
}

// Conn is a running transport child process, exposing its stdio as a
// request/response byte-stream pair.
type Conn struct {
	cmd    *exec.Cmd
	stderr *bytes.Buffer
	Stdin  io.WriteCloser
	Stdout io.ReadCloser
}

// Start renders the template and executes it as the transport child,
// connecting its stdin/stdout to the returned Conn, mirroring the original's
// exec_ssh's pipe-and-fork (spec.md §4.6). Argument splitting is whitespace
// tokenization, matching the fixed argv the original builds by hand; no
// shell is invoked, so shell metacharacters in a substituted value are
// inert rather than a command-injection risk.
func Start(template string, subs Substitutions) (*Conn, error) {
	line, err := Render(template, subs)
	if err != nil {
		return nil, err
	}

	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil, errors.New("transport command template rendered to an empty command")
	}

	cmd := exec.Command(fields[0], fields[1:]...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, errors.Wrap(err, "unable to create transport stdin pipe")
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, errors.Wrap(err, "unable to create transport stdout pipe")
	}

	if err := cmd.Start(); err != nil {
		return nil, errors.Wrap(err, "unable to start transport")
	}

	return &Conn{cmd: cmd, stderr: &stderr, Stdin: stdin, Stdout: stdout}, nil
}

// Wait waits for the transport child to exit and reports its exit code, per
// spec.md §4.6's "waits for the child." A non-zero exit is annotated with
// the child's captured stderr, and a POSIX "command not found" shell error
// is called out specifically since it usually means --ubts-path or
// --command is wrong rather than a failure on the far side.
func (c *Conn) Wait() (int, error) {
	err := c.cmd.Wait()
	if err == nil {
		return 0, nil
	}

	if _, ok := err.(*exec.ExitError); !ok {
		return -1, errors.Wrap(err, "transport did not exit cleanly")
	}

	code, codeErr := exitCodeForProcessState(c.cmd.ProcessState)
	if codeErr != nil {
		return -1, errors.Wrap(codeErr, "unable to extract transport exit code")
	}

	message := strings.TrimSpace(c.stderr.String())
	if outputIsPOSIXCommandNotFound(message) {
		return code, errors.Errorf("transport command not found: %s", message)
	}
	if message != "" {
		return code, errors.Errorf("transport exited with code %d: %s", code, message)
	}
	return code, nil
}
