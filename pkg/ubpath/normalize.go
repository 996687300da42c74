// Package ubpath implements the path normalizer (C1): canonicalizing a
// caller-supplied path to an absolute, "."/".."-resolved, separator-
// normalized form, per spec.md §4.1.
package ubpath

import (
	"os"
	"strings"

	"github.com/pkg/errors"

	"github.com/SumiTomohiko/ubackup/pkg/ubackup"
)

// Normalize canonicalizes path to an absolute form: relative paths are
// prefixed with the process's current working directory, "." components are
// dropped, ".." components pop the preceding retained component (unless that
// would escape the root "/"), and runs of "/" collapse to one separator. The
// leading "/" is always preserved and a trailing "/" is stripped unless the
// result is exactly "/".
//
// Normalize fails if the result would exceed ubackup.MaxPathLength bytes:
// paths are not silently truncated.
func Normalize(path string) (string, error) {
	if !strings.HasPrefix(path, "/") {
		cwd, err := os.Getwd()
		if err != nil {
			return "", errors.Wrap(err, "unable to determine working directory")
		}
		path = cwd + "/" + path
	}

	components := make([]string, 0, strings.Count(path, "/"))
	for _, token := range strings.Split(path, "/") {
		switch token {
		case "", ".":
			// Collapses runs of "/" and drops "." components.
			continue
		case "..":
			if len(components) > 0 {
				components = components[:len(components)-1]
			}
		default:
			components = append(components, token)
		}
	}

	result := "/" + strings.Join(components, "/")

	if len(result) > ubackup.MaxPathLength {
		return "", errors.Errorf("normalized path exceeds %d bytes", ubackup.MaxPathLength)
	}

	return result, nil
}

// RelativeTo computes the root-relative path of an absolute path given an
// already-normalized root. If root is "/", the relative path equals the
// absolute path. Otherwise the root prefix is stripped; per §9's open
// question, a path that does not actually begin with root is rejected rather
// than silently corrupted by an unconditional prefix strip.
func RelativeTo(root, absolutePath string) (string, error) {
	if root == "/" {
		return absolutePath, nil
	}
	if !strings.HasPrefix(absolutePath, root) {
		return "", errors.Errorf("path %q is not under root %q", absolutePath, root)
	}
	remainder := absolutePath[len(root):]
	if remainder != "" && !strings.HasPrefix(remainder, "/") {
		// root is a prefix of a sibling path's name (e.g. root "/foo" against
		// "/foobar"), not an ancestor directory; reject rather than corrupt.
		return "", errors.Errorf("path %q is not under root %q", absolutePath, root)
	}
	return remainder, nil
}
