// Package retention implements C5: pruning a backup root down to
// ubackup.MaxSnapshots committed (or in-progress) snapshots, keeping the
// lexicographically greatest by backup name, per spec.md §4.5.
package retention

import (
	"os"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/SumiTomohiko/ubackup/pkg/ubackup"
)

// backupName strips a single pair of surrounding parentheses from name, so
// an in-progress snapshot "(T)" and a committed snapshot "T" compare
// identically, per spec.md §4.5.
func backupName(name string) string {
	if strings.HasPrefix(name, "(") && strings.HasSuffix(name, ")") {
		return name[1 : len(name)-1]
	}
	return name
}

// isCandidate reports whether name begins with a decimal digit or '(', the
// only two shapes retention considers.
func isCandidate(name string) bool {
	if name == "" {
		return false
	}
	c := name[0]
	return c == '(' || (c >= '0' && c <= '9')
}

// Prune scans root for snapshot directories, keeps the ubackup.MaxSnapshots
// lexicographically greatest by backup name, and recursively removes the
// rest. A failure removing one snapshot is logged by the caller and does not
// prevent attempting the rest; Prune returns the first error encountered, if
// any, after attempting every removal.
func Prune(root string) error {
	entries, err := os.ReadDir(root)
	if err != nil {
		return errors.Wrap(err, "unable to scan backup root")
	}

	var names []string
	for _, entry := range entries {
		if !entry.IsDir() || !isCandidate(entry.Name()) {
			continue
		}
		names = append(names, entry.Name())
	}

	sort.Slice(names, func(i, j int) bool {
		return backupName(names[i]) > backupName(names[j])
	})

	if len(names) <= ubackup.MaxSnapshots {
		return nil
	}

	var firstErr error
	for _, name := range names[ubackup.MaxSnapshots:] {
		if err := os.RemoveAll(root + "/" + name); err != nil && firstErr == nil {
			firstErr = errors.Wrapf(err, "unable to remove snapshot %s", name)
		}
	}
	return firstErr
}
