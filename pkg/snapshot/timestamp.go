package snapshot

import (
	"fmt"
	"strings"
	"time"
)

// snapshotNameLayout is the ISO-8601 seconds-precision layout a snapshot name
// extends with a ",mmm" millisecond suffix, per spec.md §3.
const snapshotNameLayout = "2006-01-02T15:04:05"

// FormatSnapshotName renders the local-time timestamp used to name a
// snapshot directory: "YYYY-MM-DDTHH:MM:SS,mmm".
func FormatSnapshotName(t time.Time) string {
	t = t.Local()
	return fmt.Sprintf("%s,%03d", t.Format(snapshotNameLayout), t.Nanosecond()/1_000_000)
}

// stagingName wraps a snapshot name in parentheses to mark it as staged
// (in-progress), per spec.md §3.
func stagingName(name string) string {
	return "(" + name + ")"
}

// comparisonKey strips a name's surrounding parentheses, if present, so that
// a staged and committed snapshot with the same timestamp compare equal, per
// invariant 1 in spec.md §3.
func comparisonKey(name string) string {
	if strings.HasPrefix(name, "(") && strings.HasSuffix(name, ")") {
		return name[1 : len(name)-1]
	}
	return name
}

// isSnapshotName reports whether name looks like a (possibly staged)
// snapshot directory name: one beginning with a decimal digit or with '(',
// per spec.md §4.5's retention scan.
func isSnapshotName(name string) bool {
	if name == "" {
		return false
	}
	c := name[0]
	return c == '(' || (c >= '0' && c <= '9')
}
