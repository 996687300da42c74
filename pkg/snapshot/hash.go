package snapshot

import (
	"os"
	"strings"
	"time"
)

// pendingHash carries a FILE record's metadata from HandleFile to the
// HandleBodyFrom call that follows it, when content-hash mode is enabled.
// The changed/unchanged decision can't be made until the body arrives and is
// hashed, so HandleFile always replies CHANGED and defers the decision.
type pendingHash struct {
	relative string
	mode     uint32
	uid, gid int
	ctime    time.Time
	// prevPath is the prior snapshot's copy of this file, or "" if none
	// exists.
	prevPath string
	// priorHash is the hash recorded in the prior snapshot's meta sidecar,
	// or "" if the prior sidecar has no hash line.
	priorHash string
}

// priorContentHash reads the fourth line a content-hash-mode snapshot
// appends to a meta sidecar. It returns "" if prevMetaPath doesn't exist or
// predates content-hash mode (a plain 3-line sidecar has no hash line).
func priorContentHash(prevMetaPath string) string {
	if prevMetaPath == "" {
		return ""
	}
	data, err := os.ReadFile(prevMetaPath)
	if err != nil {
		return ""
	}
	lines := strings.SplitN(string(data), "\n", 4)
	if len(lines) < 4 {
		return ""
	}
	return lines[3]
}
