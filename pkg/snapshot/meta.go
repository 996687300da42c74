package snapshot

import (
	"errors"
	"fmt"
	"os"
	"path"
	"syscall"
	"time"

	pkgerrors "github.com/pkg/errors"
)

// sidecarPath computes the meta sidecar's relative path for an entry at
// relative path p: dirname(p) + "/.meta/" + basename(p) + ".meta", per
// spec.md §4.4's meta sidecar write rule.
func sidecarPath(relative string) string {
	dir := path.Dir(relative)
	base := path.Base(relative)
	if dir == "/" {
		return "/.meta/" + base + ".meta"
	}
	return dir + "/.meta/" + base + ".meta"
}

// writeMetaSidecar materializes the meta sidecar for an entry at relative
// path. If hash is empty and a prior snapshot's sidecar exists with an mtime
// at least as new as freshness (the ctime value received on the wire), the
// prior sidecar is hard-linked rather than rewritten, sharing the same
// content-addressed invariant as file bodies; a non-empty hash (content-hash
// mode) always forces a fresh write so the recorded hash reflects this
// session's comparison, and is appended as a fourth line. ENAMETOOLONG on
// sidecar creation is treated as non-fatal success: the entry is kept
// without a sidecar, per spec.md §4.4.
func (e *Engine) writeMetaSidecar(relative string, mode uint32, uid, gid int, freshness time.Time, hash string) error {
	metaRel := sidecarPath(relative)
	destMeta := e.destPath(metaRel)

	if hash == "" && e.prevDir != "" {
		prevMeta := e.prevPath(metaRel)
		if info, err := os.Lstat(prevMeta); err == nil {
			if !info.ModTime().Before(freshness) {
				if err := os.Link(prevMeta, destMeta); err == nil {
					return nil
				}
				// Fall through to a fresh write if the link failed (e.g.
				// cross-device prior snapshot root).
			}
		}
	}

	contents := fmt.Sprintf("%03o\n%d\n%d", mode, uid, gid)
	if hash != "" {
		contents += "\n" + hash
	}
	if err := os.WriteFile(destMeta, []byte(contents), 0644); err != nil {
		if errors.Is(err, syscall.ENAMETOOLONG) {
			return nil
		}
		return pkgerrors.Wrapf(err, "unable to write meta sidecar %s", destMeta)
	}
	return nil
}
