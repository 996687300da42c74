package snapshot

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/SumiTomohiko/ubackup/pkg/logging"
	"github.com/SumiTomohiko/ubackup/pkg/wire"
)

func newTestEngine(t *testing.T, root string, now time.Time, opts ...Option) *Engine {
	t.Helper()
	allOpts := append([]Option{fixedClock(now)}, opts...)
	e, err := NewEngine(root, logging.New(nil), allOpts...)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return e
}

// fakeBody implements bodySource over an in-memory payload, for testing
// HandleBodyFrom without a real *wire.Conn.
type fakeBody struct {
	data []byte
}

func (f *fakeBody) RecvBody(dst io.Writer, size int64) error {
	_, err := io.CopyN(dst, strings.NewReader(string(f.data)), size)
	return err
}

func TestHandleDirCreatesDirectoryAndSidecar(t *testing.T) {
	root := t.TempDir()
	now := time.Date(2024, 3, 5, 10, 30, 0, 0, time.Local)
	e := newTestEngine(t, root, now)

	resp := e.HandleDir(wire.Record{Verb: wire.VerbDir, Path: "/a", Mode: 0755, UID: 1, GID: 2, CTime: now})
	if resp.Status != wire.StatusOK {
		t.Fatalf("status = %v, want OK", resp.Status)
	}
	if _, err := os.Stat(e.destPath("/a")); err != nil {
		t.Fatalf("expected directory: %v", err)
	}
	if _, err := os.Stat(e.destPath("/.meta/a.meta")); err != nil {
		t.Fatalf("expected sidecar: %v", err)
	}
}

func TestHandleFileChangedWhenNoPrevious(t *testing.T) {
	root := t.TempDir()
	now := time.Date(2024, 3, 5, 10, 30, 0, 0, time.Local)
	e := newTestEngine(t, root, now)

	resp := e.HandleFile(wire.Record{Verb: wire.VerbFile, Path: "/f", Mode: 0644, MTime: now, CTime: now})
	if resp.Status != wire.StatusChanged {
		t.Fatalf("status = %v, want CHANGED", resp.Status)
	}
	if e.currentFile != e.destPath("/f") {
		t.Fatalf("currentFile = %q, want %q", e.currentFile, e.destPath("/f"))
	}
}

func TestHandleFileUnchangedLinksPrevious(t *testing.T) {
	root := t.TempDir()
	first := time.Date(2024, 3, 5, 10, 30, 0, 0, time.Local)

	e1 := newTestEngine(t, root, first)
	if resp := e1.HandleFile(wire.Record{Verb: wire.VerbFile, Path: "/f", MTime: first, CTime: first}); resp.Status != wire.StatusChanged {
		t.Fatalf("first session: status = %v, want CHANGED", resp.Status)
	}
	if resp := e1.HandleBodyFrom(&fakeBody{data: []byte("hello")}, 5); resp.Status != wire.StatusOK {
		t.Fatalf("HandleBodyFrom: status = %v", resp.Status)
	}
	if err := e1.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	second := first.Add(time.Hour)
	e2 := newTestEngine(t, root, second)
	resp := e2.HandleFile(wire.Record{Verb: wire.VerbFile, Path: "/f", MTime: first, CTime: first})
	if resp.Status != wire.StatusUnchanged {
		t.Fatalf("second session: status = %v, want UNCHANGED", resp.Status)
	}

	prevInfo, err := os.Stat(filepath.Join(root, "2024-03-05T10:30:00,000", "f"))
	if err != nil {
		t.Fatalf("stat previous body: %v", err)
	}
	newInfo, err := os.Stat(e2.destPath("/f"))
	if err != nil {
		t.Fatalf("stat new body: %v", err)
	}
	if !os.SameFile(prevInfo, newInfo) {
		t.Fatalf("expected unchanged file to be hard-linked to the previous snapshot")
	}
}

func TestHandleFileChangedWhenNewerMtime(t *testing.T) {
	root := t.TempDir()
	first := time.Date(2024, 3, 5, 10, 30, 0, 0, time.Local)

	e1 := newTestEngine(t, root, first)
	e1.HandleFile(wire.Record{Verb: wire.VerbFile, Path: "/f", MTime: first, CTime: first})
	e1.HandleBodyFrom(&fakeBody{data: []byte("hello")}, 5)
	if err := e1.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	second := first.Add(time.Hour)
	// The prior snapshot's copy carries the mtime of when its body was
	// written, not the FILE record's mtime, so "newer" is measured from it.
	prevInfo, err := os.Stat(filepath.Join(root, "2024-03-05T10:30:00,000", "f"))
	if err != nil {
		t.Fatalf("stat previous body: %v", err)
	}
	newerMtime := prevInfo.ModTime().Add(time.Minute)
	e2 := newTestEngine(t, root, second)
	resp := e2.HandleFile(wire.Record{Verb: wire.VerbFile, Path: "/f", MTime: newerMtime, CTime: newerMtime})
	if resp.Status != wire.StatusChanged {
		t.Fatalf("status = %v, want CHANGED for a newer mtime", resp.Status)
	}
}

func TestHandleFileContentHashLinksIdenticalBodyDespiteOlderMtime(t *testing.T) {
	root := t.TempDir()
	first := time.Date(2024, 3, 5, 10, 30, 0, 0, time.Local)

	e1 := newTestEngine(t, root, first, WithContentHash(true))
	if resp := e1.HandleFile(wire.Record{Verb: wire.VerbFile, Path: "/f", MTime: first, CTime: first}); resp.Status != wire.StatusChanged {
		t.Fatalf("first session: status = %v, want CHANGED", resp.Status)
	}
	if resp := e1.HandleBodyFrom(&fakeBody{data: []byte("hello")}, 5); resp.Status != wire.StatusOK {
		t.Fatalf("HandleBodyFrom: status = %v", resp.Status)
	}
	if err := e1.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	// A staler mtime than the prior snapshot normally still means
	// "unchanged" without even looking at content, but content-hash mode
	// always requests the body; here it's the same bytes, so the result
	// should still be linked to the prior copy.
	second := first.Add(time.Hour)
	staleMtime := first.Add(-time.Minute)
	e2 := newTestEngine(t, root, second, WithContentHash(true))
	resp := e2.HandleFile(wire.Record{Verb: wire.VerbFile, Path: "/f", MTime: staleMtime, CTime: staleMtime})
	if resp.Status != wire.StatusChanged {
		t.Fatalf("content-hash mode: status = %v, want CHANGED (the decision is deferred to the BODY)", resp.Status)
	}
	if resp := e2.HandleBodyFrom(&fakeBody{data: []byte("hello")}, 5); resp.Status != wire.StatusOK {
		t.Fatalf("HandleBodyFrom: status = %v", resp.Status)
	}

	prevInfo, err := os.Stat(filepath.Join(root, "2024-03-05T10:30:00,000", "f"))
	if err != nil {
		t.Fatalf("stat previous body: %v", err)
	}
	newInfo, err := os.Stat(e2.destPath("/f"))
	if err != nil {
		t.Fatalf("stat new body: %v", err)
	}
	if !os.SameFile(prevInfo, newInfo) {
		t.Fatalf("expected identical content to be hard-linked to the previous snapshot")
	}

	sidecar, err := os.ReadFile(e2.destPath("/.meta/f.meta"))
	if err != nil {
		t.Fatalf("read sidecar: %v", err)
	}
	lines := strings.Split(string(sidecar), "\n")
	if len(lines) != 4 || lines[3] == "" {
		t.Fatalf("sidecar = %q, want a 4th line recording the content hash", sidecar)
	}
}

func TestHandleFileContentHashKeepsDivergedBody(t *testing.T) {
	root := t.TempDir()
	first := time.Date(2024, 3, 5, 10, 30, 0, 0, time.Local)

	e1 := newTestEngine(t, root, first, WithContentHash(true))
	e1.HandleFile(wire.Record{Verb: wire.VerbFile, Path: "/f", MTime: first, CTime: first})
	e1.HandleBodyFrom(&fakeBody{data: []byte("hello")}, 5)
	if err := e1.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	second := first.Add(time.Hour)
	e2 := newTestEngine(t, root, second, WithContentHash(true))
	e2.HandleFile(wire.Record{Verb: wire.VerbFile, Path: "/f", MTime: first, CTime: first})
	if resp := e2.HandleBodyFrom(&fakeBody{data: []byte("world")}, 5); resp.Status != wire.StatusOK {
		t.Fatalf("HandleBodyFrom: status = %v", resp.Status)
	}

	prevInfo, err := os.Stat(filepath.Join(root, "2024-03-05T10:30:00,000", "f"))
	if err != nil {
		t.Fatalf("stat previous body: %v", err)
	}
	newInfo, err := os.Stat(e2.destPath("/f"))
	if err != nil {
		t.Fatalf("stat new body: %v", err)
	}
	if os.SameFile(prevInfo, newInfo) {
		t.Fatalf("expected diverged content to be kept as its own file, not linked")
	}
	content, err := os.ReadFile(e2.destPath("/f"))
	if err != nil {
		t.Fatalf("read new body: %v", err)
	}
	if string(content) != "world" {
		t.Fatalf("content = %q, want %q", content, "world")
	}
}

func TestHandleSymlinkCreatesLink(t *testing.T) {
	root := t.TempDir()
	now := time.Date(2024, 3, 5, 10, 30, 0, 0, time.Local)
	e := newTestEngine(t, root, now)

	resp := e.HandleSymlink(wire.Record{Verb: wire.VerbSymlink, Path: "/link", CTime: now, Target: "/etc/hosts"})
	if resp.Status != wire.StatusOK {
		t.Fatalf("status = %v, want OK", resp.Status)
	}
	target, err := os.Readlink(e.destPath("/link"))
	if err != nil {
		t.Fatalf("Readlink: %v", err)
	}
	if target != "/etc/hosts" {
		t.Fatalf("target = %q, want /etc/hosts", target)
	}
}

func TestHandleNameReportsDestDir(t *testing.T) {
	root := t.TempDir()
	now := time.Date(2024, 3, 5, 10, 30, 0, 0, time.Local)
	e := newTestEngine(t, root, now)

	resp := e.HandleName()
	if resp.Status != wire.StatusOK || resp.Payload != e.destDir {
		t.Fatalf("HandleName = %+v, want OK %s", resp, e.destDir)
	}
}

func TestHandleDiskTotalAndUsageReportPositiveByteCounts(t *testing.T) {
	root := t.TempDir()
	now := time.Date(2024, 3, 5, 10, 30, 0, 0, time.Local)
	e := newTestEngine(t, root, now)

	total := e.HandleDiskTotal()
	if total.Status != wire.StatusOK || total.Payload == "" || total.Payload == "0" {
		t.Fatalf("HandleDiskTotal = %+v, want a positive OK payload", total)
	}
	usage := e.HandleDiskUsage()
	if usage.Status != wire.StatusOK || usage.Payload == "" {
		t.Fatalf("HandleDiskUsage = %+v, want an OK payload", usage)
	}
}

func TestHandleRemoveOldInvokesRetention(t *testing.T) {
	root := t.TempDir()
	now := time.Date(2024, 3, 5, 10, 30, 0, 0, time.Local)
	e := newTestEngine(t, root, now)

	resp := e.HandleRemoveOld()
	if resp.Status != wire.StatusOK {
		t.Fatalf("status = %v, want OK", resp.Status)
	}
}
