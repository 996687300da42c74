// Package walk implements the client-side filesystem walker (C3): it
// traverses a source subtree, stats each entry, and streams DIR/FILE/
// SYMLINK/BODY records to the server over a wire.Conn, per spec.md §4.3.
package walk

import (
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"github.com/SumiTomohiko/ubackup/pkg/logging"
	"github.com/SumiTomohiko/ubackup/pkg/ubpath"
	"github.com/SumiTomohiko/ubackup/pkg/wire"
)

// Options configures walker behavior (spec.md §6's client flags that affect
// the walk).
type Options struct {
	// DisableSkippedSocketWarning suppresses the warning log for skipped
	// UNIX domain sockets specifically (§9 supplemented feature 4); all
	// other skippable kinds still warn.
	DisableSkippedSocketWarning bool
}

// Walker drives the C3 traversal for one session. It holds the set of
// directories already emitted as ancestors so that repeated top-level
// arguments sharing a common ancestor chain don't redundantly re-emit DIR
// records for the same path, per spec.md §4.3's tie-break note.
type Walker struct {
	root    string
	conn    *wire.Conn
	logger  *logging.Logger
	stats   *Stats
	options Options
	emitted map[string]bool
}

// New creates a Walker rooted at the given already-normalized root path.
func New(root string, conn *wire.Conn, logger *logging.Logger, stats *Stats, options Options) *Walker {
	return &Walker{
		root:    root,
		conn:    conn,
		logger:  logger,
		stats:   stats,
		options: options,
		emitted: make(map[string]bool),
	}
}

// BackupTree is the C3 entry point: it emits the ancestor chain from the
// walker's root down to (but not including) absPath, then recursively walks
// absPath.
func (w *Walker) BackupTree(absPath string) error {
	if err := w.backupParents(absPath); err != nil {
		return err
	}
	return w.backupDir(absPath)
}

// backupParents emits a DIR record for each ancestor of path between the
// walker's root and path itself, topmost (root-adjacent) first, computed
// iteratively rather than via recursion on dirname to avoid unbounded stack
// depth on deep trees, per §9's design note.
func (w *Walker) backupParents(path string) error {
	relative, err := ubpath.RelativeTo(w.root, path)
	if err != nil {
		return err
	}

	components := strings.Split(strings.Trim(relative, "/"), "/")
	if len(components) <= 1 {
		return nil
	}
	components = components[:len(components)-1]

	ancestor := w.root
	for _, component := range components {
		if ancestor == "/" {
			ancestor = "/" + component
		} else {
			ancestor = ancestor + "/" + component
		}
		if w.emitted[ancestor] {
			continue
		}
		if err := w.sendDir(ancestor); err != nil {
			return err
		}
		w.emitted[ancestor] = true
	}
	return nil
}

// sendDir lstats path, emits a DIR record carrying its root-relative path,
// and reads the OK/NG reply.
func (w *Walker) sendDir(path string) error {
	info, err := os.Lstat(path)
	if err != nil {
		w.logSkip(path, err)
		return nil
	}
	stat, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return errors.Errorf("unable to read raw stat for %s", path)
	}
	relative, err := ubpath.RelativeTo(w.root, path)
	if err != nil {
		return err
	}

	line := wire.EncodeDir(relative, uint32(stat.Mode)&0777, int(stat.Uid), int(stat.Gid), ctimeOf(stat))
	if err := w.conn.Send(line); err != nil {
		return errors.Wrap(err, "fatal: unable to send DIR request")
	}
	if _, err := w.conn.Recv(); err != nil {
		return errors.Wrap(err, "fatal: unable to read DIR response")
	}
	w.stats.Directories++
	return nil
}

// backupDir lstats and emits the directory itself, then dispatches each
// readdir entry by type. Errors from lstat/opendir on an individual entry
// are non-fatal: logged and skipped, per §4.3's error taxonomy.
func (w *Walker) backupDir(path string) error {
	if !w.emitted[path] {
		if err := w.sendDir(path); err != nil {
			return err
		}
		w.emitted[path] = true
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		w.logSkip(path, err)
		return nil
	}

	for _, entry := range entries {
		name := entry.Name()
		if name == "." || name == ".." {
			continue
		}
		if name == ".meta" {
			w.logger.Warn(errors.Errorf("skipping reserved entry name %q", path+"/"+name))
			continue
		}
		if err := w.backupEntry(path, name); err != nil {
			return err
		}
	}
	return nil
}

// backupEntry dispatches a single directory entry by its on-disk kind.
func (w *Walker) backupEntry(parent, name string) error {
	fullPath := parent + "/" + name
	info, err := os.Lstat(fullPath)
	if err != nil {
		w.logSkip(fullPath, err)
		return nil
	}

	switch {
	case info.Mode().IsDir():
		return w.backupDir(fullPath)
	case info.Mode()&os.ModeSymlink != 0:
		return w.sendSymlink(fullPath, info)
	case info.Mode().IsRegular():
		return w.sendFile(fullPath, info)
	default:
		w.stats.Skipped++
		if w.shouldWarnSkip(info.Mode()) {
			w.logger.Warn(errors.Errorf("skipping non-regular entry %s (mode %s)", fullPath, info.Mode()))
		}
		return nil
	}
}

// shouldWarnSkip applies the --disable-skipped-socket-warning policy (§9
// supplemented feature 4): UNIX domain sockets are silenced specifically
// when the flag is set; every other skippable kind always warns.
func (w *Walker) shouldWarnSkip(mode os.FileMode) bool {
	if mode&os.ModeSocket != 0 && w.options.DisableSkippedSocketWarning {
		return false
	}
	return true
}

func (w *Walker) sendSymlink(path string, info os.FileInfo) error {
	target, err := os.Readlink(path)
	if err != nil {
		w.logSkip(path, err)
		return nil
	}
	stat, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return errors.Errorf("unable to read raw stat for %s", path)
	}
	relative, err := ubpath.RelativeTo(w.root, path)
	if err != nil {
		return err
	}

	line := wire.EncodeSymlink(relative, uint32(stat.Mode)&0777, int(stat.Uid), int(stat.Gid), ctimeOf(stat), target)
	if err := w.conn.Send(line); err != nil {
		return errors.Wrap(err, "fatal: unable to send SYMLINK request")
	}
	if _, err := w.conn.Recv(); err != nil {
		return errors.Wrap(err, "fatal: unable to read SYMLINK response")
	}
	w.stats.Symlinks++
	return nil
}

func (w *Walker) sendFile(path string, info os.FileInfo) error {
	file, err := os.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		w.logSkip(path, err)
		return nil
	}
	defer file.Close()

	if err := unix.Flock(int(file.Fd()), unix.LOCK_SH|unix.LOCK_NB); err != nil {
		w.logger.Warn(errors.Wrapf(err, "skipping locked file %s", path))
		w.stats.Skipped++
		return nil
	}
	defer unix.Flock(int(file.Fd()), unix.LOCK_UN)

	stat, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return errors.Errorf("unable to read raw stat for %s", path)
	}
	relative, err := ubpath.RelativeTo(w.root, path)
	if err != nil {
		return err
	}

	line := wire.EncodeFile(relative, uint32(stat.Mode)&0777, int(stat.Uid), int(stat.Gid), info.ModTime(), ctimeOf(stat))
	if err := w.conn.Send(line); err != nil {
		return errors.Wrap(err, "fatal: unable to send FILE request")
	}
	w.stats.FilesSeen++

	response, err := w.conn.Recv()
	if err != nil {
		return errors.Wrap(err, "fatal: unable to read FILE response")
	}
	switch response.Status {
	case wire.StatusChanged:
		size := info.Size()
		if err := w.conn.Send(wire.EncodeBody(size)); err != nil {
			return errors.Wrap(err, "fatal: unable to send BODY request")
		}
		if err := w.conn.SendBody(file, size); err != nil {
			return errors.Wrap(err, "fatal: unable to send file body")
		}
		if _, err := w.conn.Recv(); err != nil {
			return errors.Wrap(err, "fatal: unable to read BODY response")
		}
		w.stats.FilesChanged++
		w.stats.BytesSent += size
	case wire.StatusUnchanged:
		// Nothing further to send.
	default:
		return errors.Errorf("fatal: protocol violation: expected CHANGED/UNCHANGED, got %q", response.Status)
	}
	return nil
}

func (w *Walker) logSkip(path string, err error) {
	w.stats.Skipped++
	w.logger.Warn(errors.Wrapf(err, "skipping %s", path))
}

// ctimeOf extracts the ctime from a raw stat structure.
func ctimeOf(stat *syscall.Stat_t) time.Time {
	return time.Unix(stat.Ctim.Sec, stat.Ctim.Nsec)
}
