// Package session implements the session driver (C6): it orchestrates one
// end-to-end client or server session on top of the lower-level packages —
// transport dialing, the wire protocol, the walker, and the snapshot engine —
// per spec.md §4.6.
package session

import (
	"fmt"
	"os"
	"strconv"
	"time"

	humanize "github.com/dustin/go-humanize"
	"github.com/pkg/errors"

	"github.com/SumiTomohiko/ubackup/pkg/logging"
	"github.com/SumiTomohiko/ubackup/pkg/transport"
	"github.com/SumiTomohiko/ubackup/pkg/ubpath"
	"github.com/SumiTomohiko/ubackup/pkg/walk"
	"github.com/SumiTomohiko/ubackup/pkg/wire"
)

// ClientOptions configures a client-side session, mirroring cmd/ubtc's flag
// surface (spec.md §6).
type ClientOptions struct {
	// Root is the walker's root directory; ancestor emission stops here.
	Root string
	// Command is the transport command template; defaults to
	// transport.DefaultTemplate (or transport.LocalTemplate when Local is
	// set) when empty.
	Command string
	// Hostname substitutes {hostname} in the transport template.
	Hostname string
	// UbtsPath substitutes {ubts_path} in the transport template.
	UbtsPath string
	// Local selects transport.LocalTemplate in place of the default ssh
	// template when Command is empty.
	Local bool
	// PrintStatistics enables the end-of-session human-readable summary
	// (§9 supplemented feature 3).
	PrintStatistics bool
	// DisableSkippedSocketWarning is forwarded to the walker (§9
	// supplemented feature 4).
	DisableSkippedSocketWarning bool
	// Sources are the SRC_DIR positional arguments.
	Sources []string
	// DestDir is the DEST_DIR positional argument, substituted into the
	// transport template as {dest_dir}.
	DestDir string
}

// RunClient drives one complete client session: it starts the transport,
// walks every source tree, optionally queries and prints statistics,
// triggers retention, and performs the shutdown handshake, per spec.md
// §4.3 steps 3-5 and §4.6.
func RunClient(opts ClientOptions, logger *logging.Logger) error {
	root, err := ubpath.Normalize(opts.Root)
	if err != nil {
		return errors.Wrap(err, "invalid root")
	}

	template := opts.Command
	if template == "" {
		template = transport.DefaultTemplate
		if opts.Local {
			template = transport.LocalTemplate
		}
	}

	child, err := transport.Start(template, transport.Substitutions{
		Hostname: opts.Hostname,
		UbtsPath: opts.UbtsPath,
		DestDir:  opts.DestDir,
	})
	if err != nil {
		return errors.Wrap(err, "fatal: unable to start transport")
	}

	conn := wire.NewConn(child.Stdin, child.Stdout)
	stats := walk.NewStats()
	walkLogger := logger.Sublogger("walk")
	w := walk.New(root, conn, walkLogger, stats, walk.Options{
		DisableSkippedSocketWarning: opts.DisableSkippedSocketWarning,
	})

	for _, src := range opts.Sources {
		absSrc, err := ubpath.Normalize(src)
		if err != nil {
			return errors.Wrapf(err, "invalid source %s", src)
		}
		if err := w.BackupTree(absSrc); err != nil {
			return errors.Wrapf(err, "fatal: error walking %s", absSrc)
		}
	}

	summary, err := queryStatistics(conn, opts.PrintStatistics)
	if err != nil {
		return err
	}

	if err := conn.Send(wire.EncodeSimple(wire.VerbRemoveOld)); err != nil {
		return errors.Wrap(err, "fatal: unable to send REMOVE_OLD")
	}
	if _, err := conn.Recv(); err != nil {
		return errors.Wrap(err, "fatal: unable to read REMOVE_OLD response")
	}

	if err := conn.Send(wire.EncodeSimple(wire.VerbThankYou)); err != nil {
		return errors.Wrap(err, "fatal: unable to send THANK_YOU")
	}
	child.Stdin.Close()

	code, err := child.Wait()
	if err != nil {
		return errors.Wrap(err, "fatal: transport did not exit cleanly")
	}
	if code != 0 {
		return errors.Errorf("server exited with status %d", code)
	}

	if opts.PrintStatistics {
		printSummary(stats, summary)
	}
	return nil
}

// statisticsSummary holds the optional NAME/DISK_TOTAL/DISK_USAGE replies,
// per §9 supplemented feature 3.
type statisticsSummary struct {
	destDir   string
	diskTotal string
	diskUsage string
}

func queryStatistics(conn *wire.Conn, enabled bool) (statisticsSummary, error) {
	if !enabled {
		return statisticsSummary{}, nil
	}

	var summary statisticsSummary

	if err := conn.Send(wire.EncodeSimple(wire.VerbName)); err != nil {
		return summary, errors.Wrap(err, "fatal: unable to send NAME")
	}
	resp, err := conn.Recv()
	if err != nil {
		return summary, errors.Wrap(err, "fatal: unable to read NAME response")
	}
	summary.destDir = resp.Payload

	if err := conn.Send(wire.EncodeSimple(wire.VerbDiskTotal)); err != nil {
		return summary, errors.Wrap(err, "fatal: unable to send DISK_TOTAL")
	}
	resp, err = conn.Recv()
	if err != nil {
		return summary, errors.Wrap(err, "fatal: unable to read DISK_TOTAL response")
	}
	summary.diskTotal = resp.Payload

	if err := conn.Send(wire.EncodeSimple(wire.VerbDiskUsage)); err != nil {
		return summary, errors.Wrap(err, "fatal: unable to send DISK_USAGE")
	}
	resp, err = conn.Recv()
	if err != nil {
		return summary, errors.Wrap(err, "fatal: unable to read DISK_USAGE response")
	}
	summary.diskUsage = resp.Payload

	return summary, nil
}

// printSummary renders the --print-statistics report named in §9
// supplemented feature 3, using go-humanize for byte counts; elapsed time is
// a time.Duration rounded to the millisecond.
func printSummary(stats *walk.Stats, summary statisticsSummary) {
	fmt.Fprintf(os.Stdout, "files seen:      %d\n", stats.FilesSeen)
	fmt.Fprintf(os.Stdout, "files changed:   %d\n", stats.FilesChanged)
	fmt.Fprintf(os.Stdout, "files skipped:   %d\n", stats.Skipped)
	fmt.Fprintf(os.Stdout, "directories:     %d\n", stats.Directories)
	fmt.Fprintf(os.Stdout, "symlinks:        %d\n", stats.Symlinks)
	fmt.Fprintf(os.Stdout, "bytes sent:      %s\n", humanize.Bytes(uint64(stats.BytesSent)))
	fmt.Fprintf(os.Stdout, "elapsed:         %s\n", time.Since(stats.StartTime).Round(time.Millisecond))
	if summary.destDir != "" {
		fmt.Fprintf(os.Stdout, "destination:     %s\n", summary.destDir)
	}
	if summary.diskUsage != "" && summary.diskTotal != "" {
		fmt.Fprintf(os.Stdout, "disk usage:      %s / %s\n", humanizeByteString(summary.diskUsage), humanizeByteString(summary.diskTotal))
	}
}

// humanizeByteString renders a decimal byte count received as a wire
// payload (DISK_TOTAL/DISK_USAGE replies are plain decimal strings, per
// spec.md §4.2) in human-readable form; an unparseable payload is echoed
// verbatim rather than hidden.
func humanizeByteString(s string) string {
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return s
	}
	return humanize.Bytes(n)
}
