package session

import (
	"io"
	"os"

	"github.com/pkg/errors"

	"github.com/SumiTomohiko/ubackup/pkg/logging"
	"github.com/SumiTomohiko/ubackup/pkg/snapshot"
	"github.com/SumiTomohiko/ubackup/pkg/wire"
)

// ServerOptions configures a server-side session, mirroring cmd/ubts's flag
// surface (spec.md §6).
type ServerOptions struct {
	// BackupRoot is the BACKUP_DIR positional argument.
	BackupRoot string
	// ContentHash enables the opt-in content-hash comparison mode (§9
	// supplemented feature 5).
	ContentHash bool
}

// RunServer drives one complete server session over stdin/stdout: it builds
// the snapshot engine, dispatches every incoming record, and exits with
// status 0 or 1 depending on whether every record succeeded, per spec.md
// §4.4's commit rule and §4.6's "terminates when THANK_YOU is received (or
// when stdin closes)."
func RunServer(opts ServerOptions, logger *logging.Logger) (exitCode int, err error) {
	var engineOpts []snapshot.Option
	if opts.ContentHash {
		engineOpts = append(engineOpts, snapshot.WithContentHash(true))
	}

	engine, err := snapshot.NewEngine(opts.BackupRoot, logger, engineOpts...)
	if err != nil {
		return 1, errors.Wrap(err, "fatal: unable to start snapshot engine")
	}

	conn := wire.NewConn(os.Stdout, os.Stdin)
	thankedYou, err := snapshot.Serve(conn, engine)
	if err != nil && err != io.EOF {
		logger.Error(err)
	}

	if !thankedYou {
		// stdin closed without a THANK_YOU: still commit the staged
		// snapshot, per spec.md §4.6.
		if commitErr := engine.Commit(); commitErr != nil {
			logger.Error(commitErr)
			return 1, nil
		}
	}

	if engine.Failed() {
		return 1, nil
	}
	return 0, nil
}
