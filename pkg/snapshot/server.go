package snapshot

import (
	"io"

	"github.com/SumiTomohiko/ubackup/pkg/wire"
)

// Serve runs the server-side dispatch loop (C4+C6): it reads request lines
// from conn, decodes each into a Record, dispatches to the matching Engine
// handler, and writes the reply. It returns when THANK_YOU is received or
// when the input stream ends (spec.md §4.6: stdin closing is an abnormal
// but recoverable end — the staged snapshot is still committed), and reports
// whether THANK_YOU was the cause.
func Serve(conn *wire.Conn, engine *Engine) (thankedYou bool, err error) {
	for {
		line, err := conn.RecvLine()
		if err != nil {
			if err == io.EOF {
				return false, nil
			}
			return false, err
		}

		rec, _, decodeErr := wire.Decode(line)
		if decodeErr != nil {
			engine.logger.Warn(decodeErr)
			if replyErr := conn.Reply(wire.Response{Status: wire.StatusNG}); replyErr != nil {
				return false, replyErr
			}
			continue
		}

		switch rec.Verb {
		case wire.VerbDir:
			if err := conn.Reply(engine.HandleDir(rec)); err != nil {
				return false, err
			}
		case wire.VerbFile:
			if err := conn.Reply(engine.HandleFile(rec)); err != nil {
				return false, err
			}
		case wire.VerbBody:
			if err := conn.Reply(engine.HandleBodyFrom(conn, rec.Size)); err != nil {
				return false, err
			}
		case wire.VerbSymlink:
			if err := conn.Reply(engine.HandleSymlink(rec)); err != nil {
				return false, err
			}
		case wire.VerbName:
			if err := conn.Reply(engine.HandleName()); err != nil {
				return false, err
			}
		case wire.VerbDiskTotal:
			if err := conn.Reply(engine.HandleDiskTotal()); err != nil {
				return false, err
			}
		case wire.VerbDiskUsage:
			if err := conn.Reply(engine.HandleDiskUsage()); err != nil {
				return false, err
			}
		case wire.VerbRemoveOld:
			if err := conn.Reply(engine.HandleRemoveOld()); err != nil {
				return false, err
			}
		case wire.VerbThankYou:
			return true, engine.Commit()
		default:
			if err := conn.Reply(wire.Response{Status: wire.StatusNG}); err != nil {
				return false, err
			}
		}
	}
}
