package wire

import (
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

var (
	errExpectedQuote      = errors.New("expected opening quote")
	errUnterminatedString = errors.New("unterminated quoted string")
	errUnknownVerb        = errors.New("unrecognized verb")
	errMalformedRecord    = errors.New("malformed record")
)

// EncodeDir renders a DIR request line (without the trailing CRLF; callers
// append framing when writing to the stream).
func EncodeDir(path string, mode uint32, uid, gid int, ctime time.Time) string {
	return join(string(VerbDir), Quote(path), octal(mode), decimal(uid), decimal(gid), FormatTime(ctime))
}

// EncodeFile renders a FILE request line.
func EncodeFile(path string, mode uint32, uid, gid int, mtime, ctime time.Time) string {
	return join(string(VerbFile), Quote(path), octal(mode), decimal(uid), decimal(gid), FormatTime(mtime), FormatTime(ctime))
}

// EncodeSymlink renders a SYMLINK request line.
func EncodeSymlink(path string, mode uint32, uid, gid int, ctime time.Time, target string) string {
	return join(string(VerbSymlink), Quote(path), octal(mode), decimal(uid), decimal(gid), FormatTime(ctime), Quote(target))
}

// EncodeBody renders a BODY request line; the caller must follow it with
// exactly size raw bytes, not part of this encoding.
func EncodeBody(size int64) string {
	return join(string(VerbBody), strconv.FormatInt(size, 10))
}

// EncodeSimple renders a no-argument request line (NAME, DISK_TOTAL,
// DISK_USAGE, REMOVE_OLD, THANK_YOU).
func EncodeSimple(verb Verb) string {
	return string(verb)
}

func join(fields ...string) string {
	return strings.Join(fields, " ")
}

func octal(v uint32) string {
	return strconv.FormatUint(uint64(v), 8)
}

func decimal(v int) string {
	return strconv.Itoa(v)
}

// Decode parses a single request line (with any trailing "\r" already
// tolerated/stripped by the caller, see TrimCRLF) into a Record plus the
// byte offset of the first unconsumed byte (always len(line) for this
// protocol, since every verb consumes its entire line; returned for
// conformance with the "pure function to a residual offset" design in §9).
func Decode(line string) (Record, int, error) {
	verbToken, rest := splitToken(line)
	switch Verb(verbToken) {
	case VerbDir:
		rec, n, err := decodeDir(rest)
		return rec, len(verbToken) + n, err
	case VerbFile:
		rec, n, err := decodeFile(rest)
		return rec, len(verbToken) + n, err
	case VerbSymlink:
		rec, n, err := decodeSymlink(rest)
		return rec, len(verbToken) + n, err
	case VerbBody:
		rec, n, err := decodeBody(rest)
		return rec, len(verbToken) + n, err
	case VerbName, VerbDiskTotal, VerbDiskUsage, VerbRemoveOld, VerbThankYou:
		return Record{Verb: Verb(verbToken)}, len(verbToken), nil
	default:
		return Record{}, 0, errUnknownVerb
	}
}

// splitToken splits s on the first run of whitespace, returning the leading
// token and the remainder (with leading whitespace on the remainder already
// trimmed away from the token but preserved before the remainder's content,
// consistent with skip_whitespace in the original parser).
func splitToken(s string) (string, string) {
	trimmed := strings.TrimLeft(s, " \t")
	idx := strings.IndexAny(trimmed, " \t")
	if idx == -1 {
		return trimmed, ""
	}
	return trimmed[:idx], trimmed[idx:]
}

func skipSpace(s string) string {
	return strings.TrimLeft(s, " \t")
}

func parseOctalField(s string) (uint32, string, error) {
	s = skipSpace(s)
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '7' {
		i++
	}
	if i == 0 {
		return 0, s, errMalformedRecord
	}
	v, err := strconv.ParseUint(s[:i], 8, 32)
	if err != nil {
		return 0, s, errors.Wrap(err, "malformed octal field")
	}
	return uint32(v), s[i:], nil
}

func parseDecimalField(s string) (int64, string, error) {
	s = skipSpace(s)
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i == 0 {
		return 0, s, errMalformedRecord
	}
	v, err := strconv.ParseInt(s[:i], 10, 64)
	if err != nil {
		return 0, s, errors.Wrap(err, "malformed decimal field")
	}
	return v, s[i:], nil
}

func parseStringField(s string) (string, string, error) {
	s = skipSpace(s)
	value, n, err := unquote(s)
	if err != nil {
		return "", s, err
	}
	return value, s[n:], nil
}

func parseTimeField(s string) (time.Time, string, error) {
	s = skipSpace(s)
	i := 0
	for i < len(s) && (s[i] != ' ' && s[i] != '\t') {
		i++
	}
	t, err := ParseTime(s[:i])
	if err != nil {
		return time.Time{}, s, errors.Wrap(err, "malformed timestamp field")
	}
	return t, s[i:], nil
}

func decodeDir(s string) (Record, int, error) {
	start := len(s)
	path, s, err := parseStringField(s)
	if err != nil {
		return Record{}, 0, err
	}
	mode, s, err := parseOctalField(s)
	if err != nil {
		return Record{}, 0, err
	}
	uid, s, err := parseDecimalField(s)
	if err != nil {
		return Record{}, 0, err
	}
	gid, s, err := parseDecimalField(s)
	if err != nil {
		return Record{}, 0, err
	}
	ctime, s, err := parseTimeField(s)
	if err != nil {
		return Record{}, 0, err
	}
	return Record{
		Verb: VerbDir, Path: path, Mode: mode,
		UID: int(uid), GID: int(gid), CTime: ctime,
	}, start - len(s), nil
}

func decodeFile(s string) (Record, int, error) {
	start := len(s)
	path, s, err := parseStringField(s)
	if err != nil {
		return Record{}, 0, err
	}
	mode, s, err := parseOctalField(s)
	if err != nil {
		return Record{}, 0, err
	}
	uid, s, err := parseDecimalField(s)
	if err != nil {
		return Record{}, 0, err
	}
	gid, s, err := parseDecimalField(s)
	if err != nil {
		return Record{}, 0, err
	}
	mtime, s, err := parseTimeField(s)
	if err != nil {
		return Record{}, 0, err
	}
	ctime, s, err := parseTimeField(s)
	if err != nil {
		return Record{}, 0, err
	}
	return Record{
		Verb: VerbFile, Path: path, Mode: mode,
		UID: int(uid), GID: int(gid), MTime: mtime, CTime: ctime,
	}, start - len(s), nil
}

func decodeSymlink(s string) (Record, int, error) {
	start := len(s)
	path, s, err := parseStringField(s)
	if err != nil {
		return Record{}, 0, err
	}
	mode, s, err := parseOctalField(s)
	if err != nil {
		return Record{}, 0, err
	}
	uid, s, err := parseDecimalField(s)
	if err != nil {
		return Record{}, 0, err
	}
	gid, s, err := parseDecimalField(s)
	if err != nil {
		return Record{}, 0, err
	}
	ctime, s, err := parseTimeField(s)
	if err != nil {
		return Record{}, 0, err
	}
	target, s, err := parseStringField(s)
	if err != nil {
		return Record{}, 0, err
	}
	return Record{
		Verb: VerbSymlink, Path: path, Mode: mode,
		UID: int(uid), GID: int(gid), CTime: ctime, Target: target,
	}, start - len(s), nil
}

func decodeBody(s string) (Record, int, error) {
	start := len(s)
	size, s, err := parseDecimalField(s)
	if err != nil {
		return Record{}, 0, err
	}
	return Record{Verb: VerbBody, Size: size}, start - len(s), nil
}

// TrimCRLF strips a trailing "\r\n" or "\n" (tolerating a bare "\r" too)
// from a line read off the wire, per spec.md §4.2: "parsers must tolerate
// and strip a trailing \r."
func TrimCRLF(line string) string {
	line = strings.TrimSuffix(line, "\n")
	line = strings.TrimSuffix(line, "\r")
	return line
}
