// Package wire implements the protocol codec (C2): rendering and parsing the
// line-framed wire records described in spec.md §4.2, including quoted-
// string escaping and the trailing binary BODY frame. Encode/Decode are pure
// functions over byte slices; the BODY payload itself is a separately
// streamed consumption, never a field of a Record, per §9's design note.
package wire

import "time"

// Verb identifies the kind of a Record.
type Verb string

// The request verbs defined by spec.md §4.2.
const (
	VerbDir       Verb = "DIR"
	VerbFile      Verb = "FILE"
	VerbSymlink   Verb = "SYMLINK"
	VerbBody      Verb = "BODY"
	VerbName      Verb = "NAME"
	VerbDiskTotal Verb = "DISK_TOTAL"
	VerbDiskUsage Verb = "DISK_USAGE"
	VerbRemoveOld Verb = "REMOVE_OLD"
	VerbThankYou  Verb = "THANK_YOU"
)

// timeLayout, used for both mtime and ctime fields, is ISO-8601 seconds
// precision without timezone, in the client's local time, per spec.md §4.2.
const timeLayout = "2006-01-02T15:04:05"

// Record is a single wire-level request, a sum type with one populated field
// set per Verb as documented on each field.
type Record struct {
	Verb Verb

	// Path is populated for DIR, FILE, and SYMLINK.
	Path string
	// Mode holds the low 9 permission bits, populated for DIR, FILE, and
	// SYMLINK.
	Mode uint32
	// UID is populated for DIR, FILE, and SYMLINK.
	UID int
	// GID is populated for DIR, FILE, and SYMLINK.
	GID int
	// CTime is populated for DIR, FILE, and SYMLINK.
	CTime time.Time
	// MTime is populated for FILE only.
	MTime time.Time
	// Target is the symlink target, populated for SYMLINK only.
	Target string
	// Size is the BODY payload length in bytes, populated for BODY only.
	Size int64
}

// FormatTime renders a time.Time using the wire's ISO-8601-seconds layout in
// local time.
func FormatTime(t time.Time) string {
	return t.Local().Format(timeLayout)
}

// ParseTime parses the wire's ISO-8601-seconds layout as local time.
func ParseTime(s string) (time.Time, error) {
	return time.ParseInLocation(timeLayout, s, time.Local)
}
