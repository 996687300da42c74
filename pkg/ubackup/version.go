// Package ubackup holds version and constant information shared across the
// client and server binaries.
package ubackup

import "fmt"

const (
	// VersionMajor is the current major version of ubackup.
	VersionMajor = 1
	// VersionMinor is the current minor version of ubackup.
	VersionMinor = 0
	// VersionPatch is the current patch version of ubackup.
	VersionPatch = 0
)

// Version is the human-readable version string.
var Version = fmt.Sprintf("%d.%d.%d", VersionMajor, VersionMinor, VersionPatch)

const (
	// MaxSnapshots is the maximum number of committed snapshots retained under
	// a backup root after REMOVE_OLD runs.
	MaxSnapshots = 93
	// MetaDirectoryName is the name of the sidecar metadata directory that
	// accompanies every directory in a snapshot.
	MetaDirectoryName = ".meta"
	// MaxPathLength is the buffer limit path normalization refuses to exceed.
	MaxPathLength = 4096
)
