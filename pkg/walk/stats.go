package walk

import "time"

// Stats is the SessionStats entity from spec.md §3: per-session counters
// held only on the client.
type Stats struct {
	FilesSeen    int
	FilesChanged int
	Skipped      int
	Directories  int
	Symlinks     int
	BytesSent    int64
	StartTime    time.Time
}

// NewStats creates a Stats with StartTime set to now.
func NewStats() *Stats {
	return &Stats{StartTime: time.Now()}
}
