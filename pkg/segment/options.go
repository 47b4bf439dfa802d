package segment

// Options control how Init opens the backing file.
type Options struct {
	// Recover scans existing content instead of starting empty.
	Recover bool
	// Preallocate reserves the full capacity on disk at open time.
	Preallocate bool
	// RecoveryStartPos is a record boundary known to be valid; the scan starts there.
	RecoveryStartPos int64
}
