package disk

import "github.com/downfa11-org/segmentlog/util"

// RemoveBefore deletes every segment whose sequence id is below seq, stopping at
// the active segment. It returns the number of segments removed.
func (dm *DiskManager) RemoveBefore(seq uint64) (int, error) {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	removed := 0
	for len(dm.segments) > 1 {
		oldest := dm.segments[0].SequenceID()
		if oldest >= seq {
			break
		}
		if err := dm.removeLocked(oldest); err != nil {
			return removed, err
		}
		removed++
	}
	if removed > 0 {
		util.Info("Retention: removed %d segments below %d", removed, seq)
	}
	return removed, nil
}
