package segment

import (
	"fmt"
	"io"
	"os"

	"github.com/downfa11-org/segmentlog/pkg/metrics"
	"github.com/downfa11-org/segmentlog/pkg/record"
	"github.com/downfa11-org/segmentlog/util"
	"golang.org/x/exp/mmap"
)

// recoverFile scans f from opts.RecoveryStartPos and cuts everything after the
// last valid record. It returns the offset just past that record.
func (s *SegmentFile) recoverFile(f *os.File, opts Options) (int64, error) {
	info, err := f.Stat()
	if err != nil {
		return 0, fmt.Errorf("%w: stat %s: %v", ErrOpen, s.path, err)
	}
	size := info.Size()
	limit := size
	if limit > s.capacity {
		limit = s.capacity
	}

	start := opts.RecoveryStartPos
	if start < 0 || start > s.capacity || start > size {
		util.Warn("segment %d: recovery start %d outside [0, %d], scanning from 0", s.sequenceID, start, limit)
		start = 0
	}

	pos, dirty := start, false
	if size > 0 {
		if pos, dirty, err = s.scanValid(start, limit); err != nil {
			return 0, err
		}
	}

	if pos < size {
		if err := f.Truncate(pos); err != nil {
			return 0, fmt.Errorf("%w: truncate %s to %d: %v", ErrOpen, s.path, pos, err)
		}
		if dirty {
			util.Warn("segment %d: discarded %d bytes after offset %d", s.sequenceID, size-pos, pos)
			metrics.RecoveryTruncatedBytes.Add(float64(size - pos))
		}
	}
	return pos, nil
}

// scanValid walks records in [start, limit) and reports the end of the last valid
// one and whether anything other than zero fill follows it.
func (s *SegmentFile) scanValid(start, limit int64) (int64, bool, error) {
	r, err := mmap.Open(s.path)
	if err != nil {
		return 0, false, fmt.Errorf("%w: mmap %s: %v", ErrOpen, s.path, err)
	}
	defer func() {
		if err := r.Close(); err != nil {
			util.Error("segment %d: mmap close error: %v", s.sequenceID, err)
		}
	}()

	pos := start
	var count int
	for pos < limit {
		data, err := record.ReadAt(r, pos, limit)
		if err != nil {
			if !record.IsInvalid(err) {
				util.Error("segment %d: recovery read at %d: %v", s.sequenceID, pos, err)
			}
			break
		}
		pos += record.WriteSize(data)
		count++
	}
	util.Debug("segment %d: recovered %d records in [%d, %d)", s.sequenceID, count, start, pos)

	end := int64(r.Len())
	if pos >= end {
		return pos, false, nil
	}
	dirty, err := hasData(r, pos, end)
	if err != nil {
		util.Warn("segment %d: inspecting tail at %d: %v", s.sequenceID, pos, err)
		dirty = true
	}
	return pos, dirty, nil
}

// hasData reports whether r holds any non-zero byte in [from, to).
// Preallocated space is zero-filled and is not counted as a dirty tail.
func hasData(r io.ReaderAt, from, to int64) (bool, error) {
	buf := make([]byte, 4096)
	for off := from; off < to; {
		n := int64(len(buf))
		if to-off < n {
			n = to - off
		}
		read, err := r.ReadAt(buf[:n], off)
		for _, b := range buf[:read] {
			if b != 0 {
				return true, nil
			}
		}
		if err != nil && err != io.EOF {
			return false, err
		}
		if read == 0 {
			break
		}
		off += int64(read)
	}
	return false, nil
}
