package disk

import (
	"fmt"

	"github.com/downfa11-org/segmentlog/pkg/record"
	"golang.org/x/exp/mmap"
)

// Report summarizes a read-only scan of a segment file.
type Report struct {
	Path       string
	Size       int64
	Records    int
	ValidBytes int64
	// TrailingBytes follow the last valid record; non-zero ones form a dirty tail.
	TrailingBytes int64
	DirtyTail     bool
	StopReason    error
}

// InspectFile walks the valid record prefix of a segment file without modifying
// it. fn, when non-nil, sees every valid record; returning an error stops the walk.
// capacity <= 0 scans the whole file.
func InspectFile(path string, capacity int64, fn func(offset int64, data []byte) error) (*Report, error) {
	r, err := mmap.Open(path)
	if err != nil {
		return nil, fmt.Errorf("mmap %s: %w", path, err)
	}
	defer r.Close()

	size := int64(r.Len())
	limit := size
	if capacity > 0 && capacity < limit {
		limit = capacity
	}

	rep := &Report{Path: path, Size: size}
	var pos int64
	for pos < limit {
		data, err := record.ReadAt(r, pos, limit)
		if err != nil {
			rep.StopReason = err
			break
		}
		if fn != nil {
			if err := fn(pos, data); err != nil {
				return nil, err
			}
		}
		pos += record.WriteSize(data)
		rep.Records++
	}

	rep.ValidBytes = pos
	rep.TrailingBytes = size - pos
	for off := pos; off < size && !rep.DirtyTail; off++ {
		rep.DirtyTail = r.At(int(off)) != 0
	}
	return rep, nil
}
