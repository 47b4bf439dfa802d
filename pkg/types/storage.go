package types

import "fmt"

// Position locates a record: the segment holding it and its byte offset there.
type Position struct {
	SequenceID uint64
	Offset     int64
}

func (p Position) String() string {
	return fmt.Sprintf("%d@%d", p.SequenceID, p.Offset)
}

// Less orders positions by segment, then offset.
func (p Position) Less(o Position) bool {
	if p.SequenceID != o.SequenceID {
		return p.SequenceID < o.SequenceID
	}
	return p.Offset < o.Offset
}

// SegmentStore is the subset of a segment file consumed by segment managers.
type SegmentStore interface {
	SequenceID() uint64
	Path() string
	Capacity() int64
	WrotePos() int64
	CommittedPos() int64
	IsFull() bool
	ReachesFileEndBy(size int64) bool

	Read(logIndex uint64, offset int64) ([]byte, bool, error)
	Sync(force bool) error
	Scan(fn func(offset int64, data []byte) error) error
	Shutdown() error
	Remove() error
}
