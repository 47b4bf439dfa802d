// Package raftstore persists hashicorp/raft log entries in segment files.
//
// Entries and delete-range tombstones are appended to the active segment of a
// DiskManager. The index from raft index to record position lives in memory and
// is rebuilt by replaying every segment on start.
package raftstore

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/downfa11-org/segmentlog/pkg/config"
	"github.com/downfa11-org/segmentlog/pkg/disk"
	"github.com/downfa11-org/segmentlog/pkg/executor"
	"github.com/downfa11-org/segmentlog/pkg/segment"
	"github.com/downfa11-org/segmentlog/pkg/types"
	"github.com/downfa11-org/segmentlog/util"
	"github.com/hashicorp/raft"
)

var ErrEntryTooLarge = errors.New("raftstore: entry larger than a segment")

// maxWriteAttempts bounds how many segments one batch may be retried on after
// a failed or rejected write.
const maxWriteAttempts = 3

var _ raft.LogStore = (*LogStore)(nil)

type LogStore struct {
	mu          sync.RWMutex
	dm          *disk.DiskManager
	syncForce   bool
	capacity    int64
	compression util.Compression

	index map[uint64]types.Position
	live  map[uint64]int // live entries per segment sequence id
	first uint64
	last  uint64
}

// NewLogStore replays the segments of an opened DiskManager.
func NewLogStore(dm *disk.DiskManager, cfg *config.Config) (*LogStore, error) {
	s := &LogStore{
		dm:          dm,
		syncForce:   cfg.SyncForce,
		capacity:    cfg.SegmentSize,
		compression: cfg.Compression(),
		index:       make(map[uint64]types.Position),
		live:        make(map[uint64]int),
	}
	if err := s.replay(); err != nil {
		return nil, err
	}
	util.Info("raft log store ready: %d entries [%d, %d]", len(s.index), s.first, s.last)
	return s, nil
}

func (s *LogStore) replay() error {
	for _, seg := range s.dm.Segments() {
		seq := seg.SequenceID()
		err := seg.Scan(func(offset int64, data []byte) error {
			if len(data) == 0 {
				return fmt.Errorf("%w: empty entry at %d", ErrInvalidEntry, offset)
			}
			switch data[0] {
			case kindLog:
				idx, err := peekIndex(data)
				if err != nil {
					return err
				}
				s.put(idx, types.Position{SequenceID: seq, Offset: offset})
			case kindDeleteRange:
				min, max, err := decodeDeleteRange(data)
				if err != nil {
					return err
				}
				s.drop(min, max)
			default:
				return fmt.Errorf("%w: unknown kind %d at %d", ErrInvalidEntry, data[0], offset)
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("replay segment %d: %w", seq, err)
		}
	}
	return nil
}

func (s *LogStore) FirstIndex() (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.first, nil
}

func (s *LogStore) LastIndex() (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last, nil
}

func (s *LogStore) GetLog(index uint64, log *raft.Log) error {
	s.mu.RLock()
	pos, ok := s.index[index]
	s.mu.RUnlock()
	if !ok {
		return raft.ErrLogNotFound
	}

	seg, ok := s.dm.Segment(pos.SequenceID)
	if !ok {
		return raft.ErrLogNotFound
	}
	data, found, err := seg.Read(index, pos.Offset)
	if errors.Is(err, segment.ErrNotOpen) {
		// removed by a concurrent DeleteRange
		return raft.ErrLogNotFound
	}
	if err != nil {
		return fmt.Errorf("read log %d at %s: %w", index, pos, err)
	}
	if !found {
		return raft.ErrLogNotFound
	}
	return decodeLog(data, log)
}

func (s *LogStore) StoreLog(log *raft.Log) error {
	return s.StoreLogs([]*raft.Log{log})
}

// StoreLogs appends the batch and syncs each touched segment once before the
// entries become visible to GetLog. A batch that loses a write is retried on a
// fresh segment.
func (s *LogStore) StoreLogs(logs []*raft.Log) error {
	if len(logs) == 0 {
		return nil
	}

	payloads := make([][]byte, len(logs))
	for i, l := range logs {
		payload, err := encodeLog(l, s.compression)
		if err != nil {
			return err
		}
		payloads[i] = payload
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.withRetry(func() error {
		return s.storeBatch(logs, payloads)
	})
}

func (s *LogStore) storeBatch(logs []*raft.Log, payloads [][]byte) error {
	type written struct {
		index uint64
		pos   types.Position
		fut   *segment.WriteFuture
	}
	batch := make([]written, 0, len(logs))
	var touched []*segment.SegmentFile

	for i, l := range logs {
		seg, off, fut, err := s.append(l.Index, payloads[i])
		if err != nil {
			return err
		}
		if len(touched) == 0 || touched[len(touched)-1] != seg {
			touched = append(touched, seg)
		}
		batch = append(batch, written{
			index: l.Index,
			pos:   types.Position{SequenceID: seg.SequenceID(), Offset: off},
			fut:   fut,
		})
	}

	for _, w := range batch {
		if err := w.fut.Error(); err != nil {
			return fmt.Errorf("store log %d: %w", w.index, err)
		}
	}
	for _, seg := range touched {
		if err := seg.Sync(s.syncForce); err != nil {
			return fmt.Errorf("sync segment %d: %w", seg.SequenceID(), err)
		}
	}

	for _, w := range batch {
		s.put(w.index, w.pos)
	}
	return nil
}

// DeleteRange records a tombstone for [min, max] and removes the leading
// segments that no longer hold live entries.
func (s *LogStore) DeleteRange(min, max uint64) error {
	if min > max {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.withRetry(func() error {
		seg, _, fut, err := s.append(0, encodeDeleteRange(min, max))
		if err != nil {
			return err
		}
		if err := fut.Error(); err != nil {
			return fmt.Errorf("delete range [%d, %d]: %w", min, max, err)
		}
		if err := seg.Sync(s.syncForce); err != nil {
			return fmt.Errorf("sync segment %d: %w", seg.SequenceID(), err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.drop(min, max)
	return s.removeDeadPrefix()
}

// withRetry runs fn, retiring the active segment after each attempt that left
// a failed write behind. Records of an abandoned attempt are never indexed.
func (s *LogStore) withRetry(fn func() error) error {
	for attempt := 1; ; attempt++ {
		err := fn()
		if err == nil || attempt == maxWriteAttempts || !lostWrite(err) {
			return err
		}
		next, rerr := s.dm.Retire()
		if rerr != nil {
			return fmt.Errorf("retire segment after %v: %w", err, rerr)
		}
		util.Warn("raft log store retrying on segment %d (attempt %d): %v", next.SequenceID(), attempt+1, err)
	}
}

// lostWrite reports whether err left a hole a fresh segment can get past.
// A stopped pool would reject there too.
func lostWrite(err error) bool {
	if errors.Is(err, executor.ErrPoolClosed) {
		return false
	}
	return errors.Is(err, segment.ErrWriteRejected) || errors.Is(err, segment.ErrWriteFailed)
}

// append writes payload to the active segment, rolling first when it would not
// fit. A saturated pool makes it wait rather than reject.
func (s *LogStore) append(logIndex uint64, payload []byte) (*segment.SegmentFile, int64, *segment.WriteFuture, error) {
	size := segment.WriteSize(payload)
	if size > s.capacity {
		return nil, 0, nil, fmt.Errorf("%w: %d bytes, segment capacity %d", ErrEntryTooLarge, size, s.capacity)
	}

	seg, err := s.dm.Active()
	if err != nil {
		return nil, 0, nil, err
	}
	if seg.ReachesFileEndBy(size) {
		if seg, err = s.dm.Roll(); err != nil {
			return nil, 0, nil, err
		}
	}

	off, fut, err := seg.WriteWait(context.Background(), logIndex, payload)
	if err != nil {
		return nil, 0, nil, err
	}
	return seg, off, fut, nil
}

func (s *LogStore) put(index uint64, pos types.Position) {
	if old, ok := s.index[index]; ok {
		s.release(old.SequenceID)
	}
	s.index[index] = pos
	s.live[pos.SequenceID]++

	if s.first == 0 || index < s.first {
		s.first = index
	}
	if index > s.last {
		s.last = index
	}
}

func (s *LogStore) drop(min, max uint64) {
	if len(s.index) == 0 {
		return
	}
	if min < s.first {
		min = s.first
	}
	if max > s.last {
		max = s.last
	}
	if min > max {
		return
	}
	for i := min; i <= max; i++ {
		if pos, ok := s.index[i]; ok {
			delete(s.index, i)
			s.release(pos.SequenceID)
		}
		if i == max {
			break
		}
	}

	switch {
	case len(s.index) == 0:
		s.first, s.last = 0, 0
	case min <= s.first:
		s.first = max + 1
	case max >= s.last:
		s.last = min - 1
	}
}

func (s *LogStore) release(seq uint64) {
	if s.live[seq]--; s.live[seq] <= 0 {
		delete(s.live, seq)
	}
}

func (s *LogStore) removeDeadPrefix() error {
	segs := s.dm.Segments()
	if len(segs) < 2 {
		return nil
	}
	for _, seg := range segs[:len(segs)-1] {
		seq := seg.SequenceID()
		if s.live[seq] > 0 {
			break
		}
		if err := s.dm.Remove(seq); err != nil {
			return fmt.Errorf("remove segment %d: %w", seq, err)
		}
		util.Debug("raft log store released segment %d", seq)
	}
	return nil
}
