// Package segment implements a fixed-capacity append-only file of framed records.
//
// Offsets are reserved synchronously by Write while the physical write runs on a
// worker pool. Records become readable only after Sync has flushed them, and
// recovery keeps the longest prefix of valid records.
package segment

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/downfa11-org/segmentlog/pkg/executor"
	"github.com/downfa11-org/segmentlog/pkg/metrics"
	"github.com/downfa11-org/segmentlog/pkg/record"
	"github.com/downfa11-org/segmentlog/util"
)

type SegmentFile struct {
	sequenceID uint64
	capacity   int64
	path       string
	pool       executor.WorkerPool

	fileMu sync.RWMutex // file handle lifecycle
	file   *os.File

	mu           sync.Mutex // positions, pending, hole, open
	cond         *sync.Cond
	open         bool
	wrotePos     int64
	committedPos int64
	pending      map[int64]struct{} // start offsets of writes not yet finished
	hole         int64              // start of the lowest failed write, -1 if none
}

// WriteSize returns the bytes data occupies in a segment.
func WriteSize(data []byte) int64 {
	return record.WriteSize(data)
}

func New(sequenceID uint64, capacity int64, path string, pool executor.WorkerPool) *SegmentFile {
	s := &SegmentFile{
		sequenceID: sequenceID,
		capacity:   capacity,
		path:       path,
		pool:       pool,
		pending:    make(map[int64]struct{}),
		hole:       -1,
	}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// Init opens the backing file, either empty or by recovering its valid prefix.
func (s *SegmentFile) Init(opts Options) error {
	s.fileMu.Lock()
	defer s.fileMu.Unlock()

	s.mu.Lock()
	busy := s.open || s.file != nil
	s.mu.Unlock()
	if busy {
		return ErrAlreadyOpen
	}

	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrOpen, s.path, err)
	}

	var pos int64
	if opts.Recover {
		pos, err = s.recoverFile(f, opts)
	} else if terr := f.Truncate(0); terr != nil {
		err = fmt.Errorf("%w: truncate %s: %v", ErrOpen, s.path, terr)
	}
	if err != nil {
		if cerr := f.Close(); cerr != nil {
			util.Error("segment %d: close after failed init: %v", s.sequenceID, cerr)
		}
		return err
	}

	if opts.Preallocate {
		if err := preallocate(f, s.capacity); err != nil {
			util.Warn("segment %d: preallocate %d bytes failed: %v", s.sequenceID, s.capacity, err)
		}
	}

	s.file = f
	s.mu.Lock()
	s.open = true
	s.wrotePos = pos
	s.committedPos = pos
	s.hole = -1
	s.pending = make(map[int64]struct{})
	s.mu.Unlock()

	metrics.OpenSegments.Inc()
	util.Info("segment %d opened at %s (recover=%v, pos=%d, capacity=%d)", s.sequenceID, s.path, opts.Recover, pos, s.capacity)
	return nil
}

// Write reserves space for data and hands the physical write to the pool.
// The returned offset is final; the future reports when the bytes reached the file.
func (s *SegmentFile) Write(logIndex uint64, data []byte) (int64, *WriteFuture, error) {
	return s.write(logIndex, data, s.pool.Submit)
}

// WriteWait is Write that waits for room in a saturated pool instead of
// rejecting. The write is rejected only when ctx ends or the pool stops first.
func (s *SegmentFile) WriteWait(ctx context.Context, logIndex uint64, data []byte) (int64, *WriteFuture, error) {
	return s.write(logIndex, data, func(task executor.Task) error {
		return s.pool.SubmitWait(ctx, task)
	})
}

func (s *SegmentFile) write(logIndex uint64, data []byte, submit func(executor.Task) error) (int64, *WriteFuture, error) {
	buf, err := record.Frame(data)
	if err != nil {
		return -1, nil, err
	}
	size := int64(len(buf))

	s.mu.Lock()
	if !s.open {
		s.mu.Unlock()
		return -1, nil, ErrNotOpen
	}
	if s.wrotePos+size > s.capacity {
		wrote := s.wrotePos
		s.mu.Unlock()
		return -1, nil, fmt.Errorf("%w: need %d bytes at %d, capacity %d", ErrSegmentFull, size, wrote, s.capacity)
	}
	off := s.wrotePos
	s.wrotePos += size
	s.pending[off] = struct{}{}
	s.mu.Unlock()

	fut := newWriteFuture(off)
	name := fmt.Sprintf("segment-%d-write-%d", s.sequenceID, logIndex)
	task := executor.NewNamedTask(name, func(ctx context.Context) error {
		err := s.writeAt(buf, off)
		if err != nil {
			err = fmt.Errorf("%w: %w", ErrWriteFailed, err)
		}
		s.finishWrite(logIndex, off, err)
		metrics.ObserveWrite(size, err)
		fut.respond(err)
		return err
	})

	if err := submit(task); err != nil {
		metrics.SegmentWritesRejected.Inc()
		rerr := fmt.Errorf("%w: %w", ErrWriteRejected, err)
		s.finishWrite(logIndex, off, rerr)
		fut.respond(rerr)
	}
	return off, fut, nil
}

func (s *SegmentFile) writeAt(buf []byte, off int64) error {
	s.fileMu.RLock()
	defer s.fileMu.RUnlock()

	if s.file == nil {
		return ErrNotOpen
	}
	if _, err := s.file.WriteAt(buf, off); err != nil {
		return fmt.Errorf("write %d bytes at %d: %w", len(buf), off, err)
	}
	return nil
}

func (s *SegmentFile) finishWrite(logIndex uint64, off int64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.pending, off)
	if err != nil {
		util.Error("segment %d: write of log %d at %d failed: %v", s.sequenceID, logIndex, off, err)
		if s.hole < 0 || off < s.hole {
			s.hole = off
		}
	}
	s.cond.Broadcast()
}

// Sync waits for every write reserved before the call, flushes the file and
// makes those records readable. It never commits past a failed write.
func (s *SegmentFile) Sync(force bool) error {
	start := time.Now()
	err := s.sync(force)
	metrics.ObserveSync(time.Since(start), err)
	return err
}

func (s *SegmentFile) sync(force bool) error {
	s.mu.Lock()
	if !s.open {
		s.mu.Unlock()
		return ErrNotOpen
	}
	target := s.wrotePos
	for s.pendingBefore(target) {
		s.cond.Wait()
	}
	commit := target
	if s.hole >= 0 && s.hole < commit {
		commit = s.hole
	}
	s.mu.Unlock()

	if err := s.flush(force); err != nil {
		return err
	}

	s.mu.Lock()
	if commit > s.committedPos {
		s.committedPos = commit
	}
	s.mu.Unlock()

	if commit < target {
		return fmt.Errorf("%w: committed up to %d of %d", ErrWriteFailed, commit, target)
	}
	return nil
}

func (s *SegmentFile) pendingBefore(target int64) bool {
	for off := range s.pending {
		if off < target {
			return true
		}
	}
	return false
}

func (s *SegmentFile) flush(force bool) error {
	s.fileMu.RLock()
	defer s.fileMu.RUnlock()

	if s.file == nil {
		return ErrNotOpen
	}
	if force {
		return s.file.Sync()
	}
	return datasync(s.file)
}

// Read returns the record at offset. Offsets at or past the committed position
// are reported as not found rather than waited for.
func (s *SegmentFile) Read(logIndex uint64, offset int64) ([]byte, bool, error) {
	s.mu.Lock()
	open, committed := s.open, s.committedPos
	s.mu.Unlock()

	if !open {
		return nil, false, ErrNotOpen
	}
	if offset < 0 || offset+record.HeaderSize > committed {
		return nil, false, nil
	}

	s.fileMu.RLock()
	defer s.fileMu.RUnlock()
	if s.file == nil {
		return nil, false, ErrNotOpen
	}

	data, err := record.ReadAt(s.file, offset, committed)
	if err != nil {
		metrics.SegmentCorruptions.Inc()
		util.Error("segment %d: log %d at %d unreadable: %v", s.sequenceID, logIndex, offset, err)
		return nil, false, fmt.Errorf("%w: offset %d: %v", ErrCorrupted, offset, err)
	}
	return data, true, nil
}

// Scan calls fn for each committed record in offset order.
func (s *SegmentFile) Scan(fn func(offset int64, data []byte) error) error {
	s.mu.Lock()
	open, committed := s.open, s.committedPos
	s.mu.Unlock()

	if !open {
		return ErrNotOpen
	}

	s.fileMu.RLock()
	defer s.fileMu.RUnlock()
	if s.file == nil {
		return ErrNotOpen
	}

	for off := int64(0); off < committed; {
		data, err := record.ReadAt(s.file, off, committed)
		if err != nil {
			metrics.SegmentCorruptions.Inc()
			return fmt.Errorf("%w: offset %d: %v", ErrCorrupted, off, err)
		}
		if err := fn(off, data); err != nil {
			return err
		}
		off += record.WriteSize(data)
	}
	return nil
}

// ReachesFileEndBy reports whether writing size more bytes would pass the capacity.
func (s *SegmentFile) ReachesFileEndBy(size int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.wrotePos+size > s.capacity
}

func (s *SegmentFile) IsFull() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.wrotePos == s.capacity
}

func (s *SegmentFile) WrotePos() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.wrotePos
}

func (s *SegmentFile) CommittedPos() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.committedPos
}

func (s *SegmentFile) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open
}

func (s *SegmentFile) Capacity() int64    { return s.capacity }
func (s *SegmentFile) SequenceID() uint64 { return s.sequenceID }
func (s *SegmentFile) Path() string       { return s.path }

// Shutdown waits for in-flight writes and closes the file. Positions and
// contents are kept, so the segment may be initialized again.
func (s *SegmentFile) Shutdown() error {
	s.mu.Lock()
	if !s.open {
		s.mu.Unlock()
		return nil
	}
	s.open = false
	for len(s.pending) > 0 {
		s.cond.Wait()
	}
	s.mu.Unlock()

	s.fileMu.Lock()
	defer s.fileMu.Unlock()
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	metrics.OpenSegments.Dec()
	if err != nil {
		return fmt.Errorf("close segment %d: %w", s.sequenceID, err)
	}
	util.Debug("segment %d closed (wrote=%d, committed=%d)", s.sequenceID, s.WrotePos(), s.CommittedPos())
	return nil
}

// Remove shuts the segment down and deletes its file.
func (s *SegmentFile) Remove() error {
	if err := s.Shutdown(); err != nil {
		return err
	}
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove segment %d: %w", s.sequenceID, err)
	}
	return nil
}
