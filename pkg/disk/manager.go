package disk

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/downfa11-org/segmentlog/pkg/config"
	"github.com/downfa11-org/segmentlog/pkg/executor"
	"github.com/downfa11-org/segmentlog/pkg/segment"
	"github.com/downfa11-org/segmentlog/pkg/types"
	"github.com/downfa11-org/segmentlog/util"
)

const segmentExt = ".seg"

var (
	ErrNotOpened       = errors.New("disk manager is not open")
	ErrAlreadyOpened   = errors.New("disk manager is already open")
	ErrActiveSegment   = errors.New("cannot remove the active segment")
	ErrSegmentNotFound = errors.New("segment not found")
)

var _ types.SegmentStore = (*segment.SegmentFile)(nil)

// DiskManager owns the segment files of one log directory, ordered by sequence id.
// The last segment is the active one and the only one written to.
type DiskManager struct {
	mu       sync.Mutex
	cfg      *config.Config
	pool     executor.WorkerPool
	segments []*segment.SegmentFile
}

func NewDiskManager(cfg *config.Config, pool executor.WorkerPool) *DiskManager {
	return &DiskManager{
		cfg:  cfg,
		pool: pool,
	}
}

// Open recovers every segment found in the log directory, or creates segment 0.
func (dm *DiskManager) Open() error {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	if len(dm.segments) > 0 {
		return ErrAlreadyOpened
	}
	if err := os.MkdirAll(dm.cfg.LogDir, 0o755); err != nil {
		return fmt.Errorf("failed to create log directory %s: %w", dm.cfg.LogDir, err)
	}

	seqs, err := dm.listSequences()
	if err != nil {
		return err
	}

	if len(seqs) == 0 {
		seg, err := dm.openSegment(0, false)
		if err != nil {
			return err
		}
		dm.segments = append(dm.segments, seg)
		return nil
	}

	for _, seq := range seqs {
		seg, err := dm.openSegment(seq, true)
		if err != nil {
			_ = dm.closeLocked()
			return err
		}
		dm.segments = append(dm.segments, seg)
	}
	util.Info("opened %d segments in %s (active=%d)", len(dm.segments), dm.cfg.LogDir, seqs[len(seqs)-1])
	return nil
}

func (dm *DiskManager) listSequences() ([]uint64, error) {
	files, err := filepath.Glob(filepath.Join(dm.cfg.LogDir, "*"+segmentExt))
	if err != nil {
		return nil, fmt.Errorf("list segments in %s: %w", dm.cfg.LogDir, err)
	}

	seqs := make([]uint64, 0, len(files))
	for _, f := range files {
		name := strings.TrimSuffix(filepath.Base(f), segmentExt)
		seq, err := strconv.ParseUint(name, 10, 64)
		if err != nil {
			util.Warn("skipping unrecognized segment file %s", f)
			continue
		}
		seqs = append(seqs, seq)
	}
	sort.Slice(seqs, func(i, j int) bool { return seqs[i] < seqs[j] })
	return seqs, nil
}

func (dm *DiskManager) openSegment(seq uint64, recover bool) (*segment.SegmentFile, error) {
	seg := segment.New(seq, dm.cfg.SegmentSize, dm.SegmentPath(seq), dm.pool)
	opts := segment.Options{
		Recover:     recover,
		Preallocate: dm.cfg.Preallocate,
	}
	if err := seg.Init(opts); err != nil {
		return nil, fmt.Errorf("open segment %d: %w", seq, err)
	}
	return seg, nil
}

// SegmentPath returns the file name used for seq.
func (dm *DiskManager) SegmentPath(seq uint64) string {
	return filepath.Join(dm.cfg.LogDir, fmt.Sprintf("%020d%s", seq, segmentExt))
}

// Active returns the segment currently written to.
func (dm *DiskManager) Active() (*segment.SegmentFile, error) {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	if len(dm.segments) == 0 {
		return nil, ErrNotOpened
	}
	return dm.segments[len(dm.segments)-1], nil
}

// Segments returns the open segments in ascending sequence order.
func (dm *DiskManager) Segments() []*segment.SegmentFile {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	out := make([]*segment.SegmentFile, len(dm.segments))
	copy(out, dm.segments)
	return out
}

func (dm *DiskManager) Segment(seq uint64) (*segment.SegmentFile, bool) {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	if i, ok := dm.indexOf(seq); ok {
		return dm.segments[i], true
	}
	return nil, false
}

func (dm *DiskManager) indexOf(seq uint64) (int, bool) {
	i := sort.Search(len(dm.segments), func(i int) bool {
		return dm.segments[i].SequenceID() >= seq
	})
	if i < len(dm.segments) && dm.segments[i].SequenceID() == seq {
		return i, true
	}
	return i, false
}

// Roll makes the active segment durable and starts the next one.
func (dm *DiskManager) Roll() (*segment.SegmentFile, error) {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	if len(dm.segments) == 0 {
		return nil, ErrNotOpened
	}
	active := dm.segments[len(dm.segments)-1]
	if err := active.Sync(true); err != nil {
		return nil, fmt.Errorf("sync segment %d before roll: %w", active.SequenceID(), err)
	}

	next, err := dm.openSegment(active.SequenceID()+1, false)
	if err != nil {
		return nil, err
	}
	dm.segments = append(dm.segments, next)
	util.Debug("rolled segment %d -> %d", active.SequenceID(), next.SequenceID())
	return next, nil
}

// Retire starts the next segment after the active one lost a write. Roll would
// refuse because the active segment can no longer commit past the failed
// write, so it is synced only as far as it can go.
func (dm *DiskManager) Retire() (*segment.SegmentFile, error) {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	if len(dm.segments) == 0 {
		return nil, ErrNotOpened
	}
	active := dm.segments[len(dm.segments)-1]
	if err := active.Sync(true); err != nil {
		util.Warn("retiring segment %d at committed=%d: %v", active.SequenceID(), active.CommittedPos(), err)
	}

	next, err := dm.openSegment(active.SequenceID()+1, false)
	if err != nil {
		return nil, err
	}
	dm.segments = append(dm.segments, next)
	util.Info("retired segment %d, writing to %d", active.SequenceID(), next.SequenceID())
	return next, nil
}

// Remove deletes a retired segment. The active segment is never removed.
func (dm *DiskManager) Remove(seq uint64) error {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	return dm.removeLocked(seq)
}

func (dm *DiskManager) removeLocked(seq uint64) error {
	i, ok := dm.indexOf(seq)
	if !ok {
		return fmt.Errorf("%w: %d", ErrSegmentNotFound, seq)
	}
	if i == len(dm.segments)-1 {
		return ErrActiveSegment
	}
	if err := dm.segments[i].Remove(); err != nil {
		return err
	}
	dm.segments = append(dm.segments[:i], dm.segments[i+1:]...)
	util.Debug("removed segment %d", seq)
	return nil
}

// CloseAll shuts every segment down, keeping their files.
func (dm *DiskManager) CloseAll() error {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	return dm.closeLocked()
}

func (dm *DiskManager) closeLocked() error {
	var errs []error
	for _, seg := range dm.segments {
		util.Debug("Closing segment %d", seg.SequenceID())
		if err := seg.Shutdown(); err != nil {
			util.Error("segment %d close error: %v", seg.SequenceID(), err)
			errs = append(errs, err)
		}
	}
	dm.segments = nil
	return errors.Join(errs...)
}
