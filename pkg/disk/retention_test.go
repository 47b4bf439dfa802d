package disk_test

import (
	"os"
	"testing"

	"github.com/downfa11-org/segmentlog/pkg/disk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiskManager_Remove(t *testing.T) {
	dm := newTestManager(t, t.TempDir())
	require.NoError(t, dm.Open())
	_, err := dm.Roll()
	require.NoError(t, err)

	assert.ErrorIs(t, dm.Remove(1), disk.ErrActiveSegment)
	assert.ErrorIs(t, dm.Remove(9), disk.ErrSegmentNotFound)

	path := dm.SegmentPath(0)
	require.NoError(t, dm.Remove(0))
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
	require.Len(t, dm.Segments(), 1)
}

func TestDiskManager_RemoveBefore(t *testing.T) {
	tests := []struct {
		name        string
		rolls       int
		before      uint64
		wantRemoved int
		wantFirst   uint64
	}{
		{name: "NothingBelow", rolls: 3, before: 0, wantRemoved: 0, wantFirst: 0},
		{name: "PrefixRemoved", rolls: 3, before: 2, wantRemoved: 2, wantFirst: 2},
		{name: "ActiveKept", rolls: 2, before: 10, wantRemoved: 2, wantFirst: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dm := newTestManager(t, t.TempDir())
			require.NoError(t, dm.Open())
			for i := 0; i < tt.rolls; i++ {
				_, err := dm.Roll()
				require.NoError(t, err)
			}

			removed, err := dm.RemoveBefore(tt.before)
			require.NoError(t, err)
			assert.Equal(t, tt.wantRemoved, removed)

			segs := dm.Segments()
			require.NotEmpty(t, segs)
			assert.Equal(t, tt.wantFirst, segs[0].SequenceID())

			active, err := dm.Active()
			require.NoError(t, err)
			assert.Equal(t, uint64(tt.rolls), active.SequenceID())
		})
	}
}
