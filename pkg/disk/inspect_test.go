package disk_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/downfa11-org/segmentlog/pkg/disk"
	"github.com/downfa11-org/segmentlog/pkg/record"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeRecords(t *testing.T, path string, tail []byte, payloads ...string) {
	t.Helper()
	var buf []byte
	for _, p := range payloads {
		framed, err := record.Frame([]byte(p))
		require.NoError(t, err)
		buf = append(buf, framed...)
	}
	buf = append(buf, tail...)
	require.NoError(t, os.WriteFile(path, buf, 0o644))
}

func TestInspectFile(t *testing.T) {
	tests := []struct {
		name      string
		tail      []byte
		records   int
		trailing  int64
		dirtyTail bool
	}{
		{name: "Clean", tail: nil, records: 3, trailing: 0},
		{name: "ZeroFill", tail: make([]byte, 32), records: 3, trailing: 32},
		{name: "PartialRecord", tail: []byte{0x57, 0x8A, 0, 0, 0, 9, 'x'}, records: 3, trailing: 7, dirtyTail: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "00000000000000000000.seg")
			writeRecords(t, path, tt.tail, "alpha", "beta", "gamma")

			var seen []string
			rep, err := disk.InspectFile(path, 0, func(off int64, data []byte) error {
				seen = append(seen, string(data))
				return nil
			})
			require.NoError(t, err)
			assert.Equal(t, tt.records, rep.Records)
			assert.Equal(t, tt.trailing, rep.TrailingBytes)
			assert.Equal(t, tt.dirtyTail, rep.DirtyTail)
			assert.Equal(t, []string{"alpha", "beta", "gamma"}, seen)
			assert.Equal(t, rep.Size-rep.TrailingBytes, rep.ValidBytes)
		})
	}
}

func TestInspectFile_Capacity(t *testing.T) {
	path := filepath.Join(t.TempDir(), "0.seg")
	writeRecords(t, path, nil, "alpha", "beta")

	rep, err := disk.InspectFile(path, record.WriteSize([]byte("alpha")), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Records)
	assert.True(t, rep.DirtyTail)
}
