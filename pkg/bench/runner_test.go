package bench_test

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/downfa11-org/segmentlog/pkg/bench"
	"github.com/google/uuid"
	"github.com/hashicorp/raft"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBenchmarkRunner_Run(t *testing.T) {
	store := raft.NewInmemStore()
	require.NoError(t, store.StoreLog(&raft.Log{Index: 1, Term: 1}))

	runner := bench.NewBenchmarkRunner(store, 25, 10)
	res, err := runner.Run()
	require.NoError(t, err)

	assert.Equal(t, 25, res.Records)
	assert.Equal(t, 3, res.Batches)
	assert.Equal(t, int64(25*36), res.Bytes)

	last, err := store.LastIndex()
	require.NoError(t, err)
	assert.Equal(t, uint64(26), last)

	var l raft.Log
	require.NoError(t, store.GetLog(2, &l))
	_, err = uuid.ParseBytes(l.Data)
	assert.NoError(t, err, "payloads are uuids")

	var out bytes.Buffer
	res.Print(&out)
	assert.True(t, strings.Contains(out.String(), "Records       : 25"))
}

type failingStore struct {
	*raft.InmemStore
}

func (failingStore) StoreLogs([]*raft.Log) error { return errors.New("disk full") }

func TestBenchmarkRunner_StoreError(t *testing.T) {
	runner := bench.NewBenchmarkRunner(failingStore{raft.NewInmemStore()}, 5, 0)
	res, err := runner.Run()
	require.Error(t, err)
	assert.Equal(t, 0, res.Records)
	assert.Equal(t, 1, runner.BatchSize)
}
