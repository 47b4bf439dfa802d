package bench

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/raft"
)

// BenchmarkRunner appends uuid payloads to a raft log store in synced batches.
type BenchmarkRunner struct {
	Store     raft.LogStore
	Records   int
	BatchSize int
	Term      uint64
}

type Result struct {
	Records  int
	Batches  int
	Bytes    int64
	Duration time.Duration
}

func NewBenchmarkRunner(store raft.LogStore, records, batchSize int) *BenchmarkRunner {
	if batchSize <= 0 {
		batchSize = 1
	}
	return &BenchmarkRunner{
		Store:     store,
		Records:   records,
		BatchSize: batchSize,
		Term:      1,
	}
}

func (b *BenchmarkRunner) Run() (Result, error) {
	var res Result
	if b.Store == nil {
		return res, errors.New("bench: no log store")
	}

	last, err := b.Store.LastIndex()
	if err != nil {
		return res, fmt.Errorf("bench: last index: %w", err)
	}
	next := last + 1

	start := time.Now()
	for written := 0; written < b.Records; {
		n := b.BatchSize
		if rem := b.Records - written; rem < n {
			n = rem
		}

		batch := make([]*raft.Log, n)
		for i := range batch {
			data := []byte(uuid.NewString())
			batch[i] = &raft.Log{
				Index:      next,
				Term:       b.Term,
				Type:       raft.LogCommand,
				Data:       data,
				AppendedAt: time.Now(),
			}
			res.Bytes += int64(len(data))
			next++
		}
		if err := b.Store.StoreLogs(batch); err != nil {
			res.Duration = time.Since(start)
			return res, fmt.Errorf("bench: batch %d: %w", res.Batches, err)
		}

		written += n
		res.Records = written
		res.Batches++
	}
	res.Duration = time.Since(start)
	return res, nil
}

// Throughput is records per second.
func (r Result) Throughput() float64 {
	if r.Duration <= 0 {
		return 0
	}
	return float64(r.Records) / r.Duration.Seconds()
}

func (r Result) Print(w io.Writer) {
	fmt.Fprintf(w, "\n🧪 BENCHMARK RESULT [segment] 🧪\n")
	fmt.Fprintf(w, "-------------------------------------\n")
	fmt.Fprintf(w, " Records       : %d\n", r.Records)
	fmt.Fprintf(w, " Batches       : %d\n", r.Batches)
	fmt.Fprintf(w, " Payload Bytes : %d\n", r.Bytes)
	fmt.Fprintf(w, " Duration      : %v\n", r.Duration)
	fmt.Fprintf(w, " Throughput    : %.2f rec/sec\n", r.Throughput())
	fmt.Fprintf(w, "-------------------------------------\n")
}
