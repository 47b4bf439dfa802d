package main

import (
	"context"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/downfa11-org/segmentlog/pkg/bench"
	"github.com/downfa11-org/segmentlog/pkg/config"
	"github.com/downfa11-org/segmentlog/pkg/disk"
	"github.com/downfa11-org/segmentlog/pkg/executor"
	"github.com/downfa11-org/segmentlog/pkg/metrics"
	"github.com/downfa11-org/segmentlog/pkg/raftstore"
	"github.com/downfa11-org/segmentlog/util"
)

const usage = `usage: segctl <command> [flags]

commands:
  verify  -file F [-capacity N]   scan a segment file and report its valid prefix
  dump    -file F [-limit N]      print the valid records of a segment file
  bench   [config flags] [-records N] [-batch N]
                                  append uuid payloads through the raft log store
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	var code int
	switch os.Args[1] {
	case "verify":
		code = runVerify(os.Args[2:])
	case "dump":
		code = runDump(os.Args[2:])
	case "bench":
		code = runBench(os.Args[2:])
	case "help", "-h", "--help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", os.Args[1], usage)
		code = 2
	}
	os.Exit(code)
}

func runVerify(args []string) int {
	fs := flag.NewFlagSet("verify", flag.ExitOnError)
	file := fs.String("file", "", "segment file to verify")
	capacity := fs.Int64("capacity", 0, "segment capacity in bytes (0 = whole file)")
	_ = fs.Parse(args)

	if *file == "" {
		fmt.Fprintln(os.Stderr, "❌ -file is required")
		return 2
	}

	rep, err := disk.InspectFile(*file, *capacity, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ verify failed: %v\n", err)
		return 1
	}

	fmt.Printf("file          : %s\n", rep.Path)
	fmt.Printf("size          : %d\n", rep.Size)
	fmt.Printf("records       : %d\n", rep.Records)
	fmt.Printf("valid prefix  : %d\n", rep.ValidBytes)
	fmt.Printf("trailing bytes: %d\n", rep.TrailingBytes)
	if rep.DirtyTail {
		fmt.Printf("⚠️ dirty tail after %d: %v\n", rep.ValidBytes, rep.StopReason)
		return 1
	}
	fmt.Println("✅ clean")
	return 0
}

func runDump(args []string) int {
	fs := flag.NewFlagSet("dump", flag.ExitOnError)
	file := fs.String("file", "", "segment file to dump")
	limit := fs.Int("limit", 0, "maximum records to print (0 = all)")
	width := fs.Int("width", 16, "payload bytes shown per record")
	_ = fs.Parse(args)

	if *file == "" {
		fmt.Fprintln(os.Stderr, "❌ -file is required")
		return 2
	}

	errLimit := errors.New("limit reached")
	printed := 0
	_, err := disk.InspectFile(*file, 0, func(off int64, data []byte) error {
		if *limit > 0 && printed >= *limit {
			return errLimit
		}
		prefix := data
		if len(prefix) > *width {
			prefix = prefix[:*width]
		}
		fmt.Printf("%10d  len=%-8d %s\n", off, len(data), hex.EncodeToString(prefix))
		printed++
		return nil
	})
	if err != nil && err != errLimit {
		fmt.Fprintf(os.Stderr, "❌ dump failed: %v\n", err)
		return 1
	}
	return 0
}

func runBench(args []string) int {
	var benchArgs, cfgArgs []string
	records, batch := 10000, 100
	for i := 0; i < len(args); i++ {
		name := strings.TrimLeft(args[i], "-")
		switch {
		case name == "records" || name == "batch":
			benchArgs = append(benchArgs, args[i])
			if i+1 < len(args) {
				benchArgs = append(benchArgs, args[i+1])
				i++
			}
		case strings.HasPrefix(name, "records=") || strings.HasPrefix(name, "batch="):
			benchArgs = append(benchArgs, args[i])
		default:
			cfgArgs = append(cfgArgs, args[i])
		}
	}
	fs := flag.NewFlagSet("bench", flag.ExitOnError)
	fs.IntVar(&records, "records", records, "records to append")
	fs.IntVar(&batch, "batch", batch, "records per StoreLogs batch")
	_ = fs.Parse(benchArgs)

	cfg, err := config.LoadConfig(cfgArgs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ Failed to load config: %v\n", err)
		return 2
	}

	if cfg.EnableExporter {
		srv := metrics.StartMetricsServer(cfg.ExporterPort)
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			_ = srv.Shutdown(ctx)
		}()
	}

	pool := executor.NewWorkerPool("segment-writer", executor.Config{
		Workers:   cfg.WriteWorkers,
		QueueSize: cfg.WriteQueueSize,
	})
	if err := pool.Start(); err != nil {
		util.Error("start write pool: %v", err)
		return 1
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := pool.Stop(ctx); err != nil {
			util.Error("stop write pool: %v", err)
		}
	}()

	dm := disk.NewDiskManager(cfg, pool)
	if err := dm.Open(); err != nil {
		util.Error("open %s: %v", cfg.LogDir, err)
		return 1
	}
	defer func() {
		if err := dm.CloseAll(); err != nil {
			util.Error("close segments: %v", err)
		}
	}()

	store, err := raftstore.NewLogStore(dm, cfg)
	if err != nil {
		util.Error("open log store: %v", err)
		return 1
	}

	fmt.Printf("🚀 Appending %d records (batch %d) to %s\n", records, batch, cfg.LogDir)
	res, err := bench.NewBenchmarkRunner(store, records, batch).Run()
	res.Print(os.Stdout)
	if err != nil {
		util.Error("%v", err)
		return 1
	}
	return 0
}
