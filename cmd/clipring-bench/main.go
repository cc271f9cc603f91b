// clipring-bench is a benchmark and stress test for the clipring library.
// It measures sustained write throughput, clip carve/drain/reconcile cycles,
// and a caller-serialized producer/exporter pipeline.
package main

import (
	"bytes"
	"crypto/rand"
	"fmt"
	"io"
	"os"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/phroun/clipring"
)

const (
	ringSize   = 64 * 1024 * 1024
	frameSize  = 64 * 1024
	writeTotal = 1 << 30 // 1 GB of traffic
	clipSize   = 4 * 1024 * 1024
	clipCycles = 200
)

type BenchResult struct {
	Name     string
	Duration time.Duration
	Bytes    int64
	Extra    string
}

func (r BenchResult) String() string {
	if r.Bytes > 0 {
		mbps := float64(r.Bytes) / (1024 * 1024) / r.Duration.Seconds()
		if r.Extra != "" {
			return fmt.Sprintf("%-40s %12v  (%.1f MB/s) %s", r.Name, r.Duration.Round(time.Millisecond), mbps, r.Extra)
		}
		return fmt.Sprintf("%-40s %12v  (%.1f MB/s)", r.Name, r.Duration.Round(time.Millisecond), mbps)
	}
	return fmt.Sprintf("%-40s %12v  %s", r.Name, r.Duration.Round(time.Millisecond), r.Extra)
}

func main() {
	fmt.Println("clipring Benchmark and Stress Test")
	fmt.Println("==================================")
	fmt.Printf("Ring size: %d MB\n", ringSize/(1024*1024))
	fmt.Printf("Go version: %s\n", runtime.Version())
	fmt.Printf("GOMAXPROCS: %d\n", runtime.GOMAXPROCS(0))
	fmt.Println()

	frame := make([]byte, frameSize)
	if _, err := rand.Read(frame); err != nil {
		fmt.Printf("Failed to generate test data: %v\n", err)
		os.Exit(1)
	}

	var results []BenchResult
	runBench := func(name string, fn func() BenchResult) {
		fmt.Printf("  %-40s ", name+"...")
		result := fn()
		fmt.Printf("%v\n", result.Duration.Round(time.Millisecond))
		results = append(results, result)
	}

	fmt.Println("Running benchmarks...")
	runBench("Sustained write (forced overwrite)", func() BenchResult {
		return benchSustainedWrite(frame)
	})
	runBench("Clip carve/drain/reconcile cycle", func() BenchResult {
		return benchClipCycle(frame)
	})
	runBench("Concurrent producer + zstd exporter", func() BenchResult {
		return benchConcurrentExport(frame)
	})

	fmt.Println()
	fmt.Println("Results:")
	for _, r := range results {
		fmt.Println(r)
	}
}

func benchSustainedWrite(frame []byte) BenchResult {
	ring, err := clipring.New(clipring.Options{Size: ringSize})
	if err != nil {
		fmt.Printf("New failed: %v\n", err)
		os.Exit(1)
	}
	start := time.Now()
	var written int64
	for written < writeTotal {
		ring.Write(frame)
		written += int64(len(frame))
	}
	return BenchResult{
		Name:     "Sustained write (forced overwrite)",
		Duration: time.Since(start),
		Bytes:    written,
		Extra:    fmt.Sprintf("health=%d MB", ring.BufferHealth()/(1024*1024)),
	}
}

func benchClipCycle(frame []byte) BenchResult {
	ring, err := clipring.New(clipring.Options{Size: ringSize})
	if err != nil {
		fmt.Printf("New failed: %v\n", err)
		os.Exit(1)
	}
	buf := make([]byte, 256*1024)
	start := time.Now()
	var drained int64
	for i := 0; i < clipCycles; i++ {
		for ring.BufferHealth() < clipSize {
			ring.Write(frame)
		}
		clip, err := ring.BeginClip(clipSize)
		if err != nil {
			fmt.Printf("BeginClip failed: %v\n", err)
			os.Exit(1)
		}
		for {
			n, err := clip.Read(buf)
			drained += int64(n)
			if err != nil {
				break
			}
		}
		if err := clip.Close(); err != nil {
			fmt.Printf("Close failed: %v\n", err)
			os.Exit(1)
		}
	}
	return BenchResult{
		Name:     "Clip carve/drain/reconcile cycle",
		Duration: time.Since(start),
		Bytes:    drained,
		Extra:    fmt.Sprintf("%d cycles", clipCycles),
	}
}

// lockedReader serializes reads against the ring mutations happening on the
// producer goroutine. Each Read takes the lock once, so the producer
// interleaves between drain chunks while compression runs outside the lock.
type lockedReader struct {
	mu  *sync.Mutex
	src io.Reader
}

func (l *lockedReader) Read(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.src.Read(p)
}

// benchConcurrentExport drives a producer goroutine and an exporter
// goroutine against one ring. The ring itself is single-threaded, so every
// access, including each drain chunk of an open clip, goes through one
// mutex; only the compression work runs outside it.
func benchConcurrentExport(frame []byte) BenchResult {
	ring, err := clipring.New(clipring.Options{Size: ringSize})
	if err != nil {
		fmt.Printf("New failed: %v\n", err)
		os.Exit(1)
	}

	var mu sync.Mutex
	var g errgroup.Group
	start := time.Now()
	var exported int64

	g.Go(func() error {
		var written int64
		for written < writeTotal/4 {
			mu.Lock()
			ring.Write(frame)
			mu.Unlock()
			written += int64(len(frame))
		}
		return nil
	})

	g.Go(func() error {
		var sink bytes.Buffer
		for i := 0; i < clipCycles/4; i++ {
			mu.Lock()
			clip, err := ring.BeginClip(clipSize)
			mu.Unlock()
			if err != nil {
				time.Sleep(time.Millisecond)
				continue
			}
			sink.Reset()
			cw := clipring.NewClipWriter(&sink, clipring.CodecZstd)
			n, err := cw.WriteFrom(&lockedReader{mu: &mu, src: clip})
			if err != nil {
				return err
			}
			exported += n
			mu.Lock()
			err = clip.Close()
			mu.Unlock()
			if err != nil {
				return err
			}
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		fmt.Printf("pipeline failed: %v\n", err)
		os.Exit(1)
	}
	return BenchResult{
		Name:     "Concurrent producer + zstd exporter",
		Duration: time.Since(start),
		Bytes:    exported,
		Extra:    "exported raw bytes",
	}
}
