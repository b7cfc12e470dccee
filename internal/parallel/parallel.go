// Package parallel splits independent index ranges across goroutines for the
// CPU kernels.
package parallel

import (
	"runtime"
	"sync"
)

// Config controls how work is split.
type Config struct {
	Workers  int // Upper bound on concurrent goroutines; <= 1 runs inline.
	MinChunk int // Minimum indices per goroutine.
}

// DefaultConfig uses every available processor.
func DefaultConfig() Config {
	return Config{
		Workers:  runtime.GOMAXPROCS(0),
		MinChunk: 16,
	}
}

// Sequential runs everything on the calling goroutine.
func Sequential() Config {
	return Config{Workers: 1}
}

// Chunks covers [0, n) with contiguous [start, end) ranges and calls f once
// per range. Ranges run concurrently; Chunks returns when all are done.
func (cfg Config) Chunks(n int, f func(start, end int)) {
	if n <= 0 {
		return
	}
	minChunk := max(cfg.MinChunk, 1)
	if cfg.Workers <= 1 || n < 2*minChunk {
		f(0, n)
		return
	}

	size := max((n+cfg.Workers-1)/cfg.Workers, minChunk)
	var wg sync.WaitGroup
	for start := 0; start < n; start += size {
		end := min(start+size, n)
		wg.Add(1)
		go func() {
			defer wg.Done()
			f(start, end)
		}()
	}
	wg.Wait()
}

// For calls f(i) for every i in [0, n).
func (cfg Config) For(n int, f func(i int)) {
	cfg.Chunks(n, func(start, end int) {
		for i := start; i < end; i++ {
			f(i)
		}
	})
}
