package modes

import "golang.org/x/sync/errgroup"

// minBlocksPerWorker keeps small buffers on the calling goroutine.
const minBlocksPerWorker = 64

// forEachBlock calls fn for blocks 0..n-1. fn must only touch its own
// block of output, so ranges can run on separate goroutines.
func (ctx *Context) forEachBlock(n int, fn func(i int)) {
	workers := ctx.workers
	if workers > n/minBlocksPerWorker {
		workers = n / minBlocksPerWorker
	}
	if workers <= 1 {
		for i := 0; i < n; i++ {
			fn(i)
		}
		return
	}

	var g errgroup.Group
	per := (n + workers - 1) / workers
	for start := 0; start < n; start += per {
		end := min(start+per, n)
		g.Go(func() error {
			for i := start; i < end; i++ {
				fn(i)
			}
			return nil
		})
	}
	_ = g.Wait()
}
