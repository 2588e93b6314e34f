// Package benchmark measures cipher throughput at three levels: the raw
// block function, the mode layer and the full payload pipeline.
package benchmark

import (
	"crypto/rand"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"time"

	"magma-go/pkg/log"
	"magma-go/pkg/magma"
	"magma-go/pkg/modes"
	"magma-go/pkg/transform"
)

// Target selects which layer is measured.
type Target int

const (
	TargetBlock    Target = iota // EncryptBlock in a loop
	TargetMode                   // modes.Context over a buffer
	TargetPipeline               // compress, encrypt and mac
)

func (t Target) String() string {
	switch t {
	case TargetBlock:
		return "Block"
	case TargetMode:
		return "Mode"
	case TargetPipeline:
		return "Pipeline"
	default:
		return "Unknown"
	}
}

func ParseTarget(s string) (Target, error) {
	switch s {
	case "block":
		return TargetBlock, nil
	case "mode":
		return TargetMode, nil
	case "pipeline":
		return TargetPipeline, nil
	default:
		return 0, fmt.Errorf("unknown target: %s", s)
	}
}

type Options struct {
	Target     Target
	Mode       modes.Mode
	Padding    modes.Padding
	Size       int // bytes per iteration
	Iterations int
	Workers    int
	Compress   string // pipeline only
}

func DefaultOptions() *Options {
	return &Options{
		Target:     TargetMode,
		Mode:       modes.CBC,
		Padding:    modes.PaddingPKCS7,
		Size:       64 * 1024,
		Iterations: 200,
		Workers:    1,
	}
}

type Result struct {
	Target     Target
	Mode       modes.Mode
	Size       int
	Iterations int
	Workers    int

	TotalTime  time.Duration
	MBPerSec   float64
	NsPerBlock float64

	MinLatency    time.Duration
	AvgLatency    time.Duration
	MedianLatency time.Duration
	P95Latency    time.Duration
	P99Latency    time.Duration
	MaxLatency    time.Duration
}

// Run measures one configuration with c.
func Run(c *magma.Cipher, opts *Options) (*Result, error) {
	if opts.Size <= 0 || opts.Iterations <= 0 {
		return nil, fmt.Errorf("benchmark: size and iterations must be positive")
	}
	op, err := operation(c, opts)
	if err != nil {
		return nil, err
	}

	latencies := make([]time.Duration, 0, opts.Iterations)
	start := time.Now()
	for i := 0; i < opts.Iterations; i++ {
		t0 := time.Now()
		if err := op(); err != nil {
			return nil, fmt.Errorf("benchmark: iteration %d: %w", i, err)
		}
		latencies = append(latencies, time.Since(t0))
	}
	total := time.Since(start)

	res := calculateStats(latencies, total)
	res.Target, res.Mode, res.Size = opts.Target, opts.Mode, opts.Size
	res.Iterations, res.Workers = opts.Iterations, opts.Workers
	if total > 0 {
		bytes := float64(opts.Size) * float64(opts.Iterations)
		res.MBPerSec = bytes / total.Seconds() / (1 << 20)
		res.NsPerBlock = float64(total.Nanoseconds()) / (bytes / magma.BlockSize)
	}
	log.Debug().Str("target", opts.Target.String()).Str("mode", opts.Mode.String()).
		Float64("mb_per_sec", res.MBPerSec).Msg("benchmark done")
	return res, nil
}

// operation returns the work for one iteration.
func operation(c *magma.Cipher, opts *Options) (func() error, error) {
	buf := make([]byte, opts.Size)
	if _, err := rand.Read(buf); err != nil {
		return nil, err
	}
	iv := make([]byte, magma.BlockSize)

	switch opts.Target {
	case TargetBlock:
		blocks := (opts.Size + magma.BlockSize - 1) / magma.BlockSize
		return func() error {
			var v uint64
			for i := 0; i < blocks; i++ {
				v = c.EncryptBlock(v)
			}
			return nil
		}, nil
	case TargetMode:
		if opts.Mode == modes.MAC {
			ctx, err := modes.NewContext(c, modes.MAC)
			if err != nil {
				return nil, err
			}
			return func() error { _, err := ctx.Sum(buf); return err }, nil
		}
		ctx, err := modes.NewContext(c, opts.Mode, modes.WithPadding(opts.Padding), modes.WithWorkers(opts.Workers))
		if err != nil {
			return nil, err
		}
		return func() error { _, err := ctx.Encrypt(iv, buf); return err }, nil
	case TargetPipeline:
		p, err := transform.NewPipeline(transform.PipelineOptions{
			Cipher:   c,
			Mode:     opts.Mode,
			Padding:  opts.Padding,
			Workers:  opts.Workers,
			Compress: opts.Compress,
			TagSize:  modes.DefaultTagSize,
		})
		if err != nil {
			return nil, err
		}
		return func() error { _, err := p.PrepareOutput(buf); return err }, nil
	default:
		return nil, fmt.Errorf("unknown target: %d", opts.Target)
	}
}

func calculateStats(latencies []time.Duration, total time.Duration) *Result {
	if len(latencies) == 0 {
		return &Result{TotalTime: total}
	}
	slices.Sort(latencies)

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}
	return &Result{
		TotalTime:     total,
		MinLatency:    latencies[0],
		MaxLatency:    latencies[len(latencies)-1],
		AvgLatency:    sum / time.Duration(len(latencies)),
		MedianLatency: latencies[len(latencies)/2],
		P95Latency:    latencies[(len(latencies)*95)/100],
		P99Latency:    latencies[(len(latencies)*99)/100],
	}
}

// RunAll measures every cipher mode with the base options.
func RunAll(c *magma.Cipher, base *Options) ([]*Result, error) {
	var results []*Result
	for _, mode := range []modes.Mode{modes.ECB, modes.CBC, modes.CFB, modes.OFB, modes.MAC} {
		opts := *base
		opts.Mode = mode
		if mode == modes.MAC && opts.Target == TargetPipeline {
			continue
		}
		res, err := Run(c, &opts)
		if err != nil {
			log.Error().Err(err).Str("mode", mode.String()).Msg("benchmark failed")
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}

func PrintResults(w io.Writer, r *Result) {
	fmt.Fprintf(w, "=== Throughput: %s / %s ===\n", r.Target, r.Mode)
	fmt.Fprintf(w, "Buffer Size: %d bytes\n", r.Size)
	fmt.Fprintf(w, "Iterations: %d\n", r.Iterations)
	fmt.Fprintf(w, "Workers: %d\n", r.Workers)
	fmt.Fprintf(w, "Total Time: %v\n", r.TotalTime)
	fmt.Fprintf(w, "Throughput: %.2f MB/s\n", r.MBPerSec)
	fmt.Fprintf(w, "Per Block: %.1f ns\n", r.NsPerBlock)
	fmt.Fprintf(w, "Min Latency: %v\n", r.MinLatency)
	fmt.Fprintf(w, "Avg Latency: %v\n", r.AvgLatency)
	fmt.Fprintf(w, "Median Latency: %v\n", r.MedianLatency)
	fmt.Fprintf(w, "95th Percentile: %v\n", r.P95Latency)
	fmt.Fprintf(w, "99th Percentile: %v\n", r.P99Latency)
	fmt.Fprintf(w, "Max Latency: %v\n", r.MaxLatency)
	fmt.Fprintln(w, "==========================================")
}

var csvHeader = []string{
	"Target", "Mode", "Size", "Iterations", "Workers", "MBPerSec", "NsPerBlock",
	"MinLatency", "AvgLatency", "MedianLatency", "P95Latency", "P99Latency", "MaxLatency", "TotalTime",
}

// SaveResultsToFile writes results as CSV, durations in nanoseconds.
func SaveResultsToFile(results []*Result, filename string) error {
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	return writeResults(f, results)
}

// writeResults writes the CSV to wc and always closes it; a close error is
// reported alongside any write error.
func writeResults(wc io.WriteCloser, results []*Result) (err error) {
	defer func() {
		err = errors.Join(err, wc.Close())
	}()

	w := csv.NewWriter(wc)
	if err := w.Write(csvHeader); err != nil {
		return err
	}
	ns := func(d time.Duration) string { return strconv.FormatInt(d.Nanoseconds(), 10) }
	for _, r := range results {
		err := w.Write([]string{
			r.Target.String(),
			r.Mode.String(),
			strconv.Itoa(r.Size),
			strconv.Itoa(r.Iterations),
			strconv.Itoa(r.Workers),
			strconv.FormatFloat(r.MBPerSec, 'f', 3, 64),
			strconv.FormatFloat(r.NsPerBlock, 'f', 3, 64),
			ns(r.MinLatency),
			ns(r.AvgLatency),
			ns(r.MedianLatency),
			ns(r.P95Latency),
			ns(r.P99Latency),
			ns(r.MaxLatency),
			ns(r.TotalTime),
		})
		if err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
