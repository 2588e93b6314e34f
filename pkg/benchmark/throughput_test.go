package benchmark

import (
	"bytes"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"magma-go/pkg/magma"
	"magma-go/pkg/modes"
)

func TestRunTargets(t *testing.T) {
	c, _ := magma.NewCipher(make([]byte, magma.KeySize))
	for _, target := range []Target{TargetBlock, TargetMode, TargetPipeline} {
		opts := DefaultOptions()
		opts.Target = target
		opts.Size = 4096
		opts.Iterations = 5
		res, err := Run(c, opts)
		if err != nil {
			t.Fatalf("%v: Run: %v", target, err)
		}
		if res.Iterations != 5 || res.Size != 4096 || res.Target != target {
			t.Errorf("%v: result fields = %+v", target, res)
		}
		if res.MinLatency > res.MaxLatency || res.MedianLatency > res.MaxLatency {
			t.Errorf("%v: inconsistent latencies %+v", target, res)
		}
	}
}

func TestRunRejectsBadOptions(t *testing.T) {
	c := magma.New()
	if _, err := Run(c, &Options{Target: TargetMode, Mode: modes.ECB, Size: 0, Iterations: 1}); err == nil {
		t.Error("zero size accepted")
	}
	if _, err := Run(c, &Options{Target: TargetMode, Mode: modes.ECB, Padding: modes.PaddingNone, Size: 7, Iterations: 1}); err == nil {
		t.Error("unaligned ECB without padding accepted")
	}
	if _, err := ParseTarget("disk"); err == nil {
		t.Error("unknown target parsed")
	}
}

func TestRunAllAndCSV(t *testing.T) {
	c := magma.New()
	opts := DefaultOptions()
	opts.Size, opts.Iterations = 1024, 3
	results, err := RunAll(c, opts)
	if err != nil {
		t.Fatalf("RunAll: %v", err)
	}
	if len(results) != 5 {
		t.Fatalf("RunAll returned %d results, want 5", len(results))
	}

	var out bytes.Buffer
	PrintResults(&out, results[0])
	if !strings.Contains(out.String(), "Throughput: Mode / ecb") {
		t.Errorf("PrintResults output:\n%s", out.String())
	}

	path := filepath.Join(t.TempDir(), "bench.csv")
	if err := SaveResultsToFile(results, path); err != nil {
		t.Fatalf("SaveResultsToFile: %v", err)
	}
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(rows) != 6 || rows[0][0] != "Target" || rows[5][1] != "mac" {
		t.Errorf("csv rows = %v", rows)
	}
}

type failingCloser struct {
	bytes.Buffer
	err error
}

func (f *failingCloser) Close() error { return f.err }

func TestWriteResultsReportsCloseError(t *testing.T) {
	results := []*Result{{Target: TargetBlock, Mode: modes.ECB, Size: 8, Iterations: 1, Workers: 1}}
	errClose := errors.New("disk full on close")

	wc := &failingCloser{err: errClose}
	if err := writeResults(wc, results); !errors.Is(err, errClose) {
		t.Fatalf("writeResults error = %v, want close error", err)
	}
	if !strings.HasPrefix(wc.String(), "Target,") {
		t.Errorf("csv not written before close: %q", wc.String())
	}

	if err := writeResults(&failingCloser{}, results); err != nil {
		t.Errorf("writeResults with a clean close: %v", err)
	}
}

func TestCalculateStats(t *testing.T) {
	var lat []time.Duration
	for i := 100; i >= 1; i-- {
		lat = append(lat, time.Duration(i))
	}
	r := calculateStats(lat, time.Second)
	if r.MinLatency != 1 || r.MaxLatency != 100 || r.MedianLatency != 51 || r.P95Latency != 96 || r.P99Latency != 100 {
		t.Errorf("stats = %+v", r)
	}
	if r.AvgLatency != 50 {
		t.Errorf("avg = %v, want 50", r.AvgLatency)
	}
}
