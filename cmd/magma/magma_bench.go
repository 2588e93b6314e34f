package main

import (
	"fmt"

	"magma-go/pkg/benchmark"
	"magma-go/pkg/modes"

	"github.com/urfave/cli/v2"
)

var benchCommand = &cli.Command{
	Name:      "bench",
	Usage:     "Measure encryption throughput",
	UsageText: "magma bench [--target block|mode|pipeline] [--mode MODE|all] [--size BYTES] [--iterations N] [--output FILE]",
	Flags: append(cipherFlags(),
		&cli.StringFlag{Name: "target", Value: "mode", Usage: "Layer to measure: block, mode, pipeline"},
		&cli.IntFlag{Name: "size", Value: benchmark.DefaultOptions().Size, Usage: "Buffer size in `BYTES`"},
		&cli.IntFlag{Name: "iterations", Aliases: []string{"n"}, Value: benchmark.DefaultOptions().Iterations, Usage: "Number of iterations"},
		&cli.BoolFlag{Name: "all", Usage: "Measure every mode"},
		&cli.StringFlag{Name: "compress", Usage: "Compression for the pipeline target"},
		&cli.StringFlag{Name: "output", Usage: "Write results to a CSV `FILE`"},
	),
	Action: benchCmd,
}

func benchCmd(c *cli.Context) error {
	cfg, err := commandConfig(c)
	if err != nil {
		return cli.Exit(fmt.Sprintf("Error: %v", err), 1)
	}
	if cfg.KeyHex == "" && cfg.KeyFile == "" && cfg.Passphrase == "" {
		// Any key will do for timing.
		cfg.KeyHex = fmt.Sprintf("%064x", 0)
	}
	cph, err := cfg.Cipher()
	if err != nil {
		return cli.Exit(fmt.Sprintf("Error: %v", err), 1)
	}

	opts := benchmark.DefaultOptions()
	if opts.Target, err = benchmark.ParseTarget(c.String("target")); err != nil {
		return cli.Exit(fmt.Sprintf("Error: %v", err), 1)
	}
	if opts.Mode, err = cfg.ModeValue(); err != nil {
		return cli.Exit(fmt.Sprintf("Error: %v", err), 1)
	}
	if opts.Padding, err = modes.ParsePadding(cfg.Padding); err != nil {
		return cli.Exit(fmt.Sprintf("Error: %v", err), 1)
	}
	opts.Size = c.Int("size")
	opts.Iterations = c.Int("iterations")
	opts.Workers = cfg.Workers
	opts.Compress = cfg.Compress

	var results []*benchmark.Result
	if c.Bool("all") {
		results, err = benchmark.RunAll(cph, opts)
	} else {
		var res *benchmark.Result
		if res, err = benchmark.Run(cph, opts); err == nil {
			results = append(results, res)
		}
	}
	if err != nil {
		return cli.Exit(fmt.Sprintf("Error: %v", err), 1)
	}
	for _, r := range results {
		benchmark.PrintResults(c.App.Writer, r)
	}

	if out := c.String("output"); out != "" {
		if err := benchmark.SaveResultsToFile(results, out); err != nil {
			return cli.Exit(fmt.Sprintf("Error saving results: %v", err), 1)
		}
		fmt.Fprintf(c.App.Writer, "Results saved to %s\n", out)
	}
	return nil
}
