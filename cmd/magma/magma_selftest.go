package main

import (
	"encoding/json"
	"fmt"

	"magma-go/pkg/selftest"

	"github.com/urfave/cli/v2"
)

var selftestCommand = &cli.Command{
	Name:  "selftest",
	Usage: "Check the cipher against the published known-answer vectors",
	Flags: []cli.Flag{
		&cli.BoolFlag{Name: "json", Usage: "Print the report as JSON"},
	},
	Action: selftestCmd,
}

func selftestCmd(c *cli.Context) error {
	report := selftest.Run()
	w := c.App.Writer

	if c.Bool("json") {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return err
		}
	} else {
		for _, r := range report.Results {
			if r.Passed {
				fmt.Fprintf(w, "PASS  %s\n", r.Name)
				continue
			}
			fmt.Fprintf(w, "FAIL  %s: got %s, want %s", r.Name, r.Got, r.Want)
			if r.Err != "" {
				fmt.Fprintf(w, " (%s)", r.Err)
			}
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "%d vectors in %v\n", len(report.Results), report.Duration)
	}

	if !report.Passed {
		return cli.Exit(fmt.Sprintf("self test failed: %d of %d vectors", len(report.Failed()), len(report.Results)), 1)
	}
	return nil
}
