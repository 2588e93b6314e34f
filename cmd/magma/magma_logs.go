package main

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"magma-go/pkg/log"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"
)

// timeFormats are tried in order for absolute time specs.
var timeFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// parseTimeSpec reads either a duration back from now ("1h", "2d", "1w")
// or an absolute timestamp in local time.
func parseTimeSpec(spec string, now time.Time) (time.Time, error) {
	if d, err := parseDuration(spec); err == nil {
		return now.Add(-d), nil
	}
	for _, layout := range timeFormats {
		if ts, err := time.ParseInLocation(layout, spec, time.Local); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid time specification: '%s'. Use relative duration (e.g., '1h', '30m', '2d') or absolute format (e.g., '2023-10-27T15:04:05Z')", spec)
}

// parseDuration extends time.ParseDuration with day and week units.
func parseDuration(spec string) (time.Duration, error) {
	units := map[byte]time.Duration{'d': 24 * time.Hour, 'w': 7 * 24 * time.Hour}
	if n := len(spec); n > 1 {
		if unit, ok := units[spec[n-1]]; ok {
			count, err := strconv.Atoi(spec[:n-1])
			if err != nil {
				return 0, err
			}
			return time.Duration(count) * unit, nil
		}
	}
	return time.ParseDuration(spec)
}

const logsCommandHelpTemplate = `NAME:
   {{.HelpName}} - {{.Usage}}

USAGE:
   {{.HelpName}} {{if .UsageText}}{{.UsageText}}{{else}}[command options] argument...{{end}}
{{if .Description}}
DESCRIPTION:
   {{.Description | Indent 4}}
{{end}}
MODES (choose one; defaults to --last if no mode specified):
     --last                 Retrieve the most recent N log entries.
     --since                Retrieve logs since a specific start time up to now.
     --between              Retrieve logs between a specific start and end time.

OPTIONS:
{{range .VisibleFlags}}   {{.}}
{{end}}
TIME SPECIFICATION (<time_spec>):
     1. Relative Duration back from now: "5m", "1h30m", "2d", "1w".
     2. Absolute Timestamp: "2023-10-27T15:04:05Z", "2023-10-27 10:00:00",
        "2023-10-27". Local time unless a zone is given.

EXAMPLES:
     magma logs -n 50
     magma logs --since -s 1h -l 500 --pretty
     magma logs -f /tmp/other.db --between -s 2d -e 1d
`

var logsCommand = &cli.Command{
	Name:               "logs",
	Usage:              "Retrieve JSON log entries from the log database",
	UsageText:          "magma logs [command options] [--last|--since|--between] [mode options]",
	Description:        `Reads the SQLite log database (log_db from the configuration unless -f is given).`,
	CustomHelpTemplate: logsCommandHelpTemplate,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "dbfile",
			Aliases: []string{"f"},
			Usage:   "SQLite log database `PATH`",
		},
		&cli.BoolFlag{
			Name:    "pretty",
			Aliases: []string{"p"},
			Usage:   "Print entries in console format instead of raw JSON",
		},
		&cli.BoolFlag{Name: "last", Usage: "Mode: Retrieve the most recent N log entries (default)"},
		&cli.BoolFlag{Name: "since", Usage: "Mode: Retrieve logs since a specific start time"},
		&cli.BoolFlag{Name: "between", Usage: "Mode: Retrieve logs between a specific start and end time"},
		&cli.IntFlag{
			Name:    "count",
			Aliases: []string{"n"},
			Usage:   "Number of entries for --last mode `NUMBER`",
			Value:   100,
		},
		&cli.StringFlag{
			Name:    "start",
			Aliases: []string{"s"},
			Usage:   "Start time for --since/--between `TIME_SPEC`",
		},
		&cli.StringFlag{
			Name:    "end",
			Aliases: []string{"e"},
			Usage:   "End time for --between `TIME_SPEC`",
		},
		&cli.IntFlag{
			Name:    "limit",
			Aliases: []string{"l"},
			Usage:   "Max entries for --since/--between `NUMBER`",
			Value:   1000,
		},
	},
	Action: logsCmd,
}

func logsCmd(c *cli.Context) error {
	dbFile := c.String("dbfile")
	if dbFile == "" {
		dbFile = baseConfig(c).LogDB
	}
	if dbFile == "" || dbFile == "none" {
		return cli.Exit("Error: no log database configured; pass --dbfile", 1)
	}

	isLast, isSince, isBetween := c.Bool("last"), c.Bool("since"), c.Bool("between")
	modeCount := 0
	for _, set := range []bool{isLast, isSince, isBetween} {
		if set {
			modeCount++
		}
	}
	if modeCount == 0 {
		isLast = true
	} else if modeCount > 1 {
		return cli.Exit("Error: Only one mode flag (--last, --since, --between) can be specified at a time.", 1)
	}

	if err := log.Init(dbFile); err != nil && !errors.Is(err, log.ErrAlreadyInitialized) {
		return cli.Exit(fmt.Sprintf("Error opening log database: %v", err), 1)
	}
	defer log.Close()

	now := time.Now()
	var results []log.LogEntry
	var err error
	switch {
	case isLast:
		if c.IsSet("start") || c.IsSet("end") {
			fmt.Fprintln(c.App.ErrWriter, "Warning: --start (-s) and --end (-e) flags are ignored in --last mode.")
		}
		count := c.Int("count")
		if count <= 0 {
			return cli.Exit("Error: --count (-n) must be a positive number.", 1)
		}
		results, err = log.GetLastNLogs(count)

	case isSince:
		if !c.IsSet("start") {
			return cli.Exit("Error: --start (-s) flag is required for --since mode.", 1)
		}
		start, perr := parseTimeSpec(c.String("start"), now)
		if perr != nil {
			return cli.Exit(fmt.Sprintf("Error parsing start time: %v", perr), 1)
		}
		results, err = log.GetLogsSince(start, c.Int("limit"))

	case isBetween:
		if !c.IsSet("start") || !c.IsSet("end") {
			return cli.Exit("Error: --start (-s) and --end (-e) are required for --between mode.", 1)
		}
		start, perr := parseTimeSpec(c.String("start"), now)
		if perr != nil {
			return cli.Exit(fmt.Sprintf("Error parsing start time: %v", perr), 1)
		}
		end, perr := parseTimeSpec(c.String("end"), now)
		if perr != nil {
			return cli.Exit(fmt.Sprintf("Error parsing end time: %v", perr), 1)
		}
		if start.After(end) {
			fmt.Fprintf(c.App.ErrWriter, "Warning: Start time (%s) is after end time (%s).\n", start.Format(time.RFC3339), end.Format(time.RFC3339))
		}
		results, err = log.GetLogsBetween(start, end, c.Int("limit"))
	}
	if err != nil {
		return cli.Exit(fmt.Sprintf("Error retrieving logs: %v", err), 1)
	}

	if len(results) == 0 {
		fmt.Fprintln(c.App.ErrWriter, "No log entries found matching the criteria.")
		return nil
	}
	return printEntries(c, results)
}

func printEntries(c *cli.Context, entries []log.LogEntry) error {
	if !c.Bool("pretty") {
		for _, e := range entries {
			fmt.Fprintln(c.App.Writer, e.LogData)
		}
		return nil
	}
	console := zerolog.ConsoleWriter{Out: c.App.Writer, TimeFormat: time.RFC3339, NoColor: true}
	for _, e := range entries {
		if _, err := console.Write([]byte(e.LogData)); err != nil {
			// Not JSON; show it untouched.
			fmt.Fprintln(c.App.Writer, e.LogData)
		}
	}
	return nil
}
