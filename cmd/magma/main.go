package main

import (
	"fmt"
	"os"

	"magma-go/pkg/config"
	"magma-go/pkg/log"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"
)

// Set at build time.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

const configKey = "config"

func newApp() *cli.App {
	return &cli.App{
		Name:    "magma",
		Usage:   "GOST 28147-89 (Magma) block cipher tool",
		Version: fmt.Sprintf("%s (built %s)", Version, BuildTime),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a YAML configuration `FILE` (default: magma.yaml in ., /etc/magma-go, ~/.magma-go)",
			},
			&cli.StringFlag{
				Name:  "log-db",
				Usage: "SQLite log database `PATH`, relative to ~/.magma-go; \"none\" disables it",
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "Log debug output to stderr instead of the log database",
			},
		},
		Before: setup,
		After: func(c *cli.Context) error {
			return log.Close()
		},
		Commands: []*cli.Command{
			encryptCommand,
			decryptCommand,
			macCommand,
			selftestCommand,
			benchCommand,
			serveCommand,
			logsCommand,
		},
	}
}

// setup loads the configuration and wires logging before any command runs.
func setup(c *cli.Context) error {
	overrides := map[string]any{}
	if c.IsSet("log-db") {
		overrides["log_db"] = c.String("log-db")
	}
	cfg, err := config.LoadWithOverrides(c.String("config"), overrides)
	if err != nil {
		return cli.Exit(fmt.Sprintf("Error loading configuration: %v", err), 1)
	}
	c.App.Metadata = map[string]any{configKey: cfg}

	switch {
	case c.Bool("verbose"):
		log.SetStd()
		log.SetLevel(zerolog.DebugLevel)
	case cfg.LogDB != "" && cfg.LogDB != "none" && c.Args().First() != "logs":
		log.SetLevel(zerolog.InfoLevel)
		if err := log.Init(cfg.LogDB); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: logging disabled: %v\n", err)
		}
	}
	log.Debug().Str("config_file", cfg.ConfigFile).Msg("configuration loaded")
	return nil
}

// baseConfig returns the configuration loaded by setup.
func baseConfig(c *cli.Context) *config.Config {
	if cfg, ok := c.App.Metadata[configKey].(*config.Config); ok {
		return cfg
	}
	return config.DefaultConfig()
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
