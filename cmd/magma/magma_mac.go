package main

import (
	"crypto/subtle"
	"encoding/hex"
	"fmt"

	"magma-go/pkg/modes"

	"github.com/urfave/cli/v2"
)

var macCommand = &cli.Command{
	Name:      "mac",
	Usage:     "Compute or verify the MAC of a file or stdin",
	UsageText: "magma mac [--in FILE] [--tag-size N] [--gost-cycle] [--verify HEX] [--key HEX | --passphrase TEXT]",
	Flags: append(append(ioFlags(), cipherFlags()...),
		&cli.IntFlag{Name: "tag-size", Aliases: []string{"t"}, Usage: "Tag length in `BYTES` (1..8)"},
		&cli.StringFlag{Name: "verify", Usage: "Compare against an expected `HEX` tag instead of printing"},
		&cli.BoolFlag{Name: "gost-cycle", Usage: "Chain through the 16-round GOST 28147-89 cycle instead of full encryption"},
	),
	Action: macCmd,
}

func macCmd(c *cli.Context) error {
	cfg, err := commandConfig(c)
	if err != nil {
		return cli.Exit(fmt.Sprintf("Error: %v", err), 1)
	}
	cph, err := cfg.Cipher()
	if err != nil {
		return cli.Exit(fmt.Sprintf("Error: %v", err), 1)
	}
	opts := []modes.Option{modes.WithTagSize(cfg.TagSize)}
	if c.Bool("gost-cycle") {
		opts = append(opts, modes.WithGOSTCycle())
	}
	ctx, err := modes.NewContext(cph, modes.MAC, opts...)
	if err != nil {
		return cli.Exit(fmt.Sprintf("Error: %v", err), 1)
	}
	input, err := readInput(c)
	if err != nil {
		return cli.Exit(fmt.Sprintf("Error: %v", err), 1)
	}
	tag, err := ctx.Sum(input)
	if err != nil {
		return cli.Exit(fmt.Sprintf("Error: %v", err), 1)
	}

	if c.IsSet("verify") {
		want, err := hex.DecodeString(c.String("verify"))
		if err != nil {
			return cli.Exit(fmt.Sprintf("Error: --verify is not hex: %v", err), 1)
		}
		if subtle.ConstantTimeCompare(tag, want) != 1 {
			return cli.Exit("MAC mismatch", 2)
		}
		fmt.Fprintln(c.App.Writer, "OK")
		return nil
	}
	return writeOutput(c, []byte(hex.EncodeToString(tag)+"\n"))
}
