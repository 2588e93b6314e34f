package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"magma-go/pkg/api"
	"magma-go/pkg/log"

	"github.com/urfave/cli/v2"
)

var serveCommand = &cli.Command{
	Name:  "serve",
	Usage: "Serve encrypt, decrypt, mac and selftest over HTTP",
	Flags: append(cipherFlags(),
		&cli.StringFlag{Name: "listen", Aliases: []string{"l"}, Usage: "Listen `ADDR` (default api_listen_address)"},
	),
	Action: serveCmd,
}

func serveCmd(c *cli.Context) error {
	cfg, err := commandConfig(c)
	if err != nil {
		return cli.Exit(fmt.Sprintf("Error: %v", err), 1)
	}
	cph, err := cfg.Cipher()
	if err != nil {
		return cli.Exit(fmt.Sprintf("Error: %v", err), 1)
	}
	mode, _ := cfg.ModeValue()
	padding, _ := cfg.PaddingValue()

	srv := api.NewServer(cph, api.Defaults{
		Mode:    mode,
		Padding: padding,
		TagSize: cfg.TagSize,
		Workers: cfg.Workers,
	})

	addr := cfg.APIListenAddr
	if c.IsSet("listen") {
		addr = c.String("listen")
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.Printf("received signal %s, shutting down", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Error().Err(err).Msg("api shutdown")
		}
	}()

	fmt.Fprintf(c.App.Writer, "magma api listening on %s\n", addr)
	if err := srv.Run(addr); err != nil {
		return cli.Exit(fmt.Sprintf("Error: %v", err), 1)
	}
	return nil
}
