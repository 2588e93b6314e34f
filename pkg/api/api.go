// Package api serves the mode layer over HTTP.
package api

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"magma-go/pkg/log"
	"magma-go/pkg/modes"
	"magma-go/pkg/selftest"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

const DefaultBodyLimit = "16M"

// Defaults apply when a request leaves the matching query parameter out.
type Defaults struct {
	Mode    modes.Mode
	Padding modes.Padding
	TagSize int
	Workers int
}

type Server struct {
	Api      *echo.Echo
	cipher   modes.BlockCipher
	defaults Defaults
}

type macResponse struct {
	Tag     string `json:"tag"`
	TagSize int    `json:"tag_size"`
}

func NewServer(c modes.BlockCipher, defaults Defaults) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	s := &Server{Api: e, cipher: c, defaults: defaults}

	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit(DefaultBodyLimit))
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			log.Info().
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Msg("api request")
			return nil
		},
	}))

	v1 := e.Group("/v1")
	v1.POST("/encrypt", s.handleProcess(modes.Encrypt))
	v1.POST("/decrypt", s.handleProcess(modes.Decrypt))
	v1.POST("/mac", s.handleMAC)
	v1.GET("/selftest", s.handleSelfTest)
	return s
}

// Run blocks serving on addr until Shutdown.
func (s *Server) Run(addr string) error {
	log.Info().Str("addr", addr).Msg("api listening")
	if err := s.Api.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("api: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.Api.Shutdown(ctx)
}

func badRequest(err error) error {
	return echo.NewHTTPError(http.StatusBadRequest, err.Error())
}

// modeContext builds a mode context from the query, falling back to defaults.
func (s *Server) modeContext(c echo.Context, mode modes.Mode) (*modes.Context, error) {
	padding := s.defaults.Padding
	if p := c.QueryParam("padding"); p != "" {
		var err error
		if padding, err = modes.ParsePadding(p); err != nil {
			return nil, err
		}
	}
	tagSize := s.defaults.TagSize
	if ts := c.QueryParam("tag_size"); ts != "" {
		n, err := strconv.Atoi(ts)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", modes.ErrInvalidTagSize, ts)
		}
		tagSize = n
	}
	if tagSize == 0 {
		tagSize = modes.DefaultTagSize
	}
	opts := []modes.Option{
		modes.WithPadding(padding),
		modes.WithTagSize(tagSize),
		modes.WithWorkers(s.defaults.Workers),
	}
	if gc := c.QueryParam("gost_cycle"); gc != "" {
		on, err := strconv.ParseBool(gc)
		if err != nil {
			return nil, fmt.Errorf("gost_cycle: %w", err)
		}
		if on {
			opts = append(opts, modes.WithGOSTCycle())
		}
	}
	return modes.NewContext(s.cipher, mode, opts...)
}

func (s *Server) handleProcess(op modes.Operation) echo.HandlerFunc {
	return func(c echo.Context) error {
		mode := s.defaults.Mode
		if m := c.QueryParam("mode"); m != "" {
			var err error
			if mode, err = modes.ParseMode(m); err != nil {
				return badRequest(err)
			}
		}
		ctx, err := s.modeContext(c, mode)
		if err != nil {
			return badRequest(err)
		}

		var iv []byte
		if ivHex := c.QueryParam("iv"); ivHex != "" {
			if iv, err = hex.DecodeString(ivHex); err != nil {
				return badRequest(fmt.Errorf("%w: %v", modes.ErrInvalidIV, err))
			}
		}

		body, err := io.ReadAll(c.Request().Body)
		if err != nil {
			return badRequest(err)
		}
		out, err := ctx.Process(op, iv, body)
		if err != nil {
			return badRequest(err)
		}
		return c.Blob(http.StatusOK, echo.MIMEOctetStream, out)
	}
}

func (s *Server) handleMAC(c echo.Context) error {
	ctx, err := s.modeContext(c, modes.MAC)
	if err != nil {
		return badRequest(err)
	}
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return badRequest(err)
	}
	tag, err := ctx.Sum(body)
	if err != nil {
		return badRequest(err)
	}
	return c.JSON(http.StatusOK, macResponse{Tag: hex.EncodeToString(tag), TagSize: len(tag)})
}

func (s *Server) handleSelfTest(c echo.Context) error {
	report := selftest.Run()
	status := http.StatusOK
	if !report.Passed {
		status = http.StatusInternalServerError
	}
	return c.JSON(status, report)
}
