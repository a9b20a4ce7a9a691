package main

import (
	"context"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/go-go-golems/glazed/pkg/cmds"
	"github.com/go-go-golems/glazed/pkg/cmds/layers"
	"github.com/go-go-golems/glazed/pkg/cmds/parameters"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/go-go-golems/sentient/pkg/inference/tools"
	"github.com/go-go-golems/sentient/pkg/steps/ai/scripted"
	"github.com/go-go-golems/sentient/pkg/toolkit"
)

type ServeCommand struct {
	*cmds.CommandDescription
	app *app
}

var _ cmds.BareCommand = (*ServeCommand)(nil)

func NewServeCommand(a *app) (*ServeCommand, error) {
	sentientLayer, err := NewSentientParameterLayer()
	if err != nil {
		return nil, err
	}
	return &ServeCommand{
		CommandDescription: cmds.NewCommandDescription(
			"serve",
			cmds.WithShort("Serve POST /ask and GET /health"),
			cmds.WithFlags(
				parameters.NewParameterDefinition(
					"addr",
					parameters.ParameterTypeString,
					parameters.WithDefault(":3000"),
					parameters.WithHelp("Listen address"),
				),
			),
			cmds.WithLayersList(sentientLayer),
		),
		app: a,
	}, nil
}

func (c *ServeCommand) Run(ctx context.Context, parsedLayers *layers.ParsedLayers) error {
	ss := &SentientSettings{}
	if err := parsedLayers.InitializeStruct(SentientSlug, ss); err != nil {
		return err
	}
	cfg := c.app.cfg

	opts, err := toolOptions(cfg)
	if err != nil {
		return err
	}
	reg := tools.NewInMemoryToolRegistry()
	if err := toolkit.RegisterBasicTools(reg, opts); err != nil {
		return err
	}
	runner, err := newRunner(cfg, reg, scripted.DefaultScript(), nil)
	if err != nil {
		return err
	}

	printBanner(os.Stderr)
	return withEventEcho(ctx, ss.EchoEvents, func(ctx context.Context) error {
		return serve(ctx, cfg.Server.Addr, cfg.Server.ShutdownTimeout, &APIHandler{Asker: runner})
	})
}

// serve runs the HTTP server until ctx is cancelled, then shuts it down.
func serve(ctx context.Context, addr string, shutdownTimeout time.Duration, h *APIHandler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	// requests inherit ctx so that event sinks reach the engines
	srv.BaseContext = func(_ net.Listener) context.Context { return ctx }

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		log.Info().Str("addr", addr).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	eg.Go(func() error {
		<-egCtx.Done()
		if shutdownTimeout <= 0 {
			shutdownTimeout = 10 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		log.Info().Msg("shutting down server")
		return srv.Shutdown(shutdownCtx)
	})
	return eg.Wait()
}
