package main

import (
	"context"
	"math/rand"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/go-go-golems/sentient/pkg/config"
	"github.com/go-go-golems/sentient/pkg/events"
	"github.com/go-go-golems/sentient/pkg/inference/engine"
	"github.com/go-go-golems/sentient/pkg/inference/session"
	"github.com/go-go-golems/sentient/pkg/inference/tools"
	"github.com/go-go-golems/sentient/pkg/notify"
	"github.com/go-go-golems/sentient/pkg/steps/ai/gemini"
	"github.com/go-go-golems/sentient/pkg/steps/ai/scripted"
	"github.com/go-go-golems/sentient/pkg/toolkit"
)

const eventsTopic = "sentient-events"

// engineFactory returns a factory for the configured engine. fallback is the
// scripted engine's script when no script file is configured.
func engineFactory(cfg *config.Config, fallback []scripted.Response) (session.EngineFactory, error) {
	switch cfg.Engine.Provider {
	case "scripted":
		script := fallback
		if cfg.Engine.Script != "" {
			s, err := scripted.LoadScript(cfg.Engine.Script)
			if err != nil {
				return nil, err
			}
			script = s
		}
		return func(context.Context) (engine.Engine, error) {
			return scripted.NewEngine(script)
		}, nil
	default:
		eng, err := gemini.NewGeminiEngine(geminiSettings(cfg.Gemini))
		if err != nil {
			return nil, err
		}
		return session.StaticEngine(eng), nil
	}
}

func geminiSettings(gc config.GeminiConfig) gemini.Settings {
	s := gemini.Settings{
		APIKey:               gc.APIKey,
		Model:                gc.Model,
		BaseURL:              gc.BaseURL,
		AllowInsecureBaseURL: gc.AllowInsecure,
		Temperature:          gc.Temperature,
	}
	if gc.MaxOutputTokens > 0 {
		n := gc.MaxOutputTokens
		s.MaxOutputTokens = &n
	}
	return s
}

// notifier builds the ntfy client. A missing topic is logged and yields nil,
// so that sendNote reports "failed" instead of the whole command refusing to start.
func notifier(cfg *config.Config) (notify.Notifier, error) {
	n, err := notify.NewNtfy(notify.Options{
		BaseURL:       cfg.Ntfy.BaseURL,
		Topic:         cfg.Ntfy.Topic,
		Title:         cfg.Ntfy.Title,
		AllowInsecure: cfg.Ntfy.AllowInsecure,
	})
	if errors.Is(err, notify.ErrMissingTopic) {
		log.Warn().Err(err).Msg("notes will not be delivered")
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	log.Debug().Str("endpoint", n.Endpoint()).Msg("ntfy notifier ready")
	return n, nil
}

func toolOptions(cfg *config.Config) (toolkit.Options, error) {
	n, err := notifier(cfg)
	if err != nil {
		return toolkit.Options{}, err
	}
	return toolkit.Options{
		Notifier: n,
		Rand:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}, nil
}

// newRunner assembles a session runner over reg.
func newRunner(cfg *config.Config, reg tools.ToolRegistry, fallback []scripted.Response, forwards []string) (*session.Runner, error) {
	factory, err := engineFactory(cfg, fallback)
	if err != nil {
		return nil, err
	}
	loopCfg, err := cfg.LoopConfig()
	if err != nil {
		return nil, err
	}
	toolCfg := cfg.ToolConfig()

	r := &session.Runner{
		NewEngine:  factory,
		Registry:   reg,
		LoopConfig: loopCfg,
		ToolConfig: toolCfg,
	}

	fw, err := toolkit.ParseForwards(append(append([]string{}, cfg.Tools.Forward...), forwards...))
	if err != nil {
		return nil, err
	}
	if len(fw) > 0 {
		r.Executor = toolkit.NewForwardingExecutor(toolCfg, fw)
	}
	return r, nil
}

// withEventEcho runs fn with a context whose events are logged through the
// watermill event router. When enabled is false fn runs on ctx directly.
func withEventEcho(ctx context.Context, enabled bool, fn func(ctx context.Context) error) error {
	if !enabled {
		return fn(ctx)
	}

	router, err := events.NewEventRouter(events.WithVerbose(log.Debug().Enabled()))
	if err != nil {
		return errors.Wrap(err, "create event router")
	}
	router.AddHandler("log-events", eventsTopic, events.LogEventsHandler)

	routerCtx, cancelRouter := context.WithCancel(ctx)
	eg, egCtx := errgroup.WithContext(routerCtx)
	eg.Go(func() error {
		return router.Run(egCtx)
	})
	eg.Go(func() error {
		defer cancelRouter()
		defer func() { _ = router.Close() }()

		select {
		case <-router.Running():
		case <-egCtx.Done():
			return egCtx.Err()
		}
		return fn(events.WithEventSinks(ctx, router.Sink(eventsTopic)))
	})

	err = eg.Wait()
	if errors.Is(err, context.Canceled) && ctx.Err() == nil {
		return nil
	}
	return err
}
