package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	clay "github.com/go-go-golems/clay/pkg"
	"github.com/go-go-golems/glazed/pkg/cli"
	glazed_cmds "github.com/go-go-golems/glazed/pkg/cmds"
	"github.com/go-go-golems/glazed/pkg/cmds/layers"
	"github.com/go-go-golems/glazed/pkg/help"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/go-go-golems/sentient/pkg/config"
	"github.com/go-go-golems/sentient/pkg/doc"
)

type app struct {
	v      *viper.Viper
	cfg    *config.Config
	out    io.Writer
	errOut io.Writer
}

func newRootCommand() (*cobra.Command, error) {
	a := &app{v: viper.New(), out: os.Stdout, errOut: os.Stderr}

	rootCmd := &cobra.Command{
		Use:           "sentient",
		Short:         "Tool-calling Gemini agent that reports through ntfy",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// reinitialize the logger because we can now parse --log-level and co
			if err := clay.InitLogger(); err != nil {
				return err
			}
			if err := a.bindFlags(cmd, flagBindings); err != nil {
				return err
			}
			configPath, _ := cmd.Flags().GetString("config")
			cfg, err := config.Load(a.v, configPath)
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.out, a.errOut = cmd.OutOrStdout(), cmd.ErrOrStderr()
			return nil
		},
	}

	helpSystem := help.NewHelpSystem()
	if err := doc.AddDocToHelpSystem(helpSystem); err != nil {
		return nil, errors.Wrap(err, "load help topics")
	}
	helpFunc, usageFunc := help.GetCobraHelpUsageFuncs(helpSystem)
	helpTemplate, usageTemplate := help.GetCobraHelpUsageTemplates(helpSystem)
	rootCmd.SetHelpFunc(helpFunc)
	rootCmd.SetUsageFunc(usageFunc)
	rootCmd.SetHelpTemplate(helpTemplate)
	rootCmd.SetUsageTemplate(usageTemplate)
	rootCmd.SetHelpCommand(help.NewCobraHelpCommand(helpSystem))

	// adds --config, --log-level and the other logging flags
	if err := clay.InitViper(config.AppName, rootCmd); err != nil {
		return nil, errors.Wrap(err, "initialize config")
	}

	runCmd, err := NewRunCommand(a)
	if err != nil {
		return nil, err
	}
	agentCmd, err := NewAgentCommand(a)
	if err != nil {
		return nil, err
	}
	serveCmd, err := NewServeCommand(a)
	if err != nil {
		return nil, err
	}
	for _, c := range []glazed_cmds.Command{runCmd, agentCmd, serveCmd} {
		cobraCmd, err := cli.BuildCobraCommandFromCommand(c,
			cli.WithCobraShortHelpLayers(layers.DefaultSlug, SentientSlug),
		)
		if err != nil {
			return nil, err
		}
		rootCmd.AddCommand(cobraCmd)
	}
	return rootCmd, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd, err := newRootCommand()
	cobra.CheckErr(err)
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.Error().Err(err).Msg("sentient failed")
		os.Exit(1)
	}
}
