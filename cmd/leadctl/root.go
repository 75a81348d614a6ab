package main

import (
	"github.com/go-faster/errors"
	"github.com/spf13/cobra"

	"github.com/iota-uz/leadflow/modules"
	"github.com/iota-uz/leadflow/modules/leads/services"
	"github.com/iota-uz/leadflow/pkg/application"
	"github.com/iota-uz/leadflow/pkg/configuration"
)

type cli struct {
	format       string
	orchestrator *services.Orchestrator
}

// load builds the same module graph the server runs, so commands share its stores and limits.
func (c *cli) load(cmd *cobra.Command, _ []string) error {
	switch c.format {
	case formatText, formatJSON, formatYAML:
	default:
		return errors.Errorf("unknown output format %q", c.format)
	}
	conf := configuration.Use()
	app := application.New(&application.ApplicationOptions{Logger: conf.Logger()})
	if err := modules.Load(app, modules.BuiltInModules...); err != nil {
		return errors.Wrap(err, "load modules")
	}
	c.orchestrator = app.Service(services.Orchestrator{}).(*services.Orchestrator)
	return nil
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	cmd := &cobra.Command{
		Use:               "leadflow-ctl",
		Short:             "Operate lead conversations: fire events, inspect transcripts, dispatch follow-ups",
		SilenceUsage:      true,
		PersistentPreRunE: c.load,
		PersistentPostRun: func(*cobra.Command, []string) {
			configuration.Use().Unload()
		},
	}
	cmd.PersistentFlags().StringVarP(&c.format, "output", "o", formatText, "Output format: text, json or yaml")
	cmd.AddCommand(
		newEventCmd(c),
		newShowCmd(c),
		newActiveCmd(c),
		newFollowUpsCmd(c),
	)
	return cmd
}
