package main

import (
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/spf13/cobra"

	"github.com/iota-uz/leadflow/modules/leads/presentation/mappers"
	"github.com/iota-uz/leadflow/modules/leads/services"
)

func newEventCmd(c *cli) *cobra.Command {
	var data []string
	cmd := &cobra.Command{
		Use:   "event <lead-id> <type>",
		Short: "Run a proactive turn for a scheduled event",
		Long:  "Known types: " + strings.Join(eventTypeNames(), ", "),
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, ok := services.ParseEventType(args[1]); !ok {
				return errors.Errorf("unknown event type %q", args[1])
			}
			payload, err := parseData(data)
			if err != nil {
				return err
			}
			resp, err := c.orchestrator.HandleEvent(cmd.Context(), args[0], args[1], payload)
			if err != nil {
				return err
			}
			if resp == nil {
				return c.print(map[string]any{"lead_id": args[0], "skipped": true}, func(p *printer) {
					p.warn("skipped: lead closed or follow-up limit reached")
				})
			}
			turn := mappers.ResponseToTurn(resp)
			return c.print(turn, func(p *printer) { p.turn(turn) })
		},
	}
	cmd.Flags().StringArrayVar(&data, "data", nil, "Event data as key=value (repeatable)")
	return cmd
}

func newShowCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "show <lead-id>",
		Short: "Print a lead's conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			conv, err := c.orchestrator.Repository().GetByLead(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			vm := mappers.ConversationToViewModel(conv)
			return c.print(vm, func(p *printer) { p.conversation(vm) })
		},
	}
}

func newActiveCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "active",
		Short: "List conversations whose lead is still open",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			list, err := c.orchestrator.Repository().GetActive(cmd.Context())
			if err != nil {
				return err
			}
			vms := mappers.ConversationsToSummaries(list)
			return c.print(vms, func(p *printer) { p.summaries(vms) })
		},
	}
}

type dispatchResult struct {
	LeadID string `json:"lead_id"`
	Result string `json:"result"`
	Error  string `json:"error,omitempty"`
}

func newFollowUpsCmd(c *cli) *cobra.Command {
	var (
		maxAge   time.Duration
		dispatch bool
	)
	cmd := &cobra.Command{
		Use:   "follow-ups",
		Short: "List engaged conversations that have gone quiet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if maxAge <= 0 {
				return errors.New("--max-age must be positive")
			}
			list, err := c.orchestrator.Repository().GetNeedingFollowUp(cmd.Context(), maxAge)
			if err != nil {
				return err
			}
			if !dispatch {
				vms := mappers.ConversationsToSummaries(list)
				return c.print(vms, func(p *printer) { p.summaries(vms) })
			}

			results := make([]dispatchResult, 0, len(list))
			for _, conv := range list {
				res := dispatchResult{LeadID: conv.LeadID(), Result: "sent"}
				resp, err := c.orchestrator.HandleEvent(cmd.Context(), conv.LeadID(), string(services.EventFollowUpDue), nil)
				switch {
				case err != nil:
					res.Result, res.Error = "failed", err.Error()
				case resp == nil:
					res.Result = "skipped"
				}
				results = append(results, res)
			}
			return c.print(results, func(p *printer) { p.dispatch(results) })
		},
	}
	cmd.Flags().DurationVar(&maxAge, "max-age", 24*time.Hour, "Minimum time since the last message")
	cmd.Flags().BoolVar(&dispatch, "dispatch", false, "Fire follow_up_due for every match")
	return cmd
}

func parseData(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		k, v, ok := strings.Cut(pair, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, errors.Errorf("invalid --data %q, want key=value", pair)
		}
		out[strings.TrimSpace(k)] = v
	}
	return out, nil
}

func eventTypeNames() []string {
	types := services.EventTypes()
	out := make([]string, 0, len(types))
	for _, t := range types {
		out = append(out, string(t))
	}
	return out
}
