package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"gopkg.in/yaml.v3"

	"github.com/iota-uz/leadflow/modules/leads/presentation/viewmodels"
)

var (
	dim     = color.New(color.FgHiBlack)
	bold    = color.New(color.Bold)
	warnC   = color.New(color.FgYellow)
	errC    = color.New(color.FgRed)
	okC     = color.New(color.FgHiGreen)
	userC   = color.New(color.FgCyan)
	agentCs = map[string]*color.Color{
		"sdr":      color.New(color.FgHiBlue),
		"reminder": color.New(color.FgHiMagenta),
		"followup": color.New(color.FgHiYellow),
	}
	tempCs = map[string]*color.Color{
		"hot":  color.New(color.FgRed),
		"warm": color.New(color.FgYellow),
		"cool": color.New(color.FgCyan),
	}
)

type printer struct {
	w io.Writer
}

const (
	formatText = "text"
	formatJSON = "json"
	formatYAML = "yaml"
)

func (c *cli) print(v any, human func(p *printer)) error {
	switch c.format {
	case formatJSON:
		return writeJSON(os.Stdout, v)
	case formatYAML:
		return writeYAML(os.Stdout, v)
	}
	human(&printer{w: os.Stdout})
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// writeYAML goes through JSON first so view models keep their json field names.
func writeYAML(w io.Writer, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return err
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return err
	}
	return enc.Close()
}

func agentLabel(role string) string {
	if c, ok := agentCs[role]; ok {
		return c.Sprint(role)
	}
	return role
}

func tempLabel(t string) string {
	if t == "" {
		return dim.Sprint("unscored")
	}
	if c, ok := tempCs[t]; ok {
		return c.Sprint(t)
	}
	return t
}

func resultLabel(r string) string {
	switch r {
	case "applied", "sent":
		return okC.Sprint(r)
	case "skipped":
		return warnC.Sprint(r)
	default:
		return errC.Sprint(r)
	}
}

func (p *printer) warn(msg string) {
	fmt.Fprintln(p.w, warnC.Sprint(msg))
}

func (p *printer) turn(t viewmodels.Turn) {
	fmt.Fprintf(p.w, "%s %s -> %s\n", bold.Sprint(t.LeadID), agentLabel(t.Agent), agentLabel(t.NextAgent))
	fmt.Fprintf(p.w, "  %s\n", t.Message)
	for _, o := range t.Outcomes {
		line := fmt.Sprintf("  %s %s", o.Type, resultLabel(o.Result))
		if o.DeliveryStatus != "" {
			line += dim.Sprintf(" (%s)", o.DeliveryStatus)
		}
		if o.Error != "" {
			line += " " + errC.Sprint(o.Error)
		}
		fmt.Fprintln(p.w, line)
	}
	if !t.Persisted {
		p.warn("  state was not persisted")
	}
}

func (p *printer) conversation(c viewmodels.Conversation) {
	fmt.Fprintf(p.w, "%s %s  status=%s  temperature=%s  agent=%s\n",
		bold.Sprint(c.Lead.Name), dim.Sprint(c.LeadID), c.Lead.Status, tempLabel(c.Lead.Temperature), agentLabel(c.CurrentAgent))
	for _, m := range c.Messages {
		who := userC.Sprint("lead")
		if m.Role == "assistant" {
			who = agentLabel(m.Agent)
		}
		fmt.Fprintf(p.w, "%s %s: %s\n", dim.Sprint(m.Timestamp), who, m.Content)
	}
}

func (p *printer) summaries(list []viewmodels.ConversationSummary) {
	if len(list) == 0 {
		fmt.Fprintln(p.w, dim.Sprint("no conversations"))
		return
	}
	for _, s := range list {
		fmt.Fprintf(p.w, "%s  %-22s %-8s %-9s %3d msgs  %s\n",
			s.LeadID, s.Status, tempLabel(s.Temperature), agentLabel(s.CurrentAgent), s.MessageCount, dim.Sprint(s.LastMessageAt))
	}
}

func (p *printer) dispatch(results []dispatchResult) {
	for _, r := range results {
		line := fmt.Sprintf("%s %s", r.LeadID, resultLabel(r.Result))
		if r.Error != "" {
			line += " " + errC.Sprint(r.Error)
		}
		fmt.Fprintln(p.w, line)
	}
}
