package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rowens2025/powervisualize/internal/domain/intent"
	"github.com/rowens2025/powervisualize/internal/infrastructure/config"
)

type classification struct {
	Intent         string `json:"intent"`
	Rule           string `json:"rule"`
	AboutAssistant bool   `json:"about_assistant"`
	Contact        string `json:"contact,omitempty"`
}

func newClassifyCommand(root *rootOptions) *cobra.Command {
	var pageType string
	cmd := &cobra.Command{
		Use:   "classify <question>",
		Short: "Print the intent and the rule that matched a question",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			in := intent.Input{Question: strings.Join(args, " ")}
			if pageType != "" {
				in.Page = &intent.PageContext{PageType: pageType}
			}
			got := classify(cfg, in)

			if root.jsonOut {
				return writeJSON(cmd.OutOrStdout(), got)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "intent: %s\n", got.Intent)
			fmt.Fprintf(out, "rule:   %s\n", got.Rule)
			if got.AboutAssistant {
				fmt.Fprintln(out, "about the assistant: yes")
			}
			if got.Contact != "" {
				fmt.Fprintf(out, "contact: %s\n", got.Contact)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&pageType, "page-type", "", "Type of the page the question is asked from")
	return cmd
}

func classify(cfg *config.Config, in intent.Input) classification {
	contacts := make([]intent.KnownContact, 0, len(cfg.Assistant.KnownContacts))
	for _, c := range cfg.Assistant.KnownContacts {
		contacts = append(contacts, intent.KnownContact{Name: c.Name, Greeting: c.Greeting})
	}
	c := intent.NewClassifier(intent.Config{
		PersonName: cfg.Assistant.PersonName,
		Contacts:   contacts,
	}).Classify(in)

	out := classification{
		Intent:         string(c.Intent),
		Rule:           c.Rule,
		AboutAssistant: c.AboutAssistant,
	}
	if c.Contact != nil {
		out.Contact = c.Contact.Name
	}
	return out
}
