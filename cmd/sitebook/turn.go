package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/yangwenmai/sitebook/internal/engine"
)

type turnOptions struct {
	project string
	actor   string
	asJSON  bool
}

func newTurnCmd() *cobra.Command {
	var opts turnOptions
	cmd := &cobra.Command{
		Use:   "turn [message]",
		Short: "Run one chat turn, or apply a model reply read from stdin",
		Long: `With a message, turn runs it through the full pipeline: context, model, command
execution. Without one, it reads a model reply from stdin and applies the
command embedded in it, printing what the user would see.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			actor := opts.actor
			if actor == "" {
				actor = a.cfg.DefaultActor
			}

			var res *engine.TurnResult
			if len(args) == 1 {
				res, err = a.pipeline.Run(cmd.Context(), &engine.Turn{
					ProjectID: opts.project,
					Message:   args[0],
					Actor:     actor,
				})
				if err != nil {
					return err
				}
			} else {
				reply, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("read reply: %w", err)
				}
				if strings.TrimSpace(string(reply)) == "" {
					return fmt.Errorf("no message given and stdin is empty")
				}
				r := a.processor.Process(cmd.Context(), string(reply), actor)
				res = &engine.TurnResult{Reply: r.Display, Outcome: r.Outcome, Extraction: r.Extraction}
			}

			return printTurn(cmd.OutOrStdout(), res, opts.asJSON)
		},
	}
	cmd.Flags().StringVarP(&opts.project, "project", "p", "", "project id to scope the context to")
	cmd.Flags().StringVarP(&opts.actor, "actor", "a", "", "name recorded on audit notes")
	cmd.Flags().BoolVar(&opts.asJSON, "json", false, "print the result as JSON")
	return cmd
}

func printTurn(w io.Writer, res *engine.TurnResult, asJSON bool) error {
	if !asJSON {
		_, err := fmt.Fprintln(w, res.Reply)
		return err
	}
	out := struct {
		*engine.TurnResult
		Extraction string `json:"extraction"`
		Method     string `json:"method,omitempty"`
	}{res, res.Extraction.State.String(), res.Extraction.Method}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
