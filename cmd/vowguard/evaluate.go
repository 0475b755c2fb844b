package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/vowguard/internal/orchestrator"
	"github.com/danielpatrickdp/vowguard/internal/tone"
)

type evaluateOptions struct {
	personaID string
	prompt    string
	response  string
	toneJSON  string
	jsonOut   bool
}

func newEvaluateCmd(root *rootOptions) *cobra.Command {
	opts := &evaluateOptions{}
	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Evaluate one reply, or every line read from stdin when --response is empty",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := root.load()
			if err != nil {
				return err
			}
			a, err := buildApp(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer a.Close()

			var t *tone.Vector
			if opts.toneJSON != "" {
				t = &tone.Vector{}
				if err := json.Unmarshal([]byte(opts.toneJSON), t); err != nil {
					return fmt.Errorf("parse --tone: %w", err)
				}
			}

			run := func(response string) error {
				out, err := a.orch.Evaluate(cmd.Context(), orchestrator.Request{
					PersonaID: opts.personaID,
					Prompt:    opts.prompt,
					Response:  response,
					Tone:      t,
				})
				if err != nil {
					return err
				}
				return printOutcome(cmd.OutOrStdout(), out, opts.jsonOut)
			}

			if opts.response != "" {
				return run(opts.response)
			}
			return evaluateLines(cmd.InOrStdin(), cmd.ErrOrStderr(), run)
		},
	}
	cmd.Flags().StringVar(&opts.personaID, "persona", "", "persona ID")
	cmd.Flags().StringVar(&opts.prompt, "prompt", "", "prompt the reply answered")
	cmd.Flags().StringVar(&opts.response, "response", "", "reply to evaluate")
	cmd.Flags().StringVar(&opts.toneJSON, "tone", "", `tone of the reply as JSON, e.g. {"tension":0.5,"direction":"assert","rationality":0.7}`)
	cmd.Flags().BoolVar(&opts.jsonOut, "json", false, "print the full outcome as JSON")
	_ = cmd.MarkFlagRequired("persona")
	return cmd
}

// evaluateLines runs fn for every non-empty line until EOF or "quit".
// Errors are reported and the loop continues.
func evaluateLines(in io.Reader, errOut io.Writer, fn func(string) error) error {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "quit" || line == "exit" {
			break
		}
		if err := fn(line); err != nil {
			fmt.Fprintf(errOut, "error: %v\n", err)
		}
	}
	return scanner.Err()
}

func printOutcome(w io.Writer, out orchestrator.Outcome, jsonOut bool) error {
	if jsonOut {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}
	fmt.Fprintf(w, "%s\n", out.Reply)
	fmt.Fprintf(w, "  honest=%v contradiction=%.4f violated=%v\n",
		out.Integrity.Honest, out.Integrity.ContradictionScore, out.Integrity.ViolatedVows)
	fmt.Fprintf(w, "  reflection honest=%v integrity_delta=%.4f points=%d hotspots=%d\n",
		out.Feedback.ReflectionHonest, out.Feedback.IntegrityDelta, len(out.Points), len(out.Hotspots))
	if out.Hint.ApplyNextTurn {
		fmt.Fprintf(w, "  next turn: %s\n", out.Hint.RecommendedBehavior)
	}
	return nil
}
