package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/haowjy/meridian-agent-go/agent"
)

var askFlags struct {
	feature      string
	model        string
	maxRounds    int
	project      string
	user         string
	sequential   bool
	nats         bool
	showThinking bool
	jsonEvents   bool
}

var askCmd = &cobra.Command{
	Use:   "ask [message]",
	Short: "Run one exchange with an assistant feature",
	Long: `Run one exchange: send the message to the model with the feature's tools,
execute every tool call it makes, and print the streamed answer.

With --nats the events are also published to NATS for a UI process, which
can answer dom_action requests and detach to stop the exchange.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().StringVarP(&askFlags.feature, "feature", "f", "", "Feature profile (default from config)")
	askCmd.Flags().StringVarP(&askFlags.model, "model", "m", "", "Model override")
	askCmd.Flags().IntVar(&askFlags.maxRounds, "max-rounds", 0, "Round ceiling override")
	askCmd.Flags().StringVar(&askFlags.project, "project", "default", "Project id")
	askCmd.Flags().StringVar(&askFlags.user, "user", "", "User id")
	askCmd.Flags().BoolVar(&askFlags.sequential, "sequential", false, "Execute the tools of a round one at a time")
	askCmd.Flags().BoolVar(&askFlags.nats, "nats", false, "Publish events to NATS")
	askCmd.Flags().BoolVar(&askFlags.showThinking, "thinking", false, "Print reasoning")
	askCmd.Flags().BoolVar(&askFlags.jsonEvents, "json", false, "Print every event as a JSON line instead of text")
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	a, err := newApp(ctx, cfg, askFlags.nats)
	if err != nil {
		return err
	}
	defer a.close(cmd.Context())

	name := askFlags.feature
	if name == "" {
		name = cfg.Feature
	}
	feat, err := a.features.Get(name)
	if err != nil {
		return err
	}

	exchangeID := uuid.NewString()
	var observer agent.Observer = newTerminalObserver(cmd.OutOrStdout(), askFlags.showThinking, askFlags.jsonEvents)
	natsObs, err := a.observer(exchangeID)
	if err != nil {
		return err
	}
	if natsObs != nil {
		defer natsObs.Close()
		observer = teeObserver{observer, natsObs}
		fmt.Fprintf(cmd.ErrOrStderr(), "publishing on %s.%s.events\n", cfg.NATS.Prefix, exchangeID)
	}

	overrides := &agent.Overrides{Model: askFlags.model, MaxRounds: askFlags.maxRounds}
	if askFlags.sequential {
		parallel := false
		overrides.ParallelTools = &parallel
	}

	res, err := a.engine.RunExchange(ctx, agent.ExchangeRequest{
		Context: agent.RequestContext{
			ExchangeID: exchangeID,
			UserID:     askFlags.user,
			ProjectID:  askFlags.project,
		},
		Message:   strings.Join(args, " "),
		Feature:   feat,
		Overrides: overrides,
	}, observer)
	if err != nil {
		var exErr *agent.ExchangeError
		if errors.As(err, &exErr) {
			return fmt.Errorf("exchange failed in round %d: %s", exErr.Round, exErr.Message)
		}
		return err
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "\n[%s] %d rounds, outcome %s, tools %v",
		res.ExchangeID, res.Rounds, res.Outcome, res.ExecutedTools)
	if res.SnapshotVersionID != "" {
		fmt.Fprintf(cmd.ErrOrStderr(), ", snapshot %s", res.SnapshotVersionID)
	}
	fmt.Fprintln(cmd.ErrOrStderr())
	return nil
}

// terminalObserver prints the live feed of an exchange.
type terminalObserver struct {
	w            io.Writer
	showThinking bool
	asJSON       bool
	thinking     bool
}

func newTerminalObserver(w io.Writer, showThinking, asJSON bool) *terminalObserver {
	return &terminalObserver{w: w, showThinking: showThinking, asJSON: asJSON}
}

func (t *terminalObserver) Send(ev agent.Event) error {
	if t.asJSON {
		// A failed write to the terminal means nobody is reading.
		if err := json.NewEncoder(t.w).Encode(ev); err != nil {
			return fmt.Errorf("%w: %v", agent.ErrObserverGone, err)
		}
		return nil
	}
	switch ev.Type {
	case agent.EventThinkingDelta:
		if t.showThinking {
			if !t.thinking {
				fmt.Fprint(t.w, "\n(thinking) ")
				t.thinking = true
			}
			fmt.Fprint(t.w, ev.Text)
		}
	case agent.EventThinkingDone:
		if t.thinking {
			fmt.Fprintln(t.w)
			t.thinking = false
		}
	case agent.EventTextDelta:
		fmt.Fprint(t.w, ev.Text)
	case agent.EventToolCallReady:
		input, _ := json.Marshal(ev.Input)
		fmt.Fprintf(t.w, "\n→ %s %s\n", ev.ToolName, input)
	case agent.EventToolResult:
		if ev.Success != nil && *ev.Success {
			fmt.Fprintf(t.w, "✓ %s\n", ev.ToolName)
		} else {
			fmt.Fprintf(t.w, "✗ %s: %s\n", ev.ToolName, ev.Message)
		}
	case agent.EventSearchStarted:
		fmt.Fprintf(t.w, "searching %q\n", ev.Query)
	case agent.EventProposal:
		fmt.Fprintln(t.w, "proposed a note")
	case agent.EventSnapshotCreated:
		fmt.Fprintf(t.w, "snapshot %s\n", ev.VersionID)
	case agent.EventStreamError:
		fmt.Fprintf(t.w, "\nerror: %s\n", ev.Message)
	case agent.EventStreamEnd:
		fmt.Fprintln(t.w)
	}
	return nil
}

// teeObserver forwards to every observer. The first error ends the feed.
type teeObserver []agent.Observer

func (t teeObserver) Send(ev agent.Event) error {
	for _, o := range t {
		if err := o.Send(ev); err != nil {
			return err
		}
	}
	return nil
}
