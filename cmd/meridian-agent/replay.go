package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/haowjy/meridian-agent-go/observer/natsobs"
)

var replayCmd = &cobra.Command{
	Use:   "replay <exchange-id>",
	Short: "Print the persisted events of a past exchange",
	Long: `Print the events of an exchange run with --nats. Needs a NATS server with
JetStream: nats.url, or nats.embedded with nats.store_dir.`,
	Args: cobra.ExactArgs(1),
	RunE: runReplay,
}

func runReplay(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, cfg, true)
	if err != nil {
		return err
	}
	defer a.close(ctx)
	if a.js == nil {
		return fmt.Errorf("replay needs JetStream: set nats.store_dir or nats.url")
	}

	events, err := natsobs.Replay(ctx, a.js, cfg.NATS.Prefix, args[0])
	if err != nil {
		return err
	}
	if len(events) == 0 {
		return fmt.Errorf("no events recorded for exchange %s", args[0])
	}
	out := newTerminalObserver(cmd.OutOrStdout(), true, false)
	for _, ev := range events {
		_ = out.Send(ev)
	}
	return nil
}
