package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/momentics/hioload-mq/api"
	"github.com/momentics/hioload-mq/codec"
	"github.com/momentics/hioload-mq/control"
	"github.com/momentics/hioload-mq/facade"
)

var (
	sendPattern string
	sendAddr    string
)

var sendCmd = &cobra.Command{
	Use:   "send MSG...",
	Short: "Connect a request, push or dealer channel and send messages",
	Long: `send connects to --addr and sends each argument. Request channels print
the reply to every message; dealer channels print replies that arrive before
--timeout.`,
	Example: "  hioload-mq send --pattern request --addr tcp://localhost:5555 \"Hello World!\"",
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := api.ParsePattern(sendPattern)
		if err != nil {
			return err
		}
		if p.Binds() {
			return fmt.Errorf("pattern %s cannot send first; use request, push or dealer", p)
		}

		h, err := newFacade()
		if err != nil {
			return err
		}
		defer h.Shutdown()

		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()
		ch, err := facade.Connect(h, p, sendAddr, codec.String()).Await(ctx)
		if err != nil {
			return fmt.Errorf("connect %s: %w", sendAddr, err)
		}
		out := cmd.OutOrStdout()

		switch p {
		case api.Request:
			for _, msg := range args {
				reply, err := ch.SendAndReceive(ctx, msg)
				if err != nil {
					return err
				}
				v, err := reply.Await(ctx)
				if err != nil {
					return fmt.Errorf("request %q: %w", msg, err)
				}
				fmt.Fprintln(out, v)
			}
			return nil

		case api.Dealer:
			replies := make(chan string, len(args))
			ch.Consume(func(v string) { replies <- v })
			for _, msg := range args {
				if err := ch.Send(msg); err != nil {
					return err
				}
			}
			for range args {
				select {
				case v := <-replies:
					fmt.Fprintln(out, v)
				case <-ctx.Done():
					return nil
				}
			}
			return nil

		default:
			for _, msg := range args {
				if err := ch.SendAndForget(msg); err != nil {
					return err
				}
			}
			return waitFlushed(ctx, h.Metrics(), int64(len(args)))
		}
	},
}

// waitFlushed blocks until n frames have been handed to the socket.
func waitFlushed(ctx context.Context, m *control.MetricsRegistry, n int64) error {
	tick := time.NewTicker(5 * time.Millisecond)
	defer tick.Stop()
	for m.Counter(control.MetricFramesOut) < n {
		select {
		case <-ctx.Done():
			return fmt.Errorf("messages not flushed: %w", ctx.Err())
		case <-tick.C:
		}
	}
	// frames_out counts the hand-off to the socket writer, not the wire.
	time.Sleep(50 * time.Millisecond)
	return nil
}

func init() {
	sendCmd.Flags().StringVar(&sendPattern, "pattern", "request", "request, push or dealer")
	sendCmd.Flags().StringVar(&sendAddr, "addr", "tcp://localhost:5555", "address to connect")
}
