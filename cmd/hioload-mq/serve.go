package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/momentics/hioload-mq/api"
	"github.com/momentics/hioload-mq/codec"
	"github.com/momentics/hioload-mq/facade"
)

var (
	servePattern string
	serveAddr    string
	serveCount   int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Bind a reply, pull or router channel and print what arrives",
	Long: `serve binds --addr and prints every inbound message. Reply and router
channels echo each message back to its sender.`,
	Example: "  hioload-mq serve --pattern reply --addr tcp://*:5555",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := api.ParsePattern(servePattern)
		if err != nil {
			return err
		}
		if !p.Binds() {
			return fmt.Errorf("pattern %s cannot serve; use reply, pull or router", p)
		}

		h, err := newFacade()
		if err != nil {
			return err
		}
		defer h.Shutdown()

		unwatch, err := watchConfig()
		if err != nil {
			return err
		}
		defer unwatch()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		connectCtx, cancel := context.WithTimeout(ctx, timeout)
		ch, err := facade.Bind(h, p, serveAddr, codec.String()).Next(connectCtx)
		cancel()
		if err != nil {
			return fmt.Errorf("bind %s: %w", serveAddr, err)
		}

		received := make(chan struct{}, 1)
		seen := 0
		out := cmd.OutOrStdout()
		ch.ConsumeFrom(func(env api.Envelope, msg string) {
			if env.Empty() {
				fmt.Fprintln(out, msg)
			} else {
				fmt.Fprintf(out, "%s %s\n", env, msg)
			}
			var err error
			switch p {
			case api.Reply:
				err = ch.Send(msg)
			case api.Router:
				err = ch.SendTo(env, msg)
			}
			if err != nil {
				log.Warn("echo failed", zap.Error(err))
			}
			seen++
			if serveCount > 0 && seen >= serveCount {
				select {
				case received <- struct{}{}:
				default:
				}
			}
		})
		ch.OnError(func(err error) { log.Warn("channel error", zap.Error(err)) })
		log.Info("serving", zap.Stringer("pattern", p), zap.String("address", serveAddr))

		select {
		case <-ctx.Done():
		case <-received:
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().StringVar(&servePattern, "pattern", "reply", "reply, pull or router")
	serveCmd.Flags().StringVar(&serveAddr, "addr", "tcp://*:5555", "address to bind")
	serveCmd.Flags().IntVar(&serveCount, "count", 0, "exit after this many messages (0 serves until interrupted)")
}
