package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"ai-assistant-be/internal/config"
	"ai-assistant-be/pkg/events"
	pktNats "ai-assistant-be/pkg/nats"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newEventsCmd() *cobra.Command {
	var durable string

	cmd := &cobra.Command{
		Use:   "events",
		Short: "Tail completed session events from NATS",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			if cfg.App.NatsURL == "" {
				return fmt.Errorf("NATS_URL is not set")
			}

			sub, err := pktNats.NewSubscriber(cfg.App.NatsURL, zap.NewNop())
			if err != nil {
				return err
			}
			defer sub.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			out := cmd.OutOrStdout()
			if err := sub.Subscribe(ctx, pktNats.SubjectPrefix+".>", durable, func(_ context.Context, e events.BaseEvent) error {
				return printEvent(out, e)
			}); err != nil {
				return err
			}
			<-ctx.Done()
			return nil
		},
	}

	cmd.Flags().StringVar(&durable, "durable", "assistant-events-cli", "JetStream durable consumer name")
	return cmd
}

func printEvent(w io.Writer, e events.BaseEvent) error {
	body, err := json.Marshal(e.Data)
	if err != nil {
		return err
	}
	color.New(color.FgCyan).Fprintf(w, "%s %s ", e.OccurredAt.Format("15:04:05"), e.Type)
	fmt.Fprintln(w, string(body))
	return nil
}
