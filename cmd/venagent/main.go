// SPDX-License-Identifier: MIT

// Command venagent runs the VEN side: it polls a program's events from
// the VTN, maintains the resolved timeline and prints an EnforcedLimits
// snapshot as a JSON line on stdout whenever the active limit changes.
package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/gridlink/openadr3/internal/agent"
	"github.com/gridlink/openadr3/internal/client"
	"github.com/gridlink/openadr3/internal/config"
	"github.com/gridlink/openadr3/internal/log"
	"github.com/gridlink/openadr3/internal/timeline"
)

func main() {
	cfg := config.AgentFromEnv()
	log.Configure(log.Config{Level: cfg.LogLevel, Service: "venagent"})
	logger := log.WithComponent("venagent")

	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Str("event", "agent.config_invalid").Msg("refusing to start")
	}

	cl, err := client.New(cfg.VTNURL, client.WithCredentials(client.Credentials{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
	}))
	if err != nil {
		logger.Fatal().Err(err).Str("event", "agent.client_invalid").Msg("cannot build VTN client")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info().
		Str("event", "agent.starting").
		Str("program", cfg.ProgramName).
		Dur("poll_interval", cfg.PollInterval).
		Msg("polling VTN")

	clk := agent.RealClock()
	src := &agent.ClientSource{Client: cl, ProgramName: cfg.ProgramName}
	// Capacity 1 so the poller never blocks on a slow consumer; a newer
	// timeline simply queues behind at most one pending one.
	timelines := make(chan *timeline.Timeline, 1)

	enc := json.NewEncoder(os.Stdout)
	sink := func(el agent.EnforcedLimits) {
		if err := enc.Encode(el); err != nil {
			logger.Error().Err(err).Str("event", "agent.emit_failed").Msg("cannot write snapshot")
		}
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		agent.Poll(ctx, clk, src, cfg.PollInterval, timelines)
		return nil
	})
	g.Go(func() error {
		agent.Run(ctx, clk, timelines, sink)
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Fatal().Err(err).Str("event", "agent.failed").Msg("agent exited with error")
	}
	logger.Info().Str("event", "agent.stopped").Msg("shutdown complete")
}
