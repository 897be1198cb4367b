// SPDX-License-Identifier: MIT

package agent

import (
	"context"
	"time"

	"github.com/gridlink/openadr3/internal/client"
	"github.com/gridlink/openadr3/internal/log"
	"github.com/gridlink/openadr3/internal/metrics"
	"github.com/gridlink/openadr3/internal/oadr"
	"github.com/gridlink/openadr3/internal/timeline"
)

// DefaultPollInterval is how often the poller refetches the program's
// events when not configured otherwise.
const DefaultPollInterval = 30 * time.Second

// Source fetches the current program content and its full event set.
type Source interface {
	Fetch(ctx context.Context) (*oadr.ProgramContent, []*oadr.EventContent, error)
}

// ClientSource resolves a program by name through a VTN client on
// every poll, so program-side changes are picked up.
type ClientSource struct {
	Client      *client.Client
	ProgramName string
}

// Fetch retrieves the program and all of its events, paginated.
func (s *ClientSource) Fetch(ctx context.Context) (*oadr.ProgramContent, []*oadr.EventContent, error) {
	program, err := s.Client.GetProgramByName(ctx, s.ProgramName)
	if err != nil {
		return nil, nil, err
	}
	events, err := program.GetAllEvents(ctx, nil)
	if err != nil {
		return nil, nil, err
	}
	contents := make([]*oadr.EventContent, len(events))
	for i := range events {
		contents[i] = &events[i].Content
	}
	return &program.Program.Content, contents, nil
}

// Poll fetches the program's events every interval, rebuilds the
// timeline and sends it downstream. A failed cycle skips a tick; there
// is no retry beyond the next scheduled poll. Closes out on return so
// the update loop terminates with it.
func Poll(ctx context.Context, clk Clock, src Source, interval time.Duration, out chan<- *timeline.Timeline) {
	defer close(out)
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	logger := log.WithComponent("agent.poll")

	for {
		program, events, err := src.Fetch(ctx)
		if err != nil {
			metrics.PollCyclesTotal.WithLabelValues("fetch_error").Inc()
			logger.Warn().Str("event", "poll.fetch_failed").Err(err).Msg("skipping poll cycle")
		} else {
			tl, err := timeline.New(program, events)
			if err != nil {
				metrics.PollCyclesTotal.WithLabelValues("build_error").Inc()
				logger.Warn().Str("event", "poll.build_failed").Err(err).Msg("skipping poll cycle")
			} else {
				metrics.TimelinesBuiltTotal.Inc()
				select {
				case out <- tl:
					metrics.PollCyclesTotal.WithLabelValues("ok").Inc()
				case <-ctx.Done():
					return
				}
			}
		}

		select {
		case <-clk.After(interval):
		case <-ctx.Done():
			return
		}
	}
}
