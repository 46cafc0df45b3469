// Package simulation wires a simulator together with the optional
// recording, tracing, and monitoring services.
package simulation

import (
	"context"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/sarchlab/evsim/datarecording"
	"github.com/sarchlab/evsim/monitoring"
	"github.com/sarchlab/evsim/timing"
	"github.com/sarchlab/evsim/tracing"
)

// A Simulation provides the services a simulation run needs.
type Simulation struct {
	id     string
	sim    *timing.Simulator
	logger zerolog.Logger

	stats        *tracing.EventStats
	dataRecorder datarecording.DataRecorder
	runInfo      *datarecording.RunInfoRecorder
	eventTracer  *tracing.EventTracer
	monitor      *monitoring.Monitor

	terminated bool
}

// ID returns the unique ID of the simulation run.
func (s *Simulation) ID() string {
	return s.id
}

// Simulator returns the simulator.
func (s *Simulation) Simulator() *timing.Simulator {
	return s.sim
}

// Logger returns the simulation logger.
func (s *Simulation) Logger() zerolog.Logger {
	return s.logger
}

// DataRecorder returns the data recorder, or nil if recording is off.
func (s *Simulation) DataRecorder() datarecording.DataRecorder {
	return s.dataRecorder
}

// Monitor returns the monitor, or nil if monitoring is off.
func (s *Simulation) Monitor() *monitoring.Monitor {
	return s.monitor
}

// EventTracer returns the event tracer, or nil if events are not recorded.
func (s *Simulation) EventTracer() *tracing.EventTracer {
	return s.eventTracer
}

// Stats returns the event statistics of the run.
func (s *Simulation) Stats() tracing.Summary {
	return s.stats.Summary()
}

// Terminate writes the run information, closes the recorder, stops the
// monitor, and destroys the simulator. Calling it again does nothing.
func (s *Simulation) Terminate() {
	if s.terminated {
		return
	}

	s.terminated = true

	if s.runInfo != nil {
		s.runInfo.Add("Virtual Time", s.sim.Now().String())
		s.runInfo.Add("Executed Events",
			strconv.FormatUint(s.sim.ExecutedEvents(), 10))
		s.runInfo.End()
	}

	if s.dataRecorder != nil {
		if err := s.dataRecorder.Close(); err != nil {
			s.logger.Error().Err(err).Msg("closing data recorder")
		}
	}

	if s.monitor != nil {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()

		if err := s.monitor.StopServer(ctx); err != nil {
			s.logger.Warn().Err(err).Msg("stopping monitor")
		}
	}

	s.sim.Destroy()
}
