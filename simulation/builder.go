package simulation

import (
	"os"

	"github.com/rs/xid"
	"github.com/rs/zerolog"
	"github.com/sarchlab/evsim/datarecording"
	"github.com/sarchlab/evsim/monitoring"
	"github.com/sarchlab/evsim/timing"
	"github.com/sarchlab/evsim/tracing"
)

// Builder can be used to build a simulation.
type Builder struct {
	monitorOn      bool
	monitorPort    int
	recordingOn    bool
	recordEvents   bool
	outputFileName string
	eventLogging   bool
	logger         *zerolog.Logger
}

// MakeBuilder creates a new builder. Monitoring and recording are off
// unless asked for.
func MakeBuilder() Builder {
	return Builder{}
}

// WithMonitoring turns on the monitoring server.
func (b Builder) WithMonitoring() Builder {
	b.monitorOn = true
	return b
}

// WithMonitorPort sets the port number for the monitoring server.
func (b Builder) WithMonitorPort(port int) Builder {
	b.monitorPort = port
	return b
}

// WithRecording turns on SQLite recording into <path>.sqlite3. An empty
// path names the file after the simulation ID.
func (b Builder) WithRecording(path string) Builder {
	b.recordingOn = true
	b.outputFileName = path

	return b
}

// WithEventRecording also records every event into the sim_event table.
// It implies recording.
func (b Builder) WithEventRecording() Builder {
	b.recordingOn = true
	b.recordEvents = true

	return b
}

// WithLogger sets the logger used by the simulation.
func (b Builder) WithLogger(logger zerolog.Logger) Builder {
	b.logger = &logger
	return b
}

// WithEventLogging logs every dispatched event at debug level.
func (b Builder) WithEventLogging() Builder {
	b.eventLogging = true
	return b
}

func (b Builder) parametersMustBeValid() {
	if !b.monitorOn && b.monitorPort != 0 {
		panic("monitor port cannot be set when monitoring is disabled")
	}
}

// Build builds the simulation.
func (b Builder) Build() *Simulation {
	b.parametersMustBeValid()

	s := &Simulation{
		id:    xid.New().String(),
		sim:   timing.NewSimulator(),
		stats: tracing.NewEventStats(),
	}

	if b.logger != nil {
		s.logger = *b.logger
	} else {
		s.logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}

	s.logger = s.logger.With().Str("sim", s.id).Logger()

	tracing.Collect(s.sim, s.stats)

	if b.eventLogging {
		tracing.Collect(s.sim, timing.NewEventLogger(s.logger))
	}

	if b.recordingOn {
		b.buildRecording(s)
	}

	if b.monitorOn {
		s.monitor = monitoring.NewMonitor()
		if b.monitorPort > 0 {
			s.monitor.WithPortNumber(b.monitorPort)
		}

		s.monitor.RegisterSimulator(s.sim)
		s.monitor.StartServer()
	}

	return s
}

func (b Builder) buildRecording(s *Simulation) {
	outputPath := b.outputFileName
	if outputPath == "" {
		outputPath = "evsim_" + s.id
	}

	s.dataRecorder = datarecording.New(outputPath)
	s.runInfo = datarecording.NewRunInfoRecorder(s.dataRecorder)
	s.runInfo.Start()
	s.runInfo.Add("Simulation ID", s.id)

	if b.recordEvents {
		s.eventTracer = tracing.NewEventTracer(s.dataRecorder)
		tracing.Collect(s.sim, s.eventTracer)
	}
}
