package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog"
	"github.com/sarchlab/evsim/config"
	"github.com/sarchlab/evsim/monitoring"
	"github.com/sarchlab/evsim/simulation"
	"github.com/sarchlab/evsim/timing"
	"github.com/sarchlab/evsim/traffic"
	"github.com/spf13/cobra"
)

type runOptions struct {
	configPath   string
	stop         time.Duration
	monitor      bool
	port         int
	open         bool
	record       string
	recordEvents bool
	logLevel     string
	seed         uint64
	run          uint64
}

func newRunCmd() *cobra.Command {
	opts := &runOptions{}

	c := &cobra.Command{
		Use:   "run",
		Short: "Run a scenario",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(opts.configPath)
			if err != nil {
				return err
			}

			opts.override(cmd, cfg)

			if err := cfg.Validate(); err != nil {
				return err
			}

			return runScenario(cfg, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	f := c.Flags()
	f.StringVarP(&opts.configPath, "config", "c", "", "scenario file")
	f.DurationVar(&opts.stop, "stop", 0, "virtual time to stop at")
	f.BoolVar(&opts.monitor, "monitor", false, "serve the monitoring API")
	f.IntVar(&opts.port, "port", 0, "monitoring port, implies --monitor")
	f.BoolVar(&opts.open, "open", false, "open the monitor in a browser")
	f.StringVar(&opts.record, "record", "",
		"record into <path>.sqlite3")
	f.BoolVar(&opts.recordEvents, "record-events", false,
		"also record every event, implies recording")
	f.StringVar(&opts.logLevel, "log-level", "", "log level")
	f.Uint64Var(&opts.seed, "seed", 0, "random stream seed")
	f.Uint64Var(&opts.run, "run", 0, "run number, selects the substreams")

	return c
}

// override applies the flags the user set on top of the file and
// environment values.
func (o *runOptions) override(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()

	if flags.Changed("stop") {
		cfg.StopTime = o.stop
	}

	if flags.Changed("monitor") {
		cfg.Monitor.Enabled = o.monitor
	}

	if flags.Changed("port") {
		cfg.Monitor.Enabled = true
		cfg.Monitor.Port = o.port
	}

	if flags.Changed("open") {
		cfg.Monitor.OpenBrowser = o.open
		cfg.Monitor.Enabled = cfg.Monitor.Enabled || o.open
	}

	if flags.Changed("record") {
		cfg.Recording.Enabled = true
		cfg.Recording.Output = o.record
	}

	if flags.Changed("record-events") {
		cfg.Recording.Events = o.recordEvents
		cfg.Recording.Enabled = cfg.Recording.Enabled || o.recordEvents
	}

	if flags.Changed("log-level") {
		cfg.LogLevel = o.logLevel
	}

	if flags.Changed("seed") {
		cfg.Seed = o.seed
	}

	if flags.Changed("run") {
		cfg.Run = o.run
	}
}

func newLogger(cfg *config.Config, w io.Writer) (zerolog.Logger, error) {
	level, err := cfg.Level()
	if err != nil {
		return zerolog.Nop(), err
	}

	return zerolog.New(zerolog.ConsoleWriter{Out: w, NoColor: true}).
		Level(level).
		With().
		Timestamp().
		Logger(), nil
}

func buildSimulation(
	cfg *config.Config,
	logger zerolog.Logger,
) *simulation.Simulation {
	b := simulation.MakeBuilder().WithLogger(logger)

	if cfg.Monitor.Enabled {
		b = b.WithMonitoring()
		if cfg.Monitor.Port > 0 {
			b = b.WithMonitorPort(cfg.Monitor.Port)
		}
	}

	if cfg.Recording.Enabled {
		b = b.WithRecording(cfg.Recording.Output)
	}

	if cfg.Recording.Events {
		b = b.WithEventRecording()
	}

	if logger.GetLevel() <= zerolog.DebugLevel {
		b = b.WithEventLogging()
	}

	return b.Build()
}

func runScenario(cfg *config.Config, out, errOut io.Writer) error {
	logger, err := newLogger(cfg, errOut)
	if err != nil {
		return err
	}

	s := buildSimulation(cfg, logger)
	defer s.Terminate()

	sim := s.Simulator()
	stopTime := timing.FromDuration(cfg.StopTime)

	seeding := traffic.Seeding{Seed: cfg.Seed, Run: cfg.Run}

	flows, err := traffic.FromConfig(sim, cfg.Flows, seeding, s.DataRecorder())
	if err != nil {
		return err
	}

	if m := s.Monitor(); m != nil {
		sim.AcceptHook(monitoring.NewTimeProgressHook(m, "virtual time", stopTime))

		if cfg.Monitor.OpenBrowser {
			if err := m.OpenInBrowser(); err != nil {
				logger.Warn().Err(err).Msg("cannot open browser")
			}
		}
	}

	sim.StopAt(stopTime)

	logger.Info().
		Int("flows", len(flows)).
		Stringer("stop", stopTime).
		Msg("simulation started")

	start := time.Now()
	runErr := sim.Run()
	wall := time.Since(start)

	stats := s.Stats()
	logger.Info().
		Stringer("now", sim.Now()).
		Uint64("executed", stats.Executed).
		Uint64("cancelled", stats.Cancelled).
		Float64("mean_gap_s", stats.MeanGap).
		Float64("stddev_gap_s", stats.StdDevGap).
		Dur("wall", wall).
		Msg("simulation finished")

	printSummary(out, flows, sim.Now(), stats.Executed)

	if runErr != nil {
		logger.Error().Err(runErr).Msg("simulation failed")
		return runErr
	}

	return nil
}

func printSummary(
	out io.Writer,
	flows []*traffic.Flow,
	now timing.VTime,
	executed uint64,
) {
	fmt.Fprintf(out, "virtual time %s, %d events\n", now, executed)

	if len(flows) == 0 {
		return
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "FLOW\tKIND\tSENT\tRECEIVED\tBYTES\tMEAN DELAY\tMAX DELAY")

	for _, f := range flows {
		sum := f.Summary()
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%s\t%s\n",
			sum.Name, sum.Kind, sum.Sent, sum.Received, sum.Bytes,
			sum.MeanDelay, sum.MaxDelay)
	}

	w.Flush()
}
