package traffic

import (
	"fmt"
	"math"

	"github.com/iti/rngstream"
	"github.com/sarchlab/evsim/timing"
)

type sourceAction int

const (
	actStart sourceAction = iota
	actSend
	actToggle
	actStop
)

// OnOffConfig configures an OnOffSource.
type OnOffConfig struct {
	Name       string
	Node       timing.ContextID
	Link       *Link
	Interval   timing.VTime
	PacketSize int

	// MaxPackets stops the source after that many packets. Zero means no
	// limit.
	MaxPackets uint64

	// OnTime and OffTime are the mean lengths of the exponentially
	// distributed on and off periods. A zero OffTime keeps the source on.
	OnTime  timing.VTime
	OffTime timing.VTime

	// Rng draws the period lengths. It is required when OffTime is set.
	Rng *rngstream.RngStream
}

// OnOffSource sends fixed-size packets at a fixed interval while it is in
// an on period.
type OnOffSource struct {
	cfg OnOffConfig
	sim *timing.Simulator

	running bool
	on      bool
	sent    uint64
	bytes   uint64

	sendEvent   timing.EventID
	toggleEvent timing.EventID
}

// NewOnOffSource creates a source. It does nothing until started.
func NewOnOffSource(sim *timing.Simulator, cfg OnOffConfig) *OnOffSource {
	if cfg.Interval <= 0 {
		panic(fmt.Errorf("%w: source %s needs a positive interval",
			timing.ErrInvalidTime, cfg.Name))
	}

	if cfg.OffTime > 0 && cfg.Rng == nil {
		panic(fmt.Sprintf("source %s: on/off periods need a random stream",
			cfg.Name))
	}

	return &OnOffSource{cfg: cfg, sim: sim}
}

// Name returns the source name.
func (s *OnOffSource) Name() string {
	return s.cfg.Name
}

// Sent returns the number of packets sent.
func (s *OnOffSource) Sent() uint64 {
	return s.sent
}

// BytesSent returns the number of bytes sent.
func (s *OnOffSource) BytesSent() uint64 {
	return s.bytes
}

// IsRunning tells if the source is between start and stop.
func (s *OnOffSource) IsRunning() bool {
	return s.running
}

// Start begins sending at time at.
func (s *OnOffSource) Start(at timing.VTime) {
	s.scheduleAction(at, actStart)
}

// StopAt stops the source at time at. A send that is still pending then is
// cancelled.
func (s *OnOffSource) StopAt(at timing.VTime) {
	s.scheduleAction(at, actStop)
}

func (s *OnOffSource) scheduleAction(at timing.VTime, act sourceAction) timing.EventID {
	now := s.sim.Now()
	if at < now {
		panic(fmt.Errorf("%w: source %s action at %s, now %s",
			timing.ErrInvalidTime, s.Name(), at, now))
	}

	return s.sim.ScheduleWithContext(s.cfg.Node, at-now, s, act)
}

// Handle runs the source's state machine.
func (s *OnOffSource) Handle(evt *timing.Event) error {
	act, ok := evt.Payload().(sourceAction)
	if !ok {
		return fmt.Errorf("source %s: unexpected payload %T",
			s.Name(), evt.Payload())
	}

	switch act {
	case actStart:
		s.start()
	case actSend:
		s.send()
	case actToggle:
		s.toggle()
	case actStop:
		s.stop()
	}

	return nil
}

func (s *OnOffSource) start() {
	if s.running {
		return
	}

	s.running = true
	s.turnOn()
}

func (s *OnOffSource) turnOn() {
	s.on = true
	s.sendEvent = s.sim.ScheduleNow(s, actSend)

	if s.cfg.OffTime > 0 {
		s.toggleEvent = s.sim.Schedule(s.draw(s.cfg.OnTime), s, actToggle)
	}
}

func (s *OnOffSource) turnOff() {
	s.on = false
	s.sendEvent.Cancel()
	s.toggleEvent = s.sim.Schedule(s.draw(s.cfg.OffTime), s, actToggle)
}

func (s *OnOffSource) toggle() {
	if !s.running {
		return
	}

	if s.on {
		s.turnOff()
	} else {
		s.turnOn()
	}
}

func (s *OnOffSource) send() {
	if !s.running || !s.on {
		return
	}

	s.sent++
	s.bytes += uint64(s.cfg.PacketSize)
	s.cfg.Link.Send(&Packet{
		Flow:   s.Name(),
		Seq:    s.sent,
		Size:   s.cfg.PacketSize,
		SentAt: s.sim.Now(),
	})

	if s.cfg.MaxPackets > 0 && s.sent >= s.cfg.MaxPackets {
		s.stop()
		return
	}

	s.sendEvent = s.sim.Schedule(s.cfg.Interval, s, actSend)
}

func (s *OnOffSource) stop() {
	s.running = false
	s.on = false

	if s.sendEvent.IsPending() {
		s.sendEvent.Cancel()
	}

	if s.toggleEvent.IsPending() {
		s.toggleEvent.Cancel()
	}
}

// draw returns an exponentially distributed period with the given mean.
func (s *OnOffSource) draw(mean timing.VTime) timing.VTime {
	u := s.cfg.Rng.RandU01()
	d := -float64(mean) * math.Log(1-u)

	if d >= float64(timing.MaxTime-s.sim.Now()) {
		return timing.MaxTime - s.sim.Now()
	}

	return timing.VTime(math.Round(d))
}
