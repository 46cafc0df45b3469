package traffic

import (
	"github.com/sarchlab/evsim/datarecording"
	"github.com/sarchlab/evsim/timing"
)

// DeliveryTable is the table sinks record deliveries into.
const DeliveryTable = "packet_delivery"

// Delivery is a row of the packet_delivery table. Times are in seconds.
type Delivery struct {
	Flow       string
	Seq        uint64
	Size       int
	Node       int64
	SentAt     float64
	ReceivedAt float64
	Delay      float64
}

// CreateDeliveryTable creates the table sinks write to.
func CreateDeliveryTable(recorder datarecording.DataRecorder) {
	recorder.CreateTable(DeliveryTable, Delivery{})
}

// Sink counts the packets it receives and how long they took to arrive.
// For echo replies the delay is the round trip time.
type Sink struct {
	sim      *timing.Simulator
	name     string
	recorder datarecording.DataRecorder

	received   uint64
	bytes      uint64
	totalDelay timing.VTime
	maxDelay   timing.VTime
}

// NewSink creates a sink.
func NewSink(sim *timing.Simulator, name string) *Sink {
	return &Sink{sim: sim, name: name}
}

// WithRecorder makes the sink write every delivery into recorder. The
// delivery table must exist.
func (s *Sink) WithRecorder(recorder datarecording.DataRecorder) *Sink {
	s.recorder = recorder
	return s
}

// Name returns the sink name.
func (s *Sink) Name() string {
	return s.name
}

// Received returns the number of packets received.
func (s *Sink) Received() uint64 {
	return s.received
}

// Bytes returns the number of bytes received.
func (s *Sink) Bytes() uint64 {
	return s.bytes
}

// MeanDelay returns the average delay, or 0 before the first packet.
func (s *Sink) MeanDelay() timing.VTime {
	if s.received == 0 {
		return 0
	}

	return s.totalDelay / timing.VTime(s.received)
}

// MaxDelay returns the largest delay seen.
func (s *Sink) MaxDelay() timing.VTime {
	return s.maxDelay
}

// Receive accounts for pkt.
func (s *Sink) Receive(pkt *Packet) error {
	now := s.sim.Now()
	delay := now - pkt.SentAt

	s.received++
	s.bytes += uint64(pkt.Size)
	s.totalDelay += delay

	if delay > s.maxDelay {
		s.maxDelay = delay
	}

	if s.recorder != nil {
		node := int64(-1)
		if c := s.sim.Context(); c != timing.NoContext {
			node = int64(c)
		}

		s.recorder.InsertData(DeliveryTable, Delivery{
			Flow:       pkt.Flow,
			Seq:        pkt.Seq,
			Size:       pkt.Size,
			Node:       node,
			SentAt:     pkt.SentAt.Seconds(),
			ReceivedAt: now.Seconds(),
			Delay:      delay.Seconds(),
		})
	}

	return nil
}
