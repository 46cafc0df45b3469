// Package traffic provides simple applications that exchange packets over
// fixed-delay links on top of a timing.Simulator.
package traffic

import (
	"fmt"

	"github.com/sarchlab/evsim/timing"
)

// Packet is the unit of traffic.
type Packet struct {
	Flow   string
	Seq    uint64
	Size   int
	SentAt timing.VTime

	// Echo marks a packet sent back by an EchoServer.
	Echo bool
}

func (p *Packet) String() string {
	return fmt.Sprintf("%s#%d(%dB)", p.Flow, p.Seq, p.Size)
}

// A Receiver accepts packets delivered by a Link. Receive runs in the
// receiver's context.
type Receiver interface {
	Receive(pkt *Packet) error
}

// Link delivers packets to a receiver after a fixed delay.
type Link struct {
	sim      *timing.Simulator
	name     string
	dst      timing.ContextID
	receiver Receiver
	delay    timing.VTime

	sent uint64
}

// NewLink creates a link into node dst.
func NewLink(
	sim *timing.Simulator,
	name string,
	dst timing.ContextID,
	receiver Receiver,
	delay timing.VTime,
) *Link {
	if delay < 0 {
		panic(fmt.Errorf("%w: link %s has negative delay", timing.ErrInvalidTime, name))
	}

	return &Link{
		sim:      sim,
		name:     name,
		dst:      dst,
		receiver: receiver,
		delay:    delay,
	}
}

// Name returns the link name.
func (l *Link) Name() string {
	return l.name
}

// Delay returns the propagation delay.
func (l *Link) Delay() timing.VTime {
	return l.delay
}

// Sent returns the number of packets put on the link.
func (l *Link) Sent() uint64 {
	return l.sent
}

// Send schedules the delivery of pkt.
func (l *Link) Send(pkt *Packet) timing.EventID {
	l.sent++

	return l.sim.ScheduleWithContext(l.dst, l.delay, l, pkt)
}

// Handle delivers the packet carried by evt.
func (l *Link) Handle(evt *timing.Event) error {
	pkt, ok := evt.Payload().(*Packet)
	if !ok {
		return fmt.Errorf("link %s: unexpected payload %T", l.name, evt.Payload())
	}

	return l.receiver.Receive(pkt)
}
