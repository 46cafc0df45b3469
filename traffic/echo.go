package traffic

import "github.com/sarchlab/evsim/timing"

// EchoServer answers every packet it receives with a copy sent back over its
// return link.
type EchoServer struct {
	sim    *timing.Simulator
	name   string
	reply  *Link
	echoed uint64
}

// NewEchoServer creates a server replying over reply.
func NewEchoServer(sim *timing.Simulator, name string, reply *Link) *EchoServer {
	return &EchoServer{sim: sim, name: name, reply: reply}
}

// Name returns the server name.
func (e *EchoServer) Name() string {
	return e.name
}

// SetReplyLink sets the link replies are sent over.
func (e *EchoServer) SetReplyLink(l *Link) {
	e.reply = l
}

// Echoed returns the number of replies sent.
func (e *EchoServer) Echoed() uint64 {
	return e.echoed
}

// Receive sends pkt back. Echo replies are dropped.
func (e *EchoServer) Receive(pkt *Packet) error {
	if pkt.Echo {
		return nil
	}

	reply := *pkt
	reply.Echo = true
	e.echoed++
	e.reply.Send(&reply)

	return nil
}
