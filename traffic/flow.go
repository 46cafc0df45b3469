package traffic

import (
	"github.com/iti/rngstream"
	"github.com/sarchlab/evsim/config"
	"github.com/sarchlab/evsim/datarecording"
	"github.com/sarchlab/evsim/timing"
)

// Flow is an installed source with its receiving end.
type Flow struct {
	Name   string
	Kind   string
	Source *OnOffSource
	Server *EchoServer
	Sink   *Sink
}

// FlowSummary is the outcome of a flow after a run.
type FlowSummary struct {
	Name      string
	Kind      string
	Sent      uint64
	Received  uint64
	Bytes     uint64
	MeanDelay timing.VTime
	MaxDelay  timing.VTime
}

// Summary reports what the flow did.
func (f *Flow) Summary() FlowSummary {
	return FlowSummary{
		Name:      f.Name,
		Kind:      f.Kind,
		Sent:      f.Source.Sent(),
		Received:  f.Sink.Received(),
		Bytes:     f.Sink.Bytes(),
		MeanDelay: f.Sink.MeanDelay(),
		MaxDelay:  f.Sink.MaxDelay(),
	}
}

// FromConfig builds the flows, schedules their start and stop, and returns
// them in configuration order. If recorder is not nil, every delivery is
// recorded. Flows with off periods draw them from streams given by seeding,
// one per flow in configuration order.
//
// An onoff flow sends from Source to a sink at Destination. An echo flow
// sends to an echo server at Destination whose replies reach a sink back at
// Source, so its delays are round trip times.
func FromConfig(
	sim *timing.Simulator,
	flows []config.FlowConfig,
	seeding Seeding,
	recorder datarecording.DataRecorder,
) ([]*Flow, error) {
	var randomFlows []string
	for i := range flows {
		fc := &flows[i]
		if err := fc.Validate(); err != nil {
			return nil, err
		}

		if fc.OffTime > 0 {
			randomFlows = append(randomFlows, fc.Name)
		}
	}

	if recorder != nil && len(flows) > 0 {
		CreateDeliveryTable(recorder)
	}

	streams := NewStreams(seeding, randomFlows...)

	result := make([]*Flow, 0, len(flows))
	for i := range flows {
		fc := &flows[i]

		var rng *rngstream.RngStream
		if fc.OffTime > 0 {
			rng, streams = streams[0], streams[1:]
		}

		f := buildFlow(sim, fc, rng, recorder)
		f.Source.Start(timing.FromDuration(fc.Start))

		if fc.Stop > 0 {
			f.Source.StopAt(timing.FromDuration(fc.Stop))
		}

		result = append(result, f)
	}

	return result, nil
}

func buildFlow(
	sim *timing.Simulator,
	fc *config.FlowConfig,
	rng *rngstream.RngStream,
	recorder datarecording.DataRecorder,
) *Flow {
	src := timing.ContextID(fc.Source)
	dst := timing.ContextID(fc.Destination)
	delay := timing.FromDuration(fc.LinkDelay)

	f := &Flow{Name: fc.Name, Kind: fc.Kind}

	var link *Link
	switch fc.Kind {
	case config.KindEcho:
		f.Sink = NewSink(sim, fc.Name+".client")
		back := NewLink(sim, fc.Name+".reply", src, f.Sink, delay)
		f.Server = NewEchoServer(sim, fc.Name+".server", back)
		link = NewLink(sim, fc.Name+".request", dst, f.Server, delay)
	default:
		f.Sink = NewSink(sim, fc.Name+".sink")
		link = NewLink(sim, fc.Name, dst, f.Sink, delay)
	}

	if recorder != nil {
		f.Sink.WithRecorder(recorder)
	}

	f.Source = NewOnOffSource(sim, OnOffConfig{
		Name:       fc.Name,
		Node:       src,
		Link:       link,
		Interval:   timing.FromDuration(fc.Interval),
		PacketSize: fc.PacketSize,
		MaxPackets: uint64(fc.MaxPackets),
		OnTime:     timing.FromDuration(fc.OnTime),
		OffTime:    timing.FromDuration(fc.OffTime),
		Rng:        rng,
	})

	return f
}
