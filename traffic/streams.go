package traffic

import (
	"sync"

	"github.com/iti/rngstream"
)

// Seeding selects the random streams of a set of flows. Seed picks the
// family of streams and Run the substream used in every stream, so
// independent replications keep Seed and change Run.
type Seeding struct {
	Seed uint64
	Run  uint64
}

var streamsLock sync.Mutex

// NewStreams creates one stream per name, in order. The same Seeding and
// names always give the same streams.
//
// rngstream seeds each new stream from package state, so stream creation
// restarts from Seed under a lock.
func NewStreams(s Seeding, names ...string) []*rngstream.RngStream {
	streamsLock.Lock()
	defer streamsLock.Unlock()

	rngstream.SetRngStreamMasterSeed(s.Seed)

	streams := make([]*rngstream.RngStream, len(names))
	for i, name := range names {
		g := rngstream.New(name)
		for r := uint64(0); r < s.Run; r++ {
			g.ResetNextSubstream()
		}

		streams[i] = g
	}

	return streams
}
