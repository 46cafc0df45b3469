package tracing

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sarchlab/evsim/timing"
)

var _ = Describe("EventStats", func() {
	var (
		sim   *timing.Simulator
		stats *EventStats
	)

	BeforeEach(func() {
		sim = timing.NewSimulator()
		stats = NewEventStats()
		Collect(sim, stats)
	})

	It("should count events per kind and context", func() {
		sim.ScheduleWithContext(1, 1*timing.Second, nodeApp{}, nil)
		sim.ScheduleWithContext(1, 2*timing.Second, nodeApp{}, nil)
		sim.ScheduleWithContext(2, 3*timing.Second, nodeApp{}, nil)
		sim.ScheduleAt(4*timing.Second, nodeApp{}, nil).Cancel()
		sim.StopAt(10 * timing.Second)

		Expect(sim.Run()).To(Succeed())

		sum := stats.Summary()
		Expect(sum.Scheduled).To(Equal(uint64(4)))
		Expect(sum.Cancelled).To(Equal(uint64(1)))
		Expect(sum.Executed).To(Equal(uint64(3)))
		Expect(sum.PerContext).To(Equal(map[timing.ContextID]uint64{1: 2, 2: 1}))
	})

	It("should measure gaps between executed events", func() {
		for _, t := range []timing.VTime{1, 2, 4, 6} {
			sim.ScheduleAt(t*timing.Second, nodeApp{}, nil)
		}

		Expect(sim.Run()).To(Succeed())

		sum := stats.Summary()
		Expect(sum.MeanGap).To(BeNumerically("~", 5.0/3.0, 1e-9))
		Expect(sum.StdDevGap).To(BeNumerically("~", 0.57735, 1e-4))
	})

	It("should report zero gaps with a single event", func() {
		sim.ScheduleAt(timing.Second, nodeApp{}, nil)

		Expect(sim.Run()).To(Succeed())

		sum := stats.Summary()
		Expect(sum.MeanGap).To(BeZero())
		Expect(sum.StdDevGap).To(BeZero())
	})

	It("should reset", func() {
		sim.ScheduleAt(timing.Second, nodeApp{}, nil)
		Expect(sim.Run()).To(Succeed())

		stats.Reset()

		Expect(stats.Summary().Executed).To(BeZero())
		Expect(stats.Summary().PerContext).To(BeEmpty())
	})
})
