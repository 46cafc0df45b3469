package timing

import (
	"errors"
	"math/rand"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sarchlab/evsim/hooking"
	"go.uber.org/mock/gomock"
)

var _ = Describe("Simulator", func() {
	var (
		mockCtrl *gomock.Controller
		s        *Simulator
		calls    []string
	)

	record := func(label string) Handler {
		return HandlerFunc(func(*Event) error {
			calls = append(calls, label)
			return nil
		})
	}

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		s = NewSimulator()
		calls = nil
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should start uninitialized and configure on first schedule", func() {
		Expect(s.State()).To(Equal(StateUninitialized))

		s.ScheduleAt(1*Second, record("a"), nil)

		Expect(s.State()).To(Equal(StateConfiguring))
		Expect(s.PendingEvents()).To(Equal(1))
	})

	It("should fire events in time order", func() {
		s.ScheduleAt(2*Second, record("t2"), nil)
		s.ScheduleAt(1*Second, record("t1"), nil)
		s.ScheduleAt(3*Second, record("t3"), nil)

		Expect(s.Run()).To(Succeed())

		Expect(calls).To(Equal([]string{"t1", "t2", "t3"}))
		Expect(s.Now()).To(Equal(3 * Second))
		Expect(s.State()).To(Equal(StateStopped))
		Expect(s.ExecutedEvents()).To(Equal(uint64(3)))
	})

	It("should fire same-time events in scheduling order", func() {
		s.ScheduleAt(5*Second, record("A"), nil)
		s.ScheduleAt(5*Second, record("B"), nil)

		Expect(s.Run()).To(Succeed())

		Expect(calls).To(Equal([]string{"A", "B"}))
	})

	It("should not fire a cancelled event", func() {
		id := s.ScheduleAt(10*Second, record("x"), nil)
		Expect(id.IsPending()).To(BeTrue())

		s.Cancel(id)

		Expect(s.Run()).To(Succeed())
		Expect(calls).To(BeEmpty())
		Expect(id.IsExpired()).To(BeTrue())
		Expect(s.PendingEvents()).To(Equal(0))
	})

	It("should ignore cancelling a fired event or a zero handle", func() {
		id := s.ScheduleAt(1*Second, record("x"), nil)
		Expect(s.Run()).To(Succeed())

		Expect(func() {
			id.Cancel()
			s.Cancel(EventID{})
		}).NotTo(Panic())
		Expect(calls).To(Equal([]string{"x"}))
		Expect(s.IsExpired(EventID{})).To(BeTrue())
	})

	It("should run a same-time event scheduled by a handler after queued ones",
		func() {
			s.ScheduleAt(2*Second, HandlerFunc(func(*Event) error {
				calls = append(calls, "a")
				s.ScheduleNow(record("c"), nil)
				return nil
			}), nil)
			s.ScheduleAt(2*Second, record("b"), nil)
			s.ScheduleAt(3*Second, record("d"), nil)

			Expect(s.Run()).To(Succeed())

			Expect(calls).To(Equal([]string{"a", "b", "c", "d"}))
		})

	It("should stop at the stop time and discard the rest on destroy", func() {
		s.StopAt(5 * Second)
		s.ScheduleAt(3*Second, record("t3"), nil)
		late := s.ScheduleAt(7*Second, record("t7"), nil)

		Expect(s.Run()).To(Succeed())

		Expect(calls).To(Equal([]string{"t3"}))
		Expect(s.Now()).To(Equal(5 * Second))
		Expect(s.State()).To(Equal(StateStopped))
		Expect(late.IsPending()).To(BeTrue())

		s.Destroy()

		Expect(late.IsExpired()).To(BeTrue())
		Expect(calls).To(Equal([]string{"t3"}))
		Expect(s.State()).To(Equal(StateDestroyed))
	})

	It("should not run events due exactly at the stop time", func() {
		s.ScheduleAt(5*Second, record("at-stop"), nil)
		s.StopAt(5 * Second)

		Expect(s.Run()).To(Succeed())

		Expect(calls).To(BeEmpty())
	})

	It("should honor the earliest of several stop times", func() {
		s.StopAt(8 * Second)
		s.StopAfter(4 * Second)
		s.ScheduleAt(3*Second, record("t3"), nil)
		s.ScheduleAt(6*Second, record("t6"), nil)

		stop, ok := s.StopTime()
		Expect(ok).To(BeTrue())
		Expect(stop).To(Equal(4 * Second))

		Expect(s.Run()).To(Succeed())

		Expect(calls).To(Equal([]string{"t3"}))
		stop, ok = s.StopTime()
		Expect(ok).To(BeTrue())
		Expect(stop).To(Equal(8 * Second))
	})

	It("should publish stop times set from handlers", func() {
		for i := 1; i <= 100; i++ {
			s.ScheduleFunc(VTime(i)*MilliSecond, func() {
				s.StopAt(s.Now() + Second)
			})
		}

		done := make(chan error, 1)
		go func() { done <- s.Run() }()

		var seen []VTime
		Eventually(func() bool {
			if t, ok := s.StopTime(); ok {
				seen = append(seen, t)
			}

			select {
			case err := <-done:
				Expect(err).NotTo(HaveOccurred())
				return true
			default:
				return false
			}
		}).Should(BeTrue())

		for _, t := range seen {
			Expect(t).To(BeNumerically(">=", 1001*MilliSecond))
		}

		Expect(s.Now()).To(Equal(1001 * MilliSecond))
		stop, ok := s.StopTime()
		Expect(ok).To(BeTrue())
		Expect(stop).To(Equal(1002 * MilliSecond))

		s.Destroy()
		_, ok = s.StopTime()
		Expect(ok).To(BeFalse())
	})

	It("should return immediately when run again while stopped", func() {
		s.StopAt(5 * Second)
		s.StopAt(9 * Second)
		s.ScheduleAt(7*Second, record("t7"), nil)
		Expect(s.Run()).To(Succeed())

		Expect(s.Run()).To(Succeed())

		Expect(calls).To(BeEmpty())
		Expect(s.Now()).To(Equal(5 * Second))
		stop, ok := s.StopTime()
		Expect(ok).To(BeTrue())
		Expect(stop).To(Equal(9 * Second))

		s.Destroy()
		_, ok = s.StopTime()
		Expect(ok).To(BeFalse())
		Expect(s.PendingEvents()).To(BeZero())
	})

	It("should stop after the current handler when Stop is called", func() {
		s.ScheduleAt(2*Second, HandlerFunc(func(*Event) error {
			calls = append(calls, "first")
			s.Stop()
			return nil
		}), nil)
		s.ScheduleAt(2*Second, record("second"), nil)

		Expect(s.Run()).To(Succeed())

		Expect(calls).To(Equal([]string{"first"}))
		Expect(s.PendingEvents()).To(Equal(1))
	})

	It("should ignore Stop outside of Run", func() {
		s.Stop()
		s.ScheduleAt(1*Second, record("a"), nil)

		Expect(s.Run()).To(Succeed())
		Expect(calls).To(Equal([]string{"a"}))
	})

	It("should report Now as the fire time inside handlers", func() {
		times := []VTime{7 * MilliSecond, 1 * Second, 1 * Second, 42 * Second}
		for _, t := range times {
			s.ScheduleAt(t, HandlerFunc(func(evt *Event) error {
				Expect(s.Now()).To(Equal(evt.Time()))
				calls = append(calls, evt.Time().String())
				return nil
			}), nil)
		}

		Expect(s.Run()).To(Succeed())
		Expect(calls).To(Equal([]string{"0.007s", "1s", "1s", "42s"}))
	})

	It("should invoke N increasing events in order", func() {
		const n = 500
		fired := make([]VTime, 0, n)
		for i := 1; i <= n; i++ {
			s.ScheduleAt(VTime(i)*MilliSecond, HandlerFunc(func(evt *Event) error {
				fired = append(fired, s.Now())
				return nil
			}), nil)
		}

		Expect(s.Run()).To(Succeed())

		Expect(fired).To(HaveLen(n))
		for i, t := range fired {
			Expect(t).To(Equal(VTime(i+1) * MilliSecond))
		}
	})

	It("should keep times non-decreasing with random and recursive scheduling",
		func() {
			rng := rand.New(rand.NewSource(1))
			var last VTime
			fired := 0

			var spawn HandlerFunc
			spawn = func(evt *Event) error {
				Expect(s.Now()).To(BeNumerically(">=", last))
				last = s.Now()
				fired++

				depth := evt.Payload().(int)
				if depth < 3 {
					delay := VTime(rng.Intn(5)) * MilliSecond
					s.Schedule(delay, spawn, depth+1)
				}

				return nil
			}

			for i := 0; i < 200; i++ {
				s.ScheduleAt(VTime(rng.Intn(100))*MilliSecond, spawn, 0)
			}

			Expect(s.Run()).To(Succeed())
			Expect(fired).To(Equal(800))
		})

	It("should pass the payload to the handler", func() {
		handler := NewMockHandler(mockCtrl)
		handler.EXPECT().
			Handle(gomock.Any()).
			DoAndReturn(func(evt *Event) error {
				Expect(evt.Payload()).To(Equal("ping"))
				Expect(evt.Time()).To(Equal(2 * Second))
				return nil
			})

		s.Schedule(2*Second, handler, "ping")

		Expect(s.Run()).To(Succeed())
	})

	It("should stop and return the handler error", func() {
		boom := errors.New("boom")
		s.ScheduleAt(1*Second, HandlerFunc(func(*Event) error {
			return boom
		}), nil)
		s.ScheduleAt(2*Second, record("after"), nil)

		err := s.Run()

		Expect(err).To(MatchError(boom))
		Expect(err.Error()).To(ContainSubstring("@ 1s"))
		Expect(calls).To(BeEmpty())
		Expect(s.State()).To(Equal(StateStopped))
		Expect(s.Now()).To(Equal(1 * Second))
	})

	It("should panic when scheduling into the past", func() {
		Expect(func() {
			s.Schedule(-1, record("x"), nil)
		}).To(PanicWith(MatchError(ErrInvalidTime)))

		s.ScheduleAt(5*Second, HandlerFunc(func(*Event) error {
			defer func() {
				Expect(recover()).To(MatchError(ErrInvalidTime))
				calls = append(calls, "recovered")
			}()
			s.ScheduleAt(3*Second, record("past"), nil)
			return nil
		}), nil)

		Expect(s.Run()).To(Succeed())
		Expect(calls).To(Equal([]string{"recovered"}))
	})

	It("should panic when used after destroy", func() {
		s.Destroy()

		Expect(func() {
			s.ScheduleAt(1*Second, record("x"), nil)
		}).To(PanicWith(MatchError(ErrInvalidState)))
		Expect(func() { _ = s.Run() }).To(PanicWith(MatchError(ErrInvalidState)))
	})

	It("should not allow Run or Destroy from a handler", func() {
		s.ScheduleAt(1*Second, HandlerFunc(func(*Event) error {
			Expect(func() { _ = s.Run() }).To(PanicWith(MatchError(ErrInvalidState)))
			Expect(s.Destroy).To(PanicWith(MatchError(ErrInvalidState)))
			calls = append(calls, "checked")
			return nil
		}), nil)

		Expect(s.Run()).To(Succeed())
		Expect(calls).To(Equal([]string{"checked"}))
	})

	It("should reset on destroy and run nothing after init", func() {
		s.ScheduleAt(1*Second, record("a"), nil)
		s.ScheduleAt(9*Second, record("b"), nil)
		s.StopAt(2 * Second)
		Expect(s.Run()).To(Succeed())

		s.Destroy()
		s.Destroy()
		s.Init()

		Expect(s.State()).To(Equal(StateConfiguring))
		Expect(s.Now()).To(Equal(VTime(0)))
		Expect(s.Run()).To(Succeed())
		Expect(calls).To(Equal([]string{"a"}))
		Expect(s.Now()).To(Equal(VTime(0)))
		Expect(s.ExecutedEvents()).To(BeZero())
	})

	It("should restart sequence numbers after destroy", func() {
		first := s.ScheduleAt(1*Second, record("a"), nil)
		s.Destroy()
		s.Init()

		again := s.ScheduleAt(1*Second, record("a"), nil)

		Expect(again.UID()).To(Equal(first.UID()))
	})

	It("should run destroy callbacks in order", func() {
		s.ScheduleDestroy(func() { calls = append(calls, "first") })
		s.ScheduleDestroy(func() { calls = append(calls, "second") })
		Expect(s.Run()).To(Succeed())
		Expect(calls).To(BeEmpty())

		s.Destroy()

		Expect(calls).To(Equal([]string{"first", "second"}))
	})

	It("should carry contexts", func() {
		var contexts []ContextID

		child := HandlerFunc(func(*Event) error {
			contexts = append(contexts, s.Context())
			return nil
		})
		parent := HandlerFunc(func(*Event) error {
			contexts = append(contexts, s.Context())
			s.Schedule(1*Second, child, nil)
			s.ScheduleWithContext(9, 1*Second, child, nil)
			return nil
		})

		s.ScheduleWithContext(7, 1*Second, parent, nil)
		s.ScheduleAt(5*Second, child, nil)

		Expect(s.Context()).To(Equal(NoContext))
		Expect(s.Run()).To(Succeed())

		Expect(contexts).To(Equal([]ContextID{7, 7, 9, NoContext}))
		Expect(s.Context()).To(Equal(NoContext))
	})

	It("should report the delay left", func() {
		target := s.ScheduleAt(10*Second, record("target"), nil)
		var left VTime
		s.ScheduleAt(4*Second, HandlerFunc(func(*Event) error {
			left = s.GetDelayLeft(target)
			return nil
		}), nil)

		Expect(s.Run()).To(Succeed())

		Expect(left).To(Equal(6 * Second))
		Expect(s.GetDelayLeft(target)).To(BeZero())
	})

	It("should run closures", func() {
		n := 0
		s.ScheduleFunc(1*MilliSecond, func() { n++ })
		s.ScheduleFunc(2*MilliSecond, func() { n += 10 })

		Expect(s.Run()).To(Succeed())
		Expect(n).To(Equal(11))
	})

	It("should invoke hooks around scheduling and dispatch", func() {
		var positions []string
		hook := NewMockHook(mockCtrl)
		hook.EXPECT().
			Func(gomock.Any()).
			Do(func(ctx hooking.HookCtx) {
				positions = append(positions, ctx.Pos.Name)
			}).
			AnyTimes()
		s.AcceptHook(hook)

		id := s.ScheduleAt(1*Second, record("a"), nil)
		cancelled := s.ScheduleAt(2*Second, record("b"), nil)
		cancelled.Cancel()
		Expect(s.Run()).To(Succeed())
		s.Destroy()

		Expect(id.IsExpired()).To(BeTrue())
		Expect(positions).To(Equal([]string{
			"EventScheduled", "EventScheduled", "EventCancelled",
			"BeforeEvent", "AfterEvent", "Stop", "Destroy",
		}))
	})

	It("should pause and continue from another goroutine", func() {
		s.ScheduleAt(1*Second, record("a"), nil)
		s.Pause()
		Expect(s.IsPaused()).To(BeTrue())

		done := make(chan error, 1)
		go func() { done <- s.Run() }()

		Consistently(done, 50*time.Millisecond).ShouldNot(Receive())

		s.Continue()

		Eventually(done).Should(Receive(BeNil()))
		Expect(s.ExecutedEvents()).To(Equal(uint64(1)))
	})
})
