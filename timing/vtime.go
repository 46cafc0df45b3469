package timing

import (
	"math"
	"strconv"
	"time"
)

// VTime is a point on, or a distance along, the virtual time axis. The
// resolution is one nanosecond.
type VTime int64

// Units of virtual time.
const (
	NanoSecond  VTime = 1
	MicroSecond       = 1000 * NanoSecond
	MilliSecond       = 1000 * MicroSecond
	Second            = 1000 * MilliSecond
	Minute            = 60 * Second
	Hour              = 60 * Minute
)

// MaxTime is the largest representable virtual time.
const MaxTime VTime = math.MaxInt64

// Seconds converts a number of seconds to VTime, rounding to the nearest
// nanosecond.
func Seconds(s float64) VTime {
	return fromFloat(s, Second)
}

// MilliSeconds converts a number of milliseconds to VTime.
func MilliSeconds(ms float64) VTime {
	return fromFloat(ms, MilliSecond)
}

// MicroSeconds converts a number of microseconds to VTime.
func MicroSeconds(us float64) VTime {
	return fromFloat(us, MicroSecond)
}

// NanoSeconds converts a number of nanoseconds to VTime.
func NanoSeconds(ns int64) VTime {
	return VTime(ns)
}

// FromDuration converts a wall-clock style duration into VTime.
func FromDuration(d time.Duration) VTime {
	return VTime(d.Nanoseconds())
}

func fromFloat(v float64, unit VTime) VTime {
	if math.IsNaN(v) {
		panic("timing: invalid time NaN")
	}

	scaled := math.Round(v * float64(unit))
	if scaled >= float64(MaxTime) {
		return MaxTime
	}

	if scaled <= float64(math.MinInt64) {
		return VTime(math.MinInt64)
	}

	return VTime(scaled)
}

// Seconds returns t as a floating point number of seconds.
func (t VTime) Seconds() float64 {
	return float64(t) / float64(Second)
}

// Duration returns t as a time.Duration.
func (t VTime) Duration() time.Duration {
	return time.Duration(t)
}

// String formats t in seconds, for example "2.5s".
func (t VTime) String() string {
	sec := t / Second
	ns := t % Second
	if ns == 0 {
		return strconv.FormatInt(int64(sec), 10) + "s"
	}

	return strconv.FormatFloat(t.Seconds(), 'f', -1, 64) + "s"
}
