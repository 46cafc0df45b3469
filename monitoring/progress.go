package monitoring

import (
	"sync"
	"time"

	"github.com/sarchlab/evsim/hooking"
	"github.com/sarchlab/evsim/timing"
)

// A ProgressBar is a tracker of the progress
type ProgressBar struct {
	sync.Mutex
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	StartTime  time.Time `json:"start_time"`
	Total      uint64    `json:"total"`
	Finished   uint64    `json:"finished"`
	InProgress uint64    `json:"in_progress"`
}

// IncrementInProgress adds the number of in-progress element.
func (b *ProgressBar) IncrementInProgress(amount uint64) {
	b.Lock()
	defer b.Unlock()

	b.InProgress += amount
}

// IncrementFinished add a certain amount to finished element.
func (b *ProgressBar) IncrementFinished(amount uint64) {
	b.Lock()
	defer b.Unlock()

	b.Finished += amount
}

// MoveInProgressToFinished reduces the number of in progress item by a certain
// amount and increase the finished item by the same amount.
func (b *ProgressBar) MoveInProgressToFinished(amount uint64) {
	b.Lock()
	defer b.Unlock()

	b.InProgress -= amount
	b.Finished += amount
}

// SetFinished sets the finished amount, capped at Total.
func (b *ProgressBar) SetFinished(amount uint64) {
	b.Lock()
	defer b.Unlock()

	if amount > b.Total {
		amount = b.Total
	}

	b.Finished = amount
}

type progressView struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	StartTime  time.Time `json:"start_time"`
	Total      uint64    `json:"total"`
	Finished   uint64    `json:"finished"`
	InProgress uint64    `json:"in_progress"`
}

func (b *ProgressBar) snapshot() progressView {
	b.Lock()
	defer b.Unlock()

	return progressView{
		ID:         b.ID,
		Name:       b.Name,
		StartTime:  b.StartTime,
		Total:      b.Total,
		Finished:   b.Finished,
		InProgress: b.InProgress,
	}
}

// TimeProgressHook advances a progress bar as virtual time moves toward a
// stop time. The bar counts milliseconds of virtual time.
type TimeProgressHook struct {
	bar *ProgressBar
}

// NewTimeProgressHook creates a bar on the monitor sized to stopTime and a
// hook that fills it.
func NewTimeProgressHook(
	m *Monitor,
	name string,
	stopTime timing.VTime,
) *TimeProgressHook {
	bar := m.CreateProgressBar(name, uint64(stopTime/timing.MilliSecond))

	return &TimeProgressHook{bar: bar}
}

// Bar returns the progress bar being filled.
func (h *TimeProgressHook) Bar() *ProgressBar {
	return h.bar
}

// Func moves the bar to the time of the event about to run, or to the stop
// time once the run ends.
func (h *TimeProgressHook) Func(ctx hooking.HookCtx) {
	switch ctx.Pos {
	case timing.HookPosBeforeEvent:
		evt := ctx.Item.(*timing.Event)
		h.bar.SetFinished(uint64(evt.Time() / timing.MilliSecond))
	case timing.HookPosStop:
		now := ctx.Item.(timing.VTime)
		h.bar.SetFinished(uint64(now / timing.MilliSecond))
	}
}
