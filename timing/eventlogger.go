package timing

import (
	"strconv"

	"github.com/rs/zerolog"
	"github.com/sarchlab/evsim/hooking"
)

// EventLogger is a hook that writes one debug record per dispatched event.
type EventLogger struct {
	logger zerolog.Logger
}

// NewEventLogger returns an EventLogger writing to logger.
func NewEventLogger(logger zerolog.Logger) *EventLogger {
	return &EventLogger{logger: logger}
}

// Func logs the event before its handler runs, and a warning if the handler
// fails.
func (h *EventLogger) Func(ctx hooking.HookCtx) {
	evt, ok := ctx.Item.(*Event)
	if !ok {
		return
	}

	switch ctx.Pos {
	case HookPosBeforeEvent:
		h.logger.Debug().
			Stringer("time", evt.Time()).
			Uint64("uid", evt.UID()).
			Str("context", contextString(evt.Context())).
			Str("handler", evt.HandlerName()).
			Msg("event")
	case HookPosAfterEvent:
		err, isErr := ctx.Detail.(error)
		if !isErr || err == nil {
			return
		}

		h.logger.Warn().
			Err(err).
			Stringer("time", evt.Time()).
			Uint64("uid", evt.UID()).
			Msg("handler failed")
	}
}

func contextString(c ContextID) string {
	if c == NoContext {
		return "-"
	}

	return strconv.FormatUint(uint64(c), 10)
}
