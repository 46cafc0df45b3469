package timing

import "github.com/sarchlab/evsim/hooking"

// Hook positions raised by the Simulator. For the event positions the hook
// item is the *Event.
var (
	// HookPosEventScheduled fires after an event enters the queue.
	HookPosEventScheduled = &hooking.HookPos{Name: "EventScheduled"}

	// HookPosEventCancelled fires when a pending event is cancelled.
	HookPosEventCancelled = &hooking.HookPos{Name: "EventCancelled"}

	// HookPosBeforeEvent fires right before a handler runs.
	HookPosBeforeEvent = &hooking.HookPos{Name: "BeforeEvent"}

	// HookPosAfterEvent fires right after a handler returns. The hook detail
	// is the handler's error, if any.
	HookPosAfterEvent = &hooking.HookPos{Name: "AfterEvent"}

	// HookPosStop fires when Run returns. The item is the current VTime.
	HookPosStop = &hooking.HookPos{Name: "Stop"}

	// HookPosDestroy fires at the start of Destroy. The item is the current
	// VTime.
	HookPosDestroy = &hooking.HookPos{Name: "Destroy"}
)
