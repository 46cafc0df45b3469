// Package tracing observes a simulator through its hooks and records what
// happens to events.
package tracing

import (
	"fmt"
	"reflect"

	"github.com/sarchlab/evsim/hooking"
)

// Collect attaches hook to domain. Attaching the same hook twice panics.
func Collect(domain hooking.Hookable, hook hooking.Hook) {
	for _, h := range domain.Hooks() {
		if reflect.TypeOf(h).Comparable() && h == hook {
			panic(fmt.Sprintf("tracer %s already attached",
				reflect.TypeOf(hook)))
		}
	}

	domain.AcceptHook(hook)
}
