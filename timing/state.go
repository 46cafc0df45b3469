package timing

// State is the lifecycle stage of a Simulator.
type State int32

// Simulator states.
const (
	StateUninitialized State = iota
	StateConfiguring
	StateRunning
	StateStopped
	StateDestroyed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "Uninitialized"
	case StateConfiguring:
		return "Configuring"
	case StateRunning:
		return "Running"
	case StateStopped:
		return "Stopped"
	case StateDestroyed:
		return "Destroyed"
	default:
		return "Unknown"
	}
}
