package poller

// State of the poller cycle
type State int

// cycle states, in the order a changed feed goes through them
const (
	StateIdle State = iota
	StateFetching
	StateComparing
	StateUnchanged
	StateUpdating
	StateTranscoding
	StateDispatching
	StateSleeping
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateFetching:
		return "fetching"
	case StateComparing:
		return "comparing"
	case StateUnchanged:
		return "unchanged"
	case StateUpdating:
		return "updating"
	case StateTranscoding:
		return "transcoding"
	case StateDispatching:
		return "dispatching"
	case StateSleeping:
		return "sleeping"
	default:
		return "unknown"
	}
}
