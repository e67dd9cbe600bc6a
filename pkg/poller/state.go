package poller

// State is the phase of the poll cycle.
type State uint8

const (
	StateIdle State = iota
	StateSending
	StateAwaitingResponse
	StateClassifying
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSending:
		return "sending"
	case StateAwaitingResponse:
		return "awaiting-response"
	case StateClassifying:
		return "classifying"
	default:
		return "invalid"
	}
}
