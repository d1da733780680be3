package client

// State of the connection. Exactly one is active at a time:
//
//   Disconnected -> WaitInfo -> SendConnect -> Connected -> Draining -> Closed
//                                                       \-> Disconnected
//
// Closed is terminal until the client is initialised again.
type State uint8

const (
	StateDisconnected State = iota
	StateWaitInfo
	StateSendConnect
	StateConnected
	StateDraining
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateWaitInfo:
		return "wait_info"
	case StateSendConnect:
		return "send_connect"
	case StateConnected:
		return "connected"
	case StateDraining:
		return "draining"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// live is true while a session is in progress.
func (s State) live() bool {
	return s == StateConnected || s == StateDraining
}

// Event is passed to the EventHandler when the connection changes.
type Event uint8

const (
	EventConnected Event = iota + 1
	EventDisconnected

	// EventError follows any error the client records, see Client.LastError
	EventError
)

func (e Event) String() string {
	switch e {
	case EventConnected:
		return "connected"
	case EventDisconnected:
		return "disconnected"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// EventHandler is called synchronously from whichever client method caused the event.
type EventHandler func(c *Client, event Event)
