package client

// Msg is a delivered message. It is a view into the client's receive buffer and is
// only valid until the handler returns, copy anything that has to outlive it.
type Msg struct {
	Subject []byte
	Reply   []byte
	Data    []byte
	SID     uint16
}

// MsgHandler receives messages for a subscription.
type MsgHandler interface {
	HandleMsg(m *Msg)
}

// MsgHandlerFunc adapts a function to MsgHandler.
type MsgHandlerFunc func(m *Msg)

func (f MsgHandlerFunc) HandleMsg(m *Msg) {
	f(m)
}
