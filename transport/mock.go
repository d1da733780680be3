package transport

import (
	"bytes"
)

// Mock is an in-memory Transport for tests. Bytes fed to it are handed out by Recv,
// bytes sent through it are kept for inspection.
type Mock struct {
	in        bytes.Buffer
	out       bytes.Buffer
	connected bool
	closed    int

	// RecvChunk caps how many bytes a single Recv returns, 0 means no cap
	RecvChunk int

	// SendChunk caps how many bytes a single Send accepts, 0 means no cap
	SendChunk int

	// WouldBlock makes the next n Sends write nothing
	WouldBlock int

	// SendErr and RecvErr are returned, once, by the next Send or Recv
	SendErr error
	RecvErr error
}

func NewMock() *Mock {
	return &Mock{connected: true}
}

// Feed queues bytes for Recv.
func (m *Mock) Feed(s string) {
	m.in.WriteString(s)
}

func (m *Mock) FeedBytes(p []byte) {
	m.in.Write(p)
}

// Pending is how many fed bytes haven't been received yet.
func (m *Mock) Pending() int {
	return m.in.Len()
}

// Output returns everything sent so far.
func (m *Mock) Output() string {
	return m.out.String()
}

// TakeOutput returns everything sent so far and forgets it.
func (m *Mock) TakeOutput() string {
	s := m.out.String()
	m.out.Reset()
	return s
}

// SetConnected simulates the peer going away, or coming back.
func (m *Mock) SetConnected(connected bool) {
	m.connected = connected
}

// Closed is the number of times Close was called.
func (m *Mock) Closed() int {
	return m.closed
}

func (m *Mock) Send(p []byte) (int, error) {
	if m.SendErr != nil {
		err := m.SendErr
		m.SendErr = nil
		return 0, err
	}

	if !m.connected {
		return 0, ErrClosed
	}

	if m.WouldBlock > 0 {
		m.WouldBlock--
		return 0, nil
	}

	if m.SendChunk > 0 && len(p) > m.SendChunk {
		p = p[:m.SendChunk]
	}

	return m.out.Write(p)
}

func (m *Mock) Recv(p []byte) (int, error) {
	if m.RecvErr != nil {
		err := m.RecvErr
		m.RecvErr = nil
		return 0, err
	}

	if !m.connected {
		return 0, ErrClosed
	}

	if m.RecvChunk > 0 && len(p) > m.RecvChunk {
		p = p[:m.RecvChunk]
	}

	if m.in.Len() == 0 {
		return 0, nil
	}

	return m.in.Read(p)
}

func (m *Mock) Connected() bool {
	return m.connected
}

func (m *Mock) Close() error {
	m.closed++
	m.connected = false
	return nil
}

var _ Transport = (*Mock)(nil)
