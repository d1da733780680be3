package transport

import (
	"errors"
	"time"
)

var (
	ErrClosed = errors.New("Transport is closed")
)

// Transport is a non-blocking byte stream to a NATS server.
//
// Neither Send nor Recv may block waiting for the peer. Send returns 0 with a nil
// error when nothing could be written right now, Recv returns 0 with a nil error when
// nothing is available. A non-nil error means the stream is unusable.
type Transport interface {
	Send(p []byte) (int, error)
	Recv(p []byte) (int, error)
	Connected() bool
	Close() error
}

// Clock returns milliseconds since an arbitrary epoch. The value wraps around every
// ~49.7 days and callers must only ever compare differences.
type Clock interface {
	NowMillis() uint32
}

// ClockFunc adapts a function to the Clock interface.
type ClockFunc func() uint32

func (f ClockFunc) NowMillis() uint32 {
	return f()
}

var epoch = time.Now()

// SystemClock is a Clock backed by the monotonic clock.
var SystemClock Clock = ClockFunc(func() uint32 {
	return uint32(time.Since(epoch).Milliseconds())
})

// ManualClock is a Clock that only moves when told to.
type ManualClock struct {
	now uint32
}

func NewManualClock(start uint32) *ManualClock {
	return &ManualClock{now: start}
}

func (c *ManualClock) NowMillis() uint32 {
	return c.now
}

func (c *ManualClock) Set(ms uint32) {
	c.now = ms
}

// Advance moves the clock forward, wrapping past math.MaxUint32 like a hardware timer.
func (c *ManualClock) Advance(d time.Duration) {
	c.now += uint32(d.Milliseconds())
}
