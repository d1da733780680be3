package client

import (
	"fmt"
	"math"
	"time"

	"github.com/luma/piconats/protocol"
	"go.uber.org/zap"
)

// Sizes of the client's fixed tables and buffers.
const (
	RecvBufferSize   = protocol.BufferSize
	TxBufferSize     = 512
	MaxSubscriptions = 32
	MaxResponseSize  = 1024

	// DefaultMaxPayload is also the largest payload a client can be configured for
	DefaultMaxPayload = protocol.MaxPayload
)

const (
	DefaultName           = "piconats"
	DefaultPingInterval   = 2 * time.Minute
	DefaultConnectTimeout = 2 * time.Second
	DefaultMaxPingsOut    = 2
)

// maxInterval is the longest duration the wrap-safe millisecond timers can measure.
const maxInterval = time.Duration(math.MaxInt32) * time.Millisecond

// Options configure a Client. Zero values take the defaults above.
type Options struct {
	// Name is sent to the server in CONNECT
	Name string

	User  string
	Pass  string
	Token string

	PingInterval   time.Duration
	ConnectTimeout time.Duration

	// the connection is stale once MaxPingsOut keepalive PINGs are still unanswered
	// at the end of a ping interval
	MaxPingsOut int

	// MaxPayload bounds both published and received payloads
	MaxPayload int

	Verbose  bool
	Pedantic bool

	// NoEcho asks the server not to deliver our own publishes back to us
	NoEcho bool

	// Version is sent in CONNECT
	Version string

	Logger *zap.Logger
}

// DefaultOptions returns Options with every field at its default.
func DefaultOptions() Options {
	opts := Options{}
	_ = opts.setDefaults()
	return opts
}

func (o *Options) setDefaults() error {
	if o.Name == "" {
		o.Name = DefaultName
	}

	if o.PingInterval == 0 {
		o.PingInterval = DefaultPingInterval
	}

	if o.ConnectTimeout == 0 {
		o.ConnectTimeout = DefaultConnectTimeout
	}

	if o.MaxPingsOut == 0 {
		o.MaxPingsOut = DefaultMaxPingsOut
	}

	if o.MaxPayload == 0 {
		o.MaxPayload = DefaultMaxPayload
	}

	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}

	switch {
	case o.PingInterval < time.Millisecond || o.PingInterval > maxInterval:
		return fmt.Errorf("ping interval %s is out of range: %w", o.PingInterval, ErrInvalidArg)
	case o.ConnectTimeout < time.Millisecond || o.ConnectTimeout > maxInterval:
		return fmt.Errorf("connect timeout %s is out of range: %w", o.ConnectTimeout, ErrInvalidArg)
	case o.MaxPingsOut < 1:
		return fmt.Errorf("max pings out must be at least 1: %w", ErrInvalidArg)
	case o.MaxPayload < 1 || o.MaxPayload > DefaultMaxPayload:
		return fmt.Errorf("max payload %d must be within 1 and %d: %w", o.MaxPayload, DefaultMaxPayload, ErrInvalidArg)
	}

	return nil
}

func millis(d time.Duration) uint32 {
	return uint32(d / time.Millisecond)
}
