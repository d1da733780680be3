package transport

import (
	"crypto/tls"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultPort           = 4222
	DefaultConnectTimeout = 2 * time.Second
	DefaultPollTimeout    = time.Millisecond
	DefaultWriteTimeout   = 2 * time.Second
)

type Options struct {
	// Host to connect to
	Host string

	// Port to connect to, defaults to 4222
	Port int

	ConnectTimeout time.Duration

	// PollTimeout is how long Recv waits for bytes before reporting that none are
	// available. Keep it short, Recv is called from the host's event loop.
	PollTimeout time.Duration

	// WriteTimeout bounds a single Send, a Send that times out reports how much it
	// did manage to write
	WriteTimeout time.Duration

	// TLS wraps the connection in a TLS client. The server must be configured to
	// expect the TLS handshake before it sends INFO.
	TLS *tls.Config

	// Trace will log every byte sent and received. This is only useful in local debugging
	Trace bool

	Log *zap.Logger
}

func (o *Options) setDefaults() {
	if o.Port == 0 {
		o.Port = DefaultPort
	}

	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = DefaultConnectTimeout
	}

	if o.PollTimeout <= 0 {
		o.PollTimeout = DefaultPollTimeout
	}

	if o.WriteTimeout <= 0 {
		o.WriteTimeout = DefaultWriteTimeout
	}

	if o.Log == nil {
		o.Log = zap.NewNop()
	}
}
